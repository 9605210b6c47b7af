/*
Copyright © 2021 the RTM authors.
This file is part of RTM.

RTM is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

RTM is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with RTM.  If not, see <http://www.gnu.org/licenses/>.
*/

package rtm

import (
	"io/ioutil"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestOrders(t *testing.T) {
	for _, order := range []int{2, 4, 8, 12, 16} {
		p, err := NewComputationParameters(order)
		if err != nil {
			t.Fatal(err)
		}
		if p.HalfLength != order/2 || len(p.SecondDerivative) != order/2+1 ||
			len(p.FirstDerivative) != order/2+1 || len(p.StaggeredDerivative) != order/2+1 {
			t.Errorf("order %d: half length %d", order, p.HalfLength)
		}
		// A constant has no second derivative.
		sum := p.SecondDerivative[0]
		for _, c := range p.SecondDerivative[1:] {
			sum += 2 * c
		}
		if math.Abs(sum) > 1e-6 {
			t.Errorf("order %d: coefficients sum to %g", order, sum)
		}
		// The first derivative of x is 1.
		var d float64
		for i, c := range p.FirstDerivative {
			d += 2 * float64(i) * c
		}
		if math.Abs(d-1) > 1e-6 {
			t.Errorf("order %d: first derivative of x is %g", order, d)
		}
	}
	for _, order := range []int{0, 3, 6, 20} {
		if _, err := NewComputationParameters(order); !IsKind(err, ConfigurationError) {
			t.Errorf("order %d: %v", order, err)
		}
	}
}

func TestValidateDefaults(t *testing.T) {
	log := logrus.New()
	log.Out = ioutil.Discard
	p, err := NewComputationParameters(8)
	if err != nil {
		t.Fatal(err)
	}
	p.DTRelax = 1.5
	p.BlockX = 0
	p.BlockZ = -3
	p.Random.GrainSize = 0
	if err = p.Validate(log); err != nil {
		t.Fatal(err)
	}
	if p.DTRelax != DefaultDTRelax || p.BlockX != DefaultBlock || p.BlockZ != DefaultBlock || p.Random.GrainSize != 1 {
		t.Errorf("defaults not substituted: %+v", p)
	}

	fatal := []func(p *ComputationParameters){
		func(p *ComputationParameters) { p.BoundaryLength = -1 },
		func(p *ComputationParameters) { p.SourceFrequency = 0 },
		func(p *ComputationParameters) { p.Window.LeftX = -2 },
		func(p *ComputationParameters) { p.EquationOrder = 0 },
		func(p *ComputationParameters) { p.Boundary = "unknown" },
		func(p *ComputationParameters) { p.Compensation = 7 },
		func(p *ComputationParameters) { p.Order = 5 },
	}
	for i, f := range fatal {
		p, err := NewComputationParameters(8)
		if err != nil {
			t.Fatal(err)
		}
		f(p)
		if err = p.Validate(log); !IsKind(err, ConfigurationError) {
			t.Errorf("case %d: %v", i, err)
		}
	}
}

func TestParse(t *testing.T) {
	if o, err := ParseEquationOrder("first"); err != nil || o != FirstOrder {
		t.Errorf("first: %v %v", o, err)
	}
	if o, err := ParseEquationOrder("Second"); err != nil || o != SecondOrder {
		t.Errorf("second: %v %v", o, err)
	}
	if b, err := ParseBoundaryPolicy("absorbing-layer"); err != nil || b != CPMLBoundary {
		t.Errorf("absorbing-layer: %v %v", b, err)
	}
	if c, err := ParseCompensation("combined"); err != nil || c != CombinedCompensation {
		t.Errorf("combined: %v %v", c, err)
	}
	if a, err := ParseApproximation("isotropic"); err != nil || a != Isotropic {
		t.Errorf("isotropic: %v %v", a, err)
	}
	for _, f := range []func() error{
		func() error { _, err := ParseEquationOrder("third"); return err },
		func() error { _, err := ParseBoundaryPolicy("mirror"); return err },
		func() error { _, err := ParseCompensation("partial"); return err },
		func() error { _, err := ParseApproximation("vti"); return err },
		func() error { _, err := ParseCollector("disk"); return err },
		func() error { _, err := ParseCompression("zfp"); return err },
	} {
		if err := f(); !IsKind(err, ConfigurationError) {
			t.Errorf("want a configuration error, got %v", err)
		}
	}
}

func TestValidateCollector(t *testing.T) {
	for _, test := range []struct {
		collector CollectorKind
		boundary  BoundaryPolicy
		ok        bool
	}{
		{BoundarySaving, CPMLBoundary, true},
		{TwoPropagation, SpongeBoundary, true},
		{ReversePropagation, NoBoundary, true},
		{ReversePropagation, RandomBoundary, true},
		{ReversePropagation, SpongeBoundary, false},
		{ReversePropagation, CPMLBoundary, false},
		{"", SpongeBoundary, true},
	} {
		p, err := NewComputationParameters(4)
		if err != nil {
			t.Fatal(err)
		}
		p.Collector = test.collector
		p.Boundary = test.boundary
		err = p.Validate(nil)
		if test.ok && (err != nil || p.Collector == "") {
			t.Errorf("%s with %s: %v, collector %q", test.collector, test.boundary, err, p.Collector)
		}
		if !test.ok && !IsKind(err, ConfigurationError) {
			t.Errorf("%s with %s: want a configuration error, got %v", test.collector, test.boundary, err)
		}
	}
}

func TestSuitableDT(t *testing.T) {
	p := testParams(t, 2, 0, SecondOrder)
	p.DTRelax = 1
	a := Axis3{X: NewAxis(10, 10, 0), Y: NewAxis(1, 10, 0), Z: NewAxis(10, 10, 0)}
	// The classic limit v·dt/h ≤ 1/√2 in 2-D.
	if dt, want := p.SuitableDT(a, 1000), 10/(1000*math.Sqrt2); different(dt, want, testTolerance) {
		t.Errorf("dt = %g, want %g", dt, want)
	}
	p.EquationOrder = FirstOrder
	if dt, want := p.SuitableDT(a, 1000), 10/(1000*math.Sqrt2); different(dt, want, testTolerance) {
		t.Errorf("staggered dt = %g, want %g", dt, want)
	}
	p8 := testParams(t, 8, 0, SecondOrder)
	if p8.SuitableDT(a, 1000) >= p.SuitableDT(a, 1000)*p8.DTRelax {
		t.Error("higher order stencil should need a smaller step")
	}
}
