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
	"math"
	"testing"
)

const testTolerance = 1e-9

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

// testParams returns validated parameters for a stencil of the given
// order.
func testParams(t *testing.T, order, boundary int, eq EquationOrder) *ComputationParameters {
	t.Helper()
	p, err := NewComputationParameters(order)
	if err != nil {
		t.Fatal(err)
	}
	p.BoundaryLength = boundary
	p.EquationOrder = eq
	p.SourceFrequency = 25
	if err = p.Validate(nil); err != nil {
		t.Fatal(err)
	}
	return p
}

// testGrid returns a grid over a homogeneous model of nx×ny×nz cells of
// 10 m with velocity v, with the window set up around the center and
// the parameters preprocessed for kernel k.
func testGrid(t *testing.T, p *ComputationParameters, nx, ny, nz int, v float64, nt int) (*GridBox, Kernel) {
	t.Helper()
	h := &ModelHandler{Model: NewModel(nx, ny, nz, 10, 10, 10, v), Params: p}
	g, err := h.NewGridBox()
	if err != nil {
		t.Fatal(err)
	}
	g.DT = p.SuitableDT(g.Full, v)
	g.NT = nt
	k, err := NewKernel(g)
	if err != nil {
		t.Fatal(err)
	}
	if err = g.SetupWindow(nx/2, ny/2); err != nil {
		t.Fatal(err)
	}
	k.PreprocessModel()
	return g, k
}

// mustPanic checks that f panics with an *Error of the given kind.
func mustPanic(t *testing.T, kind ErrorKind, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Errorf("no panic, want %v", kind)
			return
		}
		e, ok := r.(*Error)
		if !ok || e.Kind != kind {
			t.Errorf("panic %v, want %v", r, kind)
		}
	}()
	f()
}
