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

package boundary

import (
	"math"
	"testing"

	"github.com/seismicimaging/rtm"
)

// setup is a homogeneous 2-D problem of n×n physical cells with a
// source at its center.
type setup struct {
	g   *rtm.GridBox
	k   rtm.Kernel
	bm  rtm.BoundaryManager
	src *rtm.Source
}

func newSetup(t *testing.T, n, nt int, policy rtm.BoundaryPolicy, eq rtm.EquationOrder,
	opts ...func(*rtm.ComputationParameters)) *setup {
	p, err := rtm.NewComputationParameters(8)
	if err != nil {
		t.Fatal(err)
	}
	p.Boundary = policy
	p.EquationOrder = eq
	p.SourceFrequency = 20
	for _, o := range opts {
		o(p)
	}
	if err = p.Validate(nil); err != nil {
		t.Fatal(err)
	}
	m := rtm.NewModel(n, 1, n, 10, 10, 10, 1500)
	h := &rtm.ModelHandler{Model: m, Params: p}
	g, err := h.NewGridBox()
	if err != nil {
		t.Fatal(err)
	}
	g.DT = p.SuitableDT(g.Full, 1500)
	g.NT = nt
	k, err := rtm.NewKernel(g)
	if err != nil {
		t.Fatal(err)
	}
	bm, err := New(g)
	if err != nil {
		t.Fatal(err)
	}
	bm.ExtendModel()
	k.SetBoundaryManager(bm)
	if err = g.SetupWindow(n/2, 0); err != nil {
		t.Fatal(err)
	}
	bm.ReExtendModel()
	k.PreprocessModel()
	src := rtm.NewSource(g)
	if err = src.Place(g, n/2, 0, n/2); err != nil {
		t.Fatal(err)
	}
	return &setup{g: g, k: k, bm: bm, src: src}
}

// run propagates the source and returns the norm every k steps.
func (s *setup) run(k int) []float64 {
	var norms []float64
	for step := 1; step <= s.g.NT; step++ {
		s.k.Step()
		s.src.Inject(s.g, step, 1)
		if step%k == 0 {
			norms = append(norms, rtm.Norm(s.g))
		}
	}
	return norms
}

func maxOf(v []float64) float64 {
	m := math.Inf(-1)
	for _, x := range v {
		if x > m {
			m = x
		}
	}
	return m
}

func TestNew(t *testing.T) {
	for _, policy := range []rtm.BoundaryPolicy{rtm.NoBoundary, rtm.SpongeBoundary, rtm.RandomBoundary, rtm.CPMLBoundary} {
		t.Run(string(policy), func(t *testing.T) {
			s := newSetup(t, 11, 1, policy, rtm.SecondOrder)
			if s.bm == nil {
				t.Fatal("no boundary manager")
			}
		})
	}
	t.Run("unknown", func(t *testing.T) {
		p, err := rtm.NewComputationParameters(4)
		if err != nil {
			t.Fatal(err)
		}
		p.Boundary = "mirror"
		g, err := rtm.NewGridBox(rtm.NewModel(5, 1, 5, 1, 1, 1, 1).Axes, p)
		if err != nil {
			t.Fatal(err)
		}
		if _, err = New(g); !rtm.IsKind(err, rtm.ConfigurationError) {
			t.Errorf("want a configuration error, got %v", err)
		}
	})
}

func TestStaggeredCPML(t *testing.T) {
	const (
		n     = 41
		steps = 1000
		every = 50
	)
	none := newSetup(t, n, steps, rtm.NoBoundary, rtm.FirstOrder).run(every)
	ref := none[len(none)-1]
	if !(ref > 0) || math.IsInf(ref, 0) {
		t.Fatalf("reflecting norm %g", ref)
	}
	norms := newSetup(t, n, steps, rtm.CPMLBoundary, rtm.FirstOrder).run(every)
	for i, v := range norms {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("norm %d is %g", i, v)
		}
	}
	if final := norms[len(norms)-1]; final >= 0.5*ref {
		t.Errorf("final norm %g, reflecting %g", final, ref)
	}
	if early, late := maxOf(norms[2:6]), maxOf(norms[14:]); late > early {
		t.Errorf("energy grew from %g to %g", early, late)
	}
}

func TestNoneExtension(t *testing.T) {
	s := newSetup(t, 15, 1, rtm.NoBoundary, rtm.SecondOrder)
	g := s.g
	for _, c := range []struct {
		tag rtm.Tag
		a   rtm.Axis3
	}{
		{rtm.VelocityParm, g.Full},
		{rtm.VelocityParm | rtm.Wind, g.Window},
	} {
		f := g.Get(c.tag)
		xs, xe := c.a.X.PhysicalRange()
		zs, ze := c.a.Z.PhysicalRange()
		for iz := 0; iz < f.Nz; iz++ {
			for ix := 0; ix < f.Nx; ix++ {
				v := f.At(ix, 0, iz)
				physical := ix >= xs && ix < xe && iz >= zs && iz < ze
				if !physical && v != 0 {
					t.Fatalf("%v: boundary cell (%d, %d) = %g", c.tag, ix, iz, v)
				}
				if physical && v == 0 {
					t.Fatalf("%v: physical cell (%d, %d) is zero", c.tag, ix, iz)
				}
			}
		}
	}
}

func TestHomogeneousExtension(t *testing.T) {
	p, err := rtm.NewComputationParameters(4)
	if err != nil {
		t.Fatal(err)
	}
	p.BoundaryLength = 3
	m := rtm.NewModel(4, 1, 5, 1, 1, 1, 1)
	for i := range m.Velocity.Elements {
		m.Velocity.Elements[i] = float64(i + 1)
	}
	g, err := (&rtm.ModelHandler{Model: m, Params: p}).NewGridBox()
	if err != nil {
		t.Fatal(err)
	}
	f := g.Get(rtm.VelocityParm)
	for _, top := range []bool{true, false} {
		homogeneousExtension{top: top}.Extend(f, g.Full)
		xs, xe := g.Full.X.PhysicalRange()
		zs, ze := g.Full.Z.PhysicalRange()
		// Corner below the model, left of it.
		if got, want := f.At(xs-3, 0, ze+2), f.At(xs, 0, ze-1); got != want {
			t.Errorf("top=%v: bottom left corner = %g, want %g", top, got, want)
		}
		if got, want := f.At(xe, 0, zs+2), f.At(xe-1, 0, zs+2); got != want {
			t.Errorf("top=%v: right edge = %g, want %g", top, got, want)
		}
		want := f.At(xs+1, 0, zs)
		if !top {
			want = 0
		}
		if got := f.At(xs+1, 0, zs-1); got != want {
			t.Errorf("top=%v: top = %g, want %g", top, got, want)
		}
	}
}

func TestRandomExtension(t *testing.T) {
	build := func() *setup { return newSetup(t, 21, 1, rtm.RandomBoundary, rtm.SecondOrder) }
	a, b := build(), build()
	va := a.g.Get(rtm.VelocityParm)
	vb := b.g.Get(rtm.VelocityParm)
	for i := range va.Data {
		if va.Data[i] != vb.Data[i] {
			t.Fatalf("cell %d: %g != %g with the same seed", i, va.Data[i], vb.Data[i])
		}
	}
	g := a.g
	var random int
	forBoundary(g.Full, func(ix, iy, iz, cx, cy, cz, depth int) {
		v := va.At(ix, iy, iz)
		if v < 0 {
			t.Fatalf("negative velocity %g at (%d, %d)", v, ix, iz)
		}
		if v != va.At(cx, cy, cz) {
			random++
		}
	})
	if random == 0 {
		t.Error("boundary is homogeneous")
	}
	xs, xe := g.Full.X.PhysicalRange()
	zs, ze := g.Full.Z.PhysicalRange()
	for iz := zs; iz < ze; iz++ {
		for ix := xs; ix < xe; ix++ {
			if v := va.At(ix, 0, iz); v != 1500 {
				t.Fatalf("physical cell (%d, %d) changed to %g", ix, iz, v)
			}
		}
	}
}

func TestSpongeCoefficient(t *testing.T) {
	if c := SpongeCoefficient(0, 20); c != 1 {
		t.Errorf("physical cell: %g", c)
	}
	if c, want := SpongeCoefficient(20, 20), math.Exp(-0.01); math.Abs(c-want) > 1e-15 {
		t.Errorf("outer cell: %g, want %g", c, want)
	}
	for d := 1; d <= 20; d++ {
		if SpongeCoefficient(d, 20) >= SpongeCoefficient(d-1, 20) {
			t.Fatalf("not decreasing at depth %d", d)
		}
	}
	if c := SpongeCoefficient(3, 0); c != 1 {
		t.Errorf("no boundary: %g", c)
	}
}

func TestAdjustModelForBackward(t *testing.T) {
	s := newSetup(t, 11, 1, rtm.SpongeBoundary, rtm.SecondOrder)
	g := s.g
	s.bm.AdjustModelForBackward()
	v := g.Get(rtm.VelocityParm | rtm.Wind)
	xs, _ := g.Window.X.PhysicalRange()
	zs, ze := g.Window.Z.PhysicalRange()
	if x := v.At(xs+2, 0, zs-1); x != 0 {
		t.Errorf("top boundary = %g", x)
	}
	if x := v.At(xs+2, 0, ze); x == 0 {
		t.Error("bottom boundary removed")
	}
	if x := v.At(xs-1, 0, zs+2); x == 0 {
		t.Error("left boundary removed")
	}
}

// The absorbing policies must leave much less energy in the domain
// than a reflecting one, and never amplify it.
func TestAbsorption(t *testing.T) {
	const (
		n     = 41
		steps = 1000
		every = 50
	)
	none := newSetup(t, n, steps, rtm.NoBoundary, rtm.SecondOrder).run(every)
	ref := none[len(none)-1]
	if !(ref > 0) || math.IsInf(ref, 0) {
		t.Fatalf("reflecting norm %g", ref)
	}
	for _, c := range []struct {
		policy rtm.BoundaryPolicy
		eq     rtm.EquationOrder
	}{
		{rtm.SpongeBoundary, rtm.SecondOrder},
		{rtm.CPMLBoundary, rtm.SecondOrder},
	} {
		t.Run(string(c.policy), func(t *testing.T) {
			norms := newSetup(t, n, steps, c.policy, c.eq).run(every)
			final := norms[len(norms)-1]
			if math.IsNaN(final) || final >= 0.5*ref {
				t.Errorf("final norm %g, reflecting %g", final, ref)
			}
			early := maxOf(norms[2:6]) // steps 150 to 300
			late := maxOf(norms[14:])  // steps 750 to 1000
			if late > early {
				t.Errorf("energy grew from %g to %g", early, late)
			}
		})
	}
}

func TestStaggeredSponge(t *testing.T) {
	norms := newSetup(t, 31, 600, rtm.SpongeBoundary, rtm.FirstOrder).run(100)
	for i, n := range norms {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			t.Fatalf("norm %d is %g", i, n)
		}
	}
	if norms[len(norms)-1] >= maxOf(norms) {
		t.Errorf("no absorption: %v", norms)
	}
}
