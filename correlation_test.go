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
	"math/rand"
	"testing"
)

func TestCorrelate(t *testing.T) {
	p := testParams(t, 4, 2, SecondOrder)
	g, _ := testGrid(t, p, 10, 1, 8, 1500, 1)
	fwd, err := g.CloneLayout()
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewImageStack(g)
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewCrossCorrelation(g, s)
	if err != nil {
		t.Fatal(err)
	}
	r := rand.New(rand.NewSource(3))
	fillRandom(g.Get(PressureCurr), r)
	fillRandom(fwd.Get(PressureCurr), r)
	c.Correlate(fwd)
	c.Correlate(fwd)

	f, b := fwd.Get(PressureCurr), g.Get(PressureCurr)
	x0, x1, y0, y1, z0, z1 := physicalBounds(g.Window)
	img := c.ShotImage()
	for iy := 0; iy < img.Ny; iy++ {
		for iz := 0; iz < img.Nz; iz++ {
			for ix := 0; ix < img.Nx; ix++ {
				var want float64
				if ix >= x0 && ix < x1 && iy >= y0 && iy < y1 && iz >= z0 && iz < z1 {
					want = 2 * f.At(ix, iy, iz) * b.At(ix, iy, iz)
				}
				if got := img.At(ix, iy, iz); math.Abs(got-want) > 1e-12 {
					t.Fatalf("cell (%d, %d, %d): %g != %g", ix, iy, iz, got, want)
				}
			}
		}
	}

	c.Stack()
	mustPanic(t, LogicError, c.Stack)
	c.ResetShotCorrelation()
	for _, v := range img.Data {
		if v != 0 {
			t.Fatal("shot image not reset")
		}
	}
	c.Stack()
	if s.Shots() != 2 {
		t.Errorf("%d shots stacked", s.Shots())
	}
}

func TestCompensation(t *testing.T) {
	p := testParams(t, 2, 1, SecondOrder)
	p.Compensation = CombinedCompensation
	g, _ := testGrid(t, p, 6, 1, 5, 1500, 1)
	fwd, err := g.CloneLayout()
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewImageStack(g)
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewCrossCorrelation(g, s)
	if err != nil {
		t.Fatal(err)
	}
	for i := range fwd.Get(PressureCurr).Data {
		fwd.Get(PressureCurr).Data[i] = 2
		g.Get(PressureCurr).Data[i] = -3
	}
	c.Correlate(fwd)
	c.Correlate(fwd)
	c.Stack()
	m := s.GetMigrationData()
	if m.Nx != 6 || m.Nz != 5 || m.Shots != 1 {
		t.Fatalf("image %d×%d, %d shots", m.Nx, m.Nz, m.Shots)
	}
	for i, v := range m.Image.Elements {
		// -12 / √(8·18) = -1
		if different(v, -1, 1e-12) {
			t.Fatalf("cell %d: %g", i, v)
		}
		if m.SourceIllumination.Elements[i] != 8 || m.ReceiverIllumination.Elements[i] != 18 {
			t.Fatalf("cell %d: illumination %g, %g", i, m.SourceIllumination.Elements[i],
				m.ReceiverIllumination.Elements[i])
		}
	}

	// A dark cell stays finite.
	c.ResetShotCorrelation()
	c.Stack()
	for _, v := range s.GetMigrationData().Image.Elements {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatal("unlit cells are not finite")
		}
	}
}

// The stacked image does not depend on the order of the shots.
func TestStackingOrder(t *testing.T) {
	p := testParams(t, 2, 2, SecondOrder)
	p.Window = WindowConfig{Enabled: true, LeftX: 2, RightX: 2, Depth: 5}
	h := &ModelHandler{Model: NewModel(15, 1, 8, 10, 10, 10, 1500), Params: p}
	g, err := h.NewGridBox()
	if err != nil {
		t.Fatal(err)
	}
	sources := []int{3, 7, 11}
	value := func(gx, gz, shot int) float64 {
		return math.Sin(float64(gx*13+gz*7) + float64(shot))
	}
	stack := func(order []int) *MigrationData {
		s, err := NewImageStack(g)
		if err != nil {
			t.Fatal(err)
		}
		c, err := NewCrossCorrelation(g, s)
		if err != nil {
			t.Fatal(err)
		}
		for _, i := range order {
			if err = g.SetupWindow(sources[i], 0); err != nil {
				t.Fatal(err)
			}
			c.ResetShotCorrelation()
			img := c.ShotImage()
			wx, wz := g.Window.X.PhysicalStart(), g.Window.Z.PhysicalStart()
			for iz := 0; iz < g.Window.Z.PhysicalSize; iz++ {
				for ix := 0; ix < g.Window.X.PhysicalSize; ix++ {
					img.Set(value(g.StartX+ix, iz, i), wx+ix, 0, wz+iz)
				}
			}
			c.Stack()
		}
		return s.GetMigrationData()
	}
	want := stack([]int{0, 1, 2})
	if want.Shots != 3 {
		t.Fatalf("%d shots", want.Shots)
	}
	// Windows start at columns 1, 5 and 9 and are 5 cells wide.
	for gz := 0; gz < 8; gz++ {
		for gx := 0; gx < 15; gx++ {
			var sum float64
			for i, sx := range sources {
				if start := sx - 2; gz < 5 && gx >= start && gx < start+5 {
					sum += value(gx, gz, i)
				}
			}
			if got := want.Image.Get(0, gz, gx); math.Abs(got-sum) > 1e-12 {
				t.Fatalf("cell (%d, %d): %g != %g", gx, gz, got, sum)
			}
		}
	}
	for _, order := range [][]int{{0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}} {
		got := stack(order)
		for i, v := range got.Image.Elements {
			if math.Abs(v-want.Image.Elements[i]) > 1e-12 {
				t.Errorf("order %v, cell %d: %g != %g", order, i, v, want.Image.Elements[i])
			}
		}
	}
}
