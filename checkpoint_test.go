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
	"math/rand"
	"testing"
)

func fillRandom(f *Field, r *rand.Rand) {
	for i := range f.Data {
		f.Data[i] = r.Float64()
	}
}

func TestRingOffsets(t *testing.T) {
	p := testParams(t, 4, 3, SecondOrder)
	for _, ny := range []int{1, 5} {
		g, _ := testGrid(t, p, 7, ny, 6, 1000, 1)
		ring := ringOffsets(g.Window, p.HalfLength)
		hl := p.HalfLength
		want := 2 * hl * (6 + 7)
		if ny > 1 {
			want = 2 * hl * (ny*6 + ny*7 + 6*7)
		}
		if len(ring) != want {
			t.Errorf("ny=%d: %d ring cells, want %d", ny, len(ring), want)
		}
		seen := make(map[int]bool)
		for _, c := range ring {
			if seen[c] {
				t.Fatalf("ny=%d: cell %d listed twice", ny, c)
			}
			seen[c] = true
		}
		// The first cells are the x faces of the first row.
		f := g.Get(PressureCurr)
		xs, xe := g.Window.X.PhysicalRange()
		ys, _ := g.Window.Y.PhysicalRange()
		zs, _ := g.Window.Z.PhysicalRange()
		if ring[0] != f.Index(xs-hl, ys, zs) || ring[1] != f.Index(xe, ys, zs) {
			t.Errorf("ny=%d: traversal starts at %d, %d", ny, ring[0], ring[1])
		}
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	p := testParams(t, 4, 2, SecondOrder)
	g, _ := testGrid(t, p, 8, 6, 7, 1000, 5)
	s, err := NewBoundarySaver(g, []Tag{PressureCurr, PressurePrev}, g.NT)
	if err != nil {
		t.Fatal(err)
	}
	r := rand.New(rand.NewSource(1))
	saved := make([][]float64, g.NT+1)
	for step := 0; step <= g.NT; step++ {
		fillRandom(g.Get(PressureCurr), r)
		fillRandom(g.Get(PressurePrev), r)
		saved[step] = append([]float64(nil), g.Get(PressureCurr).Data...)
		s.Save(g, step)
	}
	c, err := g.CloneLayout()
	if err != nil {
		t.Fatal(err)
	}
	for step := g.NT; step >= 0; step-- {
		c.ZeroWavefields()
		s.Restore(c, step, PressureCurr)
		f := c.Get(PressureCurr)
		inRing := make(map[int]bool)
		for _, o := range s.ring {
			inRing[o] = true
			if f.Data[o] != saved[step][o] {
				t.Fatalf("step %d, cell %d: %g != %g", step, o, f.Data[o], saved[step][o])
			}
		}
		for i, v := range f.Data {
			if !inRing[i] && v != 0 {
				t.Fatalf("step %d: cell %d outside of the ring written", step, i)
			}
		}
	}
}

func TestCheckpointMisuse(t *testing.T) {
	p := testParams(t, 2, 1, SecondOrder)
	g, _ := testGrid(t, p, 5, 1, 5, 1000, 3)
	s, err := NewBoundarySaver(g, []Tag{PressureCurr}, g.NT)
	if err != nil {
		t.Fatal(err)
	}
	for step := 0; step <= 2; step++ {
		s.Save(g, step)
	}
	mustPanic(t, LogicError, func() { s.Save(g, 1) })
	mustPanic(t, DataBoundsError, func() { s.Save(g, 4) })
	mustPanic(t, LogicError, func() { s.Restore(g, 3) }) // never saved
	mustPanic(t, LogicError, func() { s.Restore(g, 1, PressurePrev) })
	s.Restore(g, 1)
	mustPanic(t, LogicError, func() { s.Restore(g, 2) }) // out of order
	mustPanic(t, LogicError, func() { s.Restore(g, 1) }) // read twice
	s.Restore(g, 0)
	mustPanic(t, DataBoundsError, func() { s.Restore(g, -1) })

	p.MaxCells = 10
	if _, err := NewBoundarySaver(g, []Tag{PressureCurr}, 100); !IsKind(err, DeviceResourceError) {
		t.Errorf("oversized store: %v", err)
	}
}
