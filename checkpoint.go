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

// BoundarySaver stores, for every time step, the ring of cells lying
// within one stencil half length outside of the physical region of the
// window. Together with the physical cells of a later state these are
// all the values the stencil needs to step backwards in time.
//
// Each (field, step) pair is written once during the forward pass and
// read once during the backward pass, in strictly decreasing step order.
type BoundarySaver struct {
	tags  []Tag
	ring  []int // flat offsets of the ring cells in traversal order
	steps int

	data     []float64 // [step][tag][ring]
	saved    [][]bool  // [step][tag]
	restored []int     // last step restored per tag
	maxCells int
}

// NewBoundarySaver returns a store for the fields tags of g, able to
// hold steps 0 through nt.
func NewBoundarySaver(g *GridBox, tags []Tag, nt int) (*BoundarySaver, error) {
	s := &BoundarySaver{
		tags:     append([]Tag(nil), tags...),
		ring:     ringOffsets(g.Window, g.Params().HalfLength),
		maxCells: g.Params().MaxCells,
	}
	if err := s.Reset(nt); err != nil {
		return nil, err
	}
	return s, nil
}

// ringOffsets lists the ring cells of the axes a: first the faces
// normal to x, then those normal to z, then in 3-D those normal to y.
// Within a face, front and rear cells alternate.
func ringOffsets(a Axis3, hl int) []int {
	nx, _, nz := a.Dims()
	idx := func(ix, iy, iz int) int { return (iy*nz+iz)*nx + ix }
	xs, xe := a.X.PhysicalRange()
	ys, ye := a.Y.PhysicalRange()
	zs, ze := a.Z.PhysicalRange()
	var o []int
	for iy := ys; iy < ye; iy++ {
		for iz := zs; iz < ze; iz++ {
			for k := 0; k < hl; k++ {
				o = append(o, idx(xs-hl+k, iy, iz), idx(xe+k, iy, iz))
			}
		}
	}
	for iy := ys; iy < ye; iy++ {
		for k := 0; k < hl; k++ {
			for ix := xs; ix < xe; ix++ {
				o = append(o, idx(ix, iy, zs-hl+k), idx(ix, iy, ze+k))
			}
		}
	}
	if !a.Is2D() {
		for k := 0; k < hl; k++ {
			for iz := zs; iz < ze; iz++ {
				for ix := xs; ix < xe; ix++ {
					o = append(o, idx(ix, ys-hl+k, iz), idx(ix, ye+k, iz))
				}
			}
		}
	}
	return o
}

// RingSize is the number of values stored per field and step.
func (s *BoundarySaver) RingSize() int { return len(s.ring) }

// Steps is the number of steps the store can hold.
func (s *BoundarySaver) Steps() int { return s.steps }

// Reset forgets everything stored and makes room for steps 0 through nt.
func (s *BoundarySaver) Reset(nt int) error {
	if nt < 0 {
		return errorf(DataBoundsError, "BoundarySaver.Reset", "negative step count %d", nt)
	}
	n := (nt + 1) * len(s.tags) * len(s.ring)
	if n > s.maxCells {
		return errorf(DeviceResourceError, "BoundarySaver.Reset",
			"checkpoint store needs %d values, limit is %d", n, s.maxCells)
	}
	if cap(s.data) >= n {
		s.data = s.data[:n]
	} else {
		s.data = make([]float64, n)
	}
	s.steps = nt + 1
	s.saved = make([][]bool, s.steps)
	for i := range s.saved {
		s.saved[i] = make([]bool, len(s.tags))
	}
	s.restored = make([]int, len(s.tags))
	for i := range s.restored {
		s.restored[i] = s.steps
	}
	return nil
}

func (s *BoundarySaver) slot(op string, step int, t Tag) (int, int) {
	if step < 0 || step >= s.steps {
		panic(errorf(DataBoundsError, op, "step %d outside of [0, %d)", step, s.steps))
	}
	for i, tt := range s.tags {
		if tt == t {
			return i, (step*len(s.tags) + i) * len(s.ring)
		}
	}
	panic(errorf(LogicError, op, "field %v is not checkpointed", t))
}

// Save copies the ring of every tracked field of g into the store at
// index step.
func (s *BoundarySaver) Save(g *GridBox, step int) {
	const op = "BoundarySaver.Save"
	for _, t := range s.tags {
		i, off := s.slot(op, step, t)
		if s.saved[step][i] {
			panic(errorf(LogicError, op, "step %d of %v already saved", step, t))
		}
		f := g.Get(t).Data
		dst := s.data[off : off+len(s.ring)]
		for j, c := range s.ring {
			dst[j] = f[c]
		}
		s.saved[step][i] = true
	}
}

// Restore writes the ring saved at index step back into the fields tags
// of g, or every tracked field if tags is empty. Restoring a step that
// was not saved, or not strictly before the last step restored for the
// same field, panics with a LogicError.
func (s *BoundarySaver) Restore(g *GridBox, step int, tags ...Tag) {
	const op = "BoundarySaver.Restore"
	if len(tags) == 0 {
		tags = s.tags
	}
	for _, t := range tags {
		i, off := s.slot(op, step, t)
		if step >= s.restored[i] {
			panic(errorf(LogicError, op, "step %d of %v restored after step %d",
				step, t, s.restored[i]))
		}
		if !s.saved[step][i] {
			panic(errorf(LogicError, op, "step %d of %v was never saved", step, t))
		}
		f := g.Get(t).Data
		src := s.data[off : off+len(s.ring)]
		for j, c := range s.ring {
			f[c] = src[j]
		}
		s.saved[step][i] = false
		s.restored[i] = step
	}
}
