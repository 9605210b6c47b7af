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

import "testing"

func TestAxisSizes(t *testing.T) {
	a := NewAxis(100, 10, 0)
	if err := a.AddBoundary(Both, 20); err != nil {
		t.Fatal(err)
	}
	if err := a.AddHaloPadding(Both, 4); err != nil {
		t.Fatal(err)
	}
	if err := a.AddAlignmentPadding(Rear, 3); err != nil {
		t.Fatal(err)
	}
	if err := a.AddBoundary(Front, 1); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name      string
		got, want int
	}{
		{"logical", a.LogicalSize(), 100 + 41 + 8},
		{"actual", a.ActualSize(), 100 + 41 + 8 + 3},
		{"computation", a.ComputationSize(), 100 + 41 + 3},
		{"physical start", a.PhysicalStart(), 4 + 21},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.got != test.want {
				t.Errorf("%d != %d", test.got, test.want)
			}
		})
	}
	if a.LogicalSize() > a.ActualSize() {
		t.Error("logical size larger than actual size")
	}
	s, e := a.StepRange()
	if s != 4 || e != 4+100+41 {
		t.Errorf("step range [%d, %d)", s, e)
	}
	if c := a.Coordinate(a.PhysicalStart() + 3); c != 30 {
		t.Errorf("coordinate %g", c)
	}
}

func TestAxisDirection(t *testing.T) {
	a := NewAxis(10, 1, 0)
	for _, f := range []func(Direction, int) error{a.AddBoundary, a.AddHaloPadding, a.AddAlignmentPadding} {
		if err := f(Direction(7), 1); !IsKind(err, ConfigurationError) {
			t.Errorf("invalid direction: %v", err)
		}
		if err := f(Both, -1); !IsKind(err, ConfigurationError) {
			t.Errorf("negative length: %v", err)
		}
	}
	if a.LogicalSize() != 10 || a.ActualSize() != 10 {
		t.Errorf("rejected extents were applied: %v", a)
	}
}

func TestAlignTo(t *testing.T) {
	a := NewAxis(23, 1, 0)
	a.AddHaloPadding(Both, 4)
	if n := a.AlignTo(16); n != 1 {
		t.Errorf("added %d cells", n)
	}
	if a.ActualSize()%16 != 0 || a.FrontPad != 0 {
		t.Errorf("actual size %d, front pad %d", a.ActualSize(), a.FrontPad)
	}
	if n := a.AlignTo(16); n != 0 {
		t.Errorf("aligned axis padded again by %d", n)
	}
	if n := a.AlignTo(1); n != 0 {
		t.Errorf("alignment 1 padded %d", n)
	}
}

func TestAxis3Extend(t *testing.T) {
	a := Axis3{X: NewAxis(30, 1, 0), Y: NewAxis(1, 1, 0), Z: NewAxis(20, 1, 0)}
	if err := a.Extend(5, 2, 8); err != nil {
		t.Fatal(err)
	}
	if !a.Is2D() {
		t.Error("not 2-D")
	}
	nx, ny, nz := a.Dims()
	if nx != 48 || ny != 1 || nz != 34 {
		t.Errorf("dims %d %d %d", nx, ny, nz)
	}
	if a.Cells() != nx*ny*nz {
		t.Errorf("cells %d", a.Cells())
	}
	b := Axis3{X: NewAxis(3, 1, 0), Y: NewAxis(3, 1, 0), Z: NewAxis(3, 1, 0)}
	if err := b.Extend(1, 1, 0); err != nil {
		t.Fatal(err)
	}
	if b.Is2D() || b.Y.LogicalSize() != 7 {
		t.Errorf("y axis %v", b.Y)
	}
}
