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

import "fmt"

// Direction selects which end of an axis an extent is added to.
type Direction int

// Axis ends.
const (
	Front Direction = iota + 1
	Rear
	Both
)

// Axis is the bookkeeping for one spatial dimension. Cells are laid out
// as
//
//	| pad | halo | boundary | physical | boundary | halo | pad |
//
// where the front pad is normally zero and the rear pad rounds the
// row length up for blocking.
type Axis struct {
	PhysicalSize  int
	FrontBoundary int
	RearBoundary  int
	FrontHalo     int
	RearHalo      int
	FrontPad      int
	RearPad       int

	CellSize  float64 // distance between cell centers
	Reference float64 // coordinate of the first physical cell
}

// NewAxis returns an axis with n physical cells of size d.
func NewAxis(n int, d, ref float64) Axis {
	return Axis{PhysicalSize: n, CellSize: d, Reference: ref}
}

func (a *Axis) add(op string, dir Direction, n int, front, rear *int) error {
	if n < 0 {
		return errorf(ConfigurationError, op, "negative length %d", n)
	}
	switch dir {
	case Front:
		*front += n
	case Rear:
		*rear += n
	case Both:
		*front += n
		*rear += n
	default:
		return errorf(ConfigurationError, op, "invalid direction %d", int(dir))
	}
	return nil
}

// AddBoundary adds n boundary cells to the given end(s) of the axis.
func (a *Axis) AddBoundary(dir Direction, n int) error {
	return a.add("Axis.AddBoundary", dir, n, &a.FrontBoundary, &a.RearBoundary)
}

// AddHaloPadding adds n stencil halo cells to the given end(s) of the axis.
func (a *Axis) AddHaloPadding(dir Direction, n int) error {
	return a.add("Axis.AddHaloPadding", dir, n, &a.FrontHalo, &a.RearHalo)
}

// AddAlignmentPadding adds n unused cells to the given end(s) of the axis.
func (a *Axis) AddAlignmentPadding(dir Direction, n int) error {
	return a.add("Axis.AddAlignmentPadding", dir, n, &a.FrontPad, &a.RearPad)
}

// LogicalSize is the physical size plus boundaries and halos.
func (a Axis) LogicalSize() int {
	return a.PhysicalSize + a.FrontBoundary + a.RearBoundary + a.FrontHalo + a.RearHalo
}

// ActualSize is the allocated size: the logical size plus alignment padding.
func (a Axis) ActualSize() int {
	return a.LogicalSize() + a.FrontPad + a.RearPad
}

// ComputationSize is the number of cells a kernel visits along the
// axis: everything except the halo.
func (a Axis) ComputationSize() int {
	return a.PhysicalSize + a.FrontBoundary + a.RearBoundary + a.FrontPad + a.RearPad
}

// PhysicalStart is the logical index of the first physical cell.
func (a Axis) PhysicalStart() int {
	return a.FrontPad + a.FrontHalo + a.FrontBoundary
}

// PhysicalRange returns the half-open range of physical cells.
func (a Axis) PhysicalRange() (start, end int) {
	start = a.PhysicalStart()
	return start, start + a.PhysicalSize
}

// StepRange returns the half-open range of cells a kernel writes: the
// physical cells and the boundary layers, but not the halo.
func (a Axis) StepRange() (start, end int) {
	start = a.FrontPad + a.FrontHalo
	return start, a.FrontPad + a.LogicalSize() - a.RearHalo
}

// Coordinate returns the position of the cell at logical index i.
func (a Axis) Coordinate(i int) float64 {
	return a.Reference + float64(i-a.PhysicalStart())*a.CellSize
}

// AlignTo pads the rear of the axis so that the actual size is a
// multiple of n. It returns the number of cells added.
func (a *Axis) AlignTo(n int) int {
	if n <= 1 {
		return 0
	}
	rem := a.ActualSize() % n
	if rem == 0 {
		return 0
	}
	a.RearPad += n - rem
	return n - rem
}

func (a Axis) String() string {
	return fmt.Sprintf("{n=%d bound=%d/%d halo=%d/%d pad=%d/%d d=%g}",
		a.PhysicalSize, a.FrontBoundary, a.RearBoundary, a.FrontHalo, a.RearHalo,
		a.FrontPad, a.RearPad, a.CellSize)
}

// Axis3 holds the axes of a domain. Y has a physical size of 1 and no
// extents for 2-D problems.
type Axis3 struct {
	X, Y, Z Axis
}

// Is2D reports whether the domain has a single cell along y.
func (a Axis3) Is2D() bool { return a.Y.LogicalSize() == 1 }

// Dims returns the actual sizes along x, y and z.
func (a Axis3) Dims() (nx, ny, nz int) {
	return a.X.ActualSize(), a.Y.ActualSize(), a.Z.ActualSize()
}

// Cells returns the number of allocated cells.
func (a Axis3) Cells() int {
	nx, ny, nz := a.Dims()
	return nx * ny * nz
}

// Extend adds boundary and halo cells to every axis that has more than
// one physical cell, then pads x to a multiple of align.
func (a *Axis3) Extend(boundary, halo, align int) error {
	axes := []*Axis{&a.X, &a.Z}
	if a.Y.PhysicalSize > 1 {
		axes = append(axes, &a.Y)
	}
	for _, ax := range axes {
		if err := ax.AddBoundary(Both, boundary); err != nil {
			return err
		}
		if err := ax.AddHaloPadding(Both, halo); err != nil {
			return err
		}
	}
	a.X.AlignTo(align)
	return nil
}
