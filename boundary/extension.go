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

	"github.com/seismicimaging/rtm"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Extension fills the boundary layers of a parameter field from its
// physical cells.
type Extension interface {
	Extend(f *rtm.Field, a rtm.Axis3)
}

// forBoundary calls fn for every boundary cell of a: the cells a kernel
// steps that are not physical. cx, cy and cz are the nearest physical
// cell and depth is the largest number of cells between the cell and
// the physical region, over the three axes.
func forBoundary(a rtm.Axis3, fn func(ix, iy, iz, cx, cy, cz, depth int)) {
	x0, x1 := a.X.StepRange()
	y0, y1 := a.Y.StepRange()
	z0, z1 := a.Z.StepRange()
	xs, xe := a.X.PhysicalRange()
	ys, ye := a.Y.PhysicalRange()
	zs, ze := a.Z.PhysicalRange()
	for iy := y0; iy < y1; iy++ {
		cy, dy := clamp(iy, ys, ye)
		for iz := z0; iz < z1; iz++ {
			cz, dz := clamp(iz, zs, ze)
			for ix := x0; ix < x1; ix++ {
				cx, dx := clamp(ix, xs, xe)
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				d := dx
				if dy > d {
					d = dy
				}
				if dz > d {
					d = dz
				}
				fn(ix, iy, iz, cx, cy, cz, d)
			}
		}
	}
}

// clamp returns the index in [s, e) nearest to i and the distance to it.
func clamp(i, s, e int) (int, int) {
	switch {
	case i < s:
		return s, s - i
	case i >= e:
		return e - 1, i - e + 1
	}
	return i, 0
}

// zeroExtension sets every boundary cell to zero.
type zeroExtension struct{}

func (zeroExtension) Extend(f *rtm.Field, a rtm.Axis3) {
	forBoundary(a, func(ix, iy, iz, _, _, _, _ int) {
		f.Set(0, ix, iy, iz)
	})
}

// homogeneousExtension copies the nearest physical value into every
// boundary cell. Without top, the boundary above the model is zero.
type homogeneousExtension struct {
	top bool
}

func (h homogeneousExtension) Extend(f *rtm.Field, a rtm.Axis3) {
	zs := a.Z.PhysicalStart()
	forBoundary(a, func(ix, iy, iz, cx, cy, cz, _ int) {
		if !h.top && iz < zs {
			f.Set(0, ix, iy, iz)
			return
		}
		f.Set(f.At(cx, cy, cz), ix, iy, iz)
	})
}

// randomExtension fills the boundary with grains of random values that
// drift away from the edge value as the depth into the boundary grows.
type randomExtension struct {
	top       bool
	length    int // boundary length
	grainSize int
	seed      uint64
}

func (r randomExtension) Extend(f *rtm.Field, a rtm.Axis3) {
	if r.length == 0 {
		return
	}
	vmax := maxPhysical(f, a)
	u := distuv.Uniform{Min: 0, Max: 1, Src: rand.NewSource(r.seed)}
	grains := make(map[[3]int]float64)
	zs := a.Z.PhysicalStart()
	forBoundary(a, func(ix, iy, iz, cx, cy, cz, depth int) {
		if !r.top && iz < zs {
			f.Set(0, ix, iy, iz)
			return
		}
		key := [3]int{ix / r.grainSize, iy / r.grainSize, iz / r.grainSize}
		g, ok := grains[key]
		if !ok {
			g = u.Rand()
			grains[key] = g
		}
		frac := float64(depth) / float64(r.length)
		if frac > 1 {
			frac = 1
		}
		f.Set(math.Abs(f.At(cx, cy, cz)-g*frac*vmax), ix, iy, iz)
	})
}

// maxPhysical returns the largest value of the physical cells of f.
func maxPhysical(f *rtm.Field, a rtm.Axis3) float64 {
	xs, xe := a.X.PhysicalRange()
	ys, ye := a.Y.PhysicalRange()
	zs, ze := a.Z.PhysicalRange()
	max := math.Inf(-1)
	for iy := ys; iy < ye; iy++ {
		for iz := zs; iz < ze; iz++ {
			row := f.Index(xs, iy, iz)
			if m := floats.Max(f.Data[row : row+xe-xs]); m > max {
				max = m
			}
		}
	}
	return max
}

// zeroTop sets the boundary above the physical region of f to zero.
func zeroTop(f *rtm.Field, a rtm.Axis3) {
	zs := a.Z.PhysicalStart()
	forBoundary(a, func(ix, iy, iz, _, _, _, _ int) {
		if iz < zs {
			f.Set(0, ix, iy, iz)
		}
	})
}
