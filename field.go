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
	"fmt"

	"github.com/ctessum/sparse"
)

// Field is a strided view over a flat buffer holding one value per
// grid cell. X varies fastest, then z, then y.
type Field struct {
	Data       []float64
	Nx, Ny, Nz int
}

// NewField allocates a zeroed field with the given actual dimensions.
func NewField(nx, ny, nz int) *Field {
	return &Field{Data: make([]float64, nx*ny*nz), Nx: nx, Ny: ny, Nz: nz}
}

// Index returns the flat offset of cell (ix, iy, iz).
func (f *Field) Index(ix, iy, iz int) int {
	return (iy*f.Nz+iz)*f.Nx + ix
}

// CheckedIndex is Index with explicit bounds checks on every coordinate.
func (f *Field) CheckedIndex(ix, iy, iz int) (int, error) {
	if ix < 0 || ix >= f.Nx || iy < 0 || iy >= f.Ny || iz < 0 || iz >= f.Nz {
		return 0, errorf(DataBoundsError, "Field.CheckedIndex",
			"cell (%d, %d, %d) outside of %dx%dx%d", ix, iy, iz, f.Nx, f.Ny, f.Nz)
	}
	return f.Index(ix, iy, iz), nil
}

// At returns the value at cell (ix, iy, iz).
func (f *Field) At(ix, iy, iz int) float64 { return f.Data[f.Index(ix, iy, iz)] }

// Set sets the value at cell (ix, iy, iz).
func (f *Field) Set(v float64, ix, iy, iz int) { f.Data[f.Index(ix, iy, iz)] = v }

// Add adds v to the value at cell (ix, iy, iz).
func (f *Field) Add(v float64, ix, iy, iz int) { f.Data[f.Index(ix, iy, iz)] += v }

// StrideZ is the distance between neighbors along z.
func (f *Field) StrideZ() int { return f.Nx }

// StrideY is the distance between neighbors along y.
func (f *Field) StrideY() int { return f.Nx * f.Nz }

// Zero sets every value to zero.
func (f *Field) Zero() {
	for i := range f.Data {
		f.Data[i] = 0
	}
}

// SameShape reports whether f and o have identical dimensions.
func (f *Field) SameShape(o *Field) bool {
	return f.Nx == o.Nx && f.Ny == o.Ny && f.Nz == o.Nz
}

// CopyFrom copies the contents of o, which must have the same shape.
func (f *Field) CopyFrom(o *Field) {
	if !f.SameShape(o) {
		panic(errorf(DataBoundsError, "Field.CopyFrom", "shape %dx%dx%d != %dx%dx%d",
			f.Nx, f.Ny, f.Nz, o.Nx, o.Ny, o.Nz))
	}
	copy(f.Data, o.Data)
}

// Clone returns a deep copy of f.
func (f *Field) Clone() *Field {
	o := NewField(f.Nx, f.Ny, f.Nz)
	copy(o.Data, f.Data)
	return o
}

// Dense converts the region [x0,x1)×[y0,y1)×[z0,z1) of f into an
// array shaped (ny, nz, nx).
func (f *Field) Dense(x0, x1, y0, y1, z0, z1 int) *sparse.DenseArray {
	o := sparse.ZerosDense(y1-y0, z1-z0, x1-x0)
	i := 0
	for iy := y0; iy < y1; iy++ {
		for iz := z0; iz < z1; iz++ {
			row := f.Index(x0, iy, iz)
			i += copy(o.Elements[i:], f.Data[row:row+x1-x0])
		}
	}
	return o
}

// SetDense copies an array shaped (ny, nz, nx) into f with its first
// element at (x0, y0, z0).
func (f *Field) SetDense(d *sparse.DenseArray, x0, y0, z0 int) error {
	if len(d.Shape) != 3 {
		return fmt.Errorf("rtm: Field.SetDense: need a 3-D array, got %d dimensions", len(d.Shape))
	}
	ny, nz, nx := d.Shape[0], d.Shape[1], d.Shape[2]
	if x0+nx > f.Nx || y0+ny > f.Ny || z0+nz > f.Nz || x0 < 0 || y0 < 0 || z0 < 0 {
		return errorf(DataBoundsError, "Field.SetDense", "array %v at (%d,%d,%d) does not fit in %dx%dx%d",
			d.Shape, x0, y0, z0, f.Nx, f.Ny, f.Nz)
	}
	i := 0
	for iy := 0; iy < ny; iy++ {
		for iz := 0; iz < nz; iz++ {
			row := f.Index(x0, y0+iy, z0+iz)
			copy(f.Data[row:row+nx], d.Elements[i:i+nx])
			i += nx
		}
	}
	return nil
}
