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
	"sync"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// compensationEpsilon keeps the compensated image finite where a cell
// is not illuminated.
const compensationEpsilon = 1e-20

// ImageStack is the image stacked over all shots, over the physical
// cells of the full model. It is safe for concurrent use.
type ImageStack struct {
	mu    sync.Mutex
	axes  Axis3
	comp  Compensation
	shots int

	image, srcIllum, rcvIllum *Field
}

// NewImageStack returns an empty stack over the full model of g.
func NewImageStack(g *GridBox) (*ImageStack, error) {
	s := &ImageStack{axes: g.Full, comp: g.Params().Compensation}
	var err error
	if s.image, err = g.NewField(true); err != nil {
		return nil, err
	}
	if s.comp == CombinedCompensation {
		if s.srcIllum, err = g.NewField(true); err != nil {
			return nil, err
		}
		if s.rcvIllum, err = g.NewField(true); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Shots returns the number of shots stacked so far.
func (s *ImageStack) Shots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shots
}

// CrossCorrelation builds the image of a single shot by correlating the
// reconstructed forward wavefield with the back-propagated receiver
// wavefield of the main grid.
type CrossCorrelation struct {
	grid  *GridBox
	stack *ImageStack
	tiles []block

	image, srcIllum, rcvIllum *Field
	stacked                   bool
}

// NewCrossCorrelation returns a correlation over the window of g that
// stacks into s.
func NewCrossCorrelation(g *GridBox, s *ImageStack) (*CrossCorrelation, error) {
	c := &CrossCorrelation{grid: g, stack: s, tiles: physicalBlocks(g.Window, g.Params())}
	var err error
	if c.image, err = g.NewField(false); err != nil {
		return nil, err
	}
	if s.comp == CombinedCompensation {
		if c.srcIllum, err = g.NewField(false); err != nil {
			return nil, err
		}
		if c.rcvIllum, err = g.NewField(false); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ShotImage returns the image of the current shot over the window.
func (c *CrossCorrelation) ShotImage() *Field { return c.image }

// ResetShotCorrelation zeroes the shot image and illumination. It must
// be called before the backward pass of every shot.
func (c *CrossCorrelation) ResetShotCorrelation() {
	c.image.Zero()
	if c.srcIllum != nil {
		c.srcIllum.Zero()
		c.rcvIllum.Zero()
	}
	c.stacked = false
}

// Correlate adds the product of the forward pressure of fwd and the
// backward pressure of the main grid to the shot image at every
// physical cell.
func (c *CrossCorrelation) Correlate(fwd *GridBox) {
	f := fwd.Get(PressureCurr)
	fd := f.Data
	bd := c.grid.Get(PressureCurr).Data
	img := c.image.Data
	var src, rcv []float64
	if c.srcIllum != nil {
		src, rcv = c.srcIllum.Data, c.rcvIllum.Data
	}
	parallelBlocks(c.tiles, func(b block) {
		for iy := b.y0; iy < b.y1; iy++ {
			for iz := b.z0; iz < b.z1; iz++ {
				row := f.Index(0, iy, iz)
				for p := row + b.x0; p < row+b.x1; p++ {
					img[p] += fd[p] * bd[p]
					if src != nil {
						src[p] += fd[p] * fd[p]
						rcv[p] += bd[p] * bd[p]
					}
				}
			}
		}
	})
}

// Stack adds the shot image into the image stack at the position of the
// window. It must be called exactly once per shot.
func (c *CrossCorrelation) Stack() {
	if c.stacked {
		panic(errorf(LogicError, "CrossCorrelation.Stack", "shot already stacked"))
	}
	c.stacked = true
	g := c.grid
	s := c.stack
	s.mu.Lock()
	defer s.mu.Unlock()
	wx, wy, wz := g.Window.X.PhysicalStart(), g.Window.Y.PhysicalStart(), g.Window.Z.PhysicalStart()
	fx, fy, fz := s.axes.X.PhysicalStart()+g.StartX, s.axes.Y.PhysicalStart()+g.StartY,
		s.axes.Z.PhysicalStart()+g.StartZ
	nx := g.Window.X.PhysicalSize
	for iy := 0; iy < g.Window.Y.PhysicalSize; iy++ {
		for iz := 0; iz < g.Window.Z.PhysicalSize; iz++ {
			src := c.image.Index(wx, wy+iy, wz+iz)
			dst := s.image.Index(fx, fy+iy, fz+iz)
			out := s.image.Data[dst : dst+nx]
			img := c.image.Data[src : src+nx]
			if s.comp != CombinedCompensation {
				floats.Add(out, img)
				continue
			}
			si := c.srcIllum.Data[src : src+nx]
			ri := c.rcvIllum.Data[src : src+nx]
			for i := range out {
				out[i] += img[i] / (math.Sqrt(si[i]*ri[i]) + compensationEpsilon)
			}
			floats.Add(s.srcIllum.Data[dst:dst+nx], si)
			floats.Add(s.rcvIllum.Data[dst:dst+nx], ri)
		}
	}
	s.shots++
}

// MigrationData is the final image, over the physical cells of the full
// model. Arrays are shaped (ny, nz, nx).
type MigrationData struct {
	Nx, Ny, Nz int
	DX, DY, DZ float64
	X0, Y0, Z0 float64 // coordinates of the first cell

	Shots int
	Image *sparse.DenseArray

	// Illumination, only with combined compensation.
	SourceIllumination, ReceiverIllumination *sparse.DenseArray
}

// GetMigrationData extracts the stacked image without halos, boundaries
// or padding.
func (s *ImageStack) GetMigrationData() *MigrationData {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.axes
	x0, x1 := a.X.PhysicalRange()
	y0, y1 := a.Y.PhysicalRange()
	z0, z1 := a.Z.PhysicalRange()
	m := &MigrationData{
		Nx: a.X.PhysicalSize, Ny: a.Y.PhysicalSize, Nz: a.Z.PhysicalSize,
		DX: a.X.CellSize, DY: a.Y.CellSize, DZ: a.Z.CellSize,
		X0: a.X.Reference, Y0: a.Y.Reference, Z0: a.Z.Reference,
		Shots: s.shots,
		Image: s.image.Dense(x0, x1, y0, y1, z0, z1),
	}
	if s.srcIllum != nil {
		m.SourceIllumination = s.srcIllum.Dense(x0, x1, y0, y1, z0, z1)
		m.ReceiverIllumination = s.rcvIllum.Dense(x0, x1, y0, y1, z0, z1)
	}
	return m
}
