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
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// Model holds the parameter volumes of the subsurface over its physical
// cells. Volumes are shaped (ny, nz, nx).
type Model struct {
	Axes     Axis3
	Velocity *sparse.DenseArray
	Density  *sparse.DenseArray // optional
}

// NewModel returns a model over the given physical cell counts and
// sizes, with a homogeneous velocity v and no density.
func NewModel(nx, ny, nz int, dx, dy, dz, v float64) *Model {
	m := &Model{
		Axes: Axis3{
			X: NewAxis(nx, dx, 0),
			Y: NewAxis(ny, dy, 0),
			Z: NewAxis(nz, dz, 0),
		},
		Velocity: sparse.ZerosDense(ny, nz, nx),
	}
	for i := range m.Velocity.Elements {
		m.Velocity.Elements[i] = v
	}
	return m
}

// MaxVelocity returns the largest velocity of the model.
func (m *Model) MaxVelocity() float64 { return floats.Max(m.Velocity.Elements) }

// Check verifies that the volumes match the axes and that velocities and
// densities are positive.
func (m *Model) Check() error {
	const op = "Model.Check"
	want := []int{m.Axes.Y.PhysicalSize, m.Axes.Z.PhysicalSize, m.Axes.X.PhysicalSize}
	for _, v := range []struct {
		name string
		d    *sparse.DenseArray
	}{{"velocity", m.Velocity}, {"density", m.Density}} {
		if v.d == nil {
			if v.name == "velocity" {
				return errorf(ConfigurationError, op, "missing velocity model")
			}
			continue
		}
		if len(v.d.Shape) != 3 || v.d.Shape[0] != want[0] || v.d.Shape[1] != want[1] || v.d.Shape[2] != want[2] {
			return errorf(DataBoundsError, op, "%s has shape %v, want %v", v.name, v.d.Shape, want)
		}
		if floats.Min(v.d.Elements) <= 0 {
			return errorf(ConfigurationError, op, "%s must be > 0 everywhere", v.name)
		}
	}
	for _, a := range []Axis{m.Axes.X, m.Axes.Y, m.Axes.Z} {
		if !(a.CellSize > 0) {
			return errorf(ConfigurationError, op, "cell sizes must be > 0, got %g", a.CellSize)
		}
	}
	return nil
}

// ModelHandler builds grids holding a model.
type ModelHandler struct {
	Model  *Model
	Params *ComputationParameters
}

// NewGridBox returns a grid over the model with its full-model
// parameters registered and filled over the physical cells. Density is
// registered for the first order equation only, as ones when the model
// has none. Boundaries are left for the boundary manager.
func (h *ModelHandler) NewGridBox() (*GridBox, error) {
	if err := h.Model.Check(); err != nil {
		return nil, err
	}
	g, err := NewGridBox(h.Model.Axes, h.Params)
	if err != nil {
		return nil, err
	}
	if err = h.register(g, VelocityParm, h.Model.Velocity); err != nil {
		return nil, err
	}
	if h.Params.EquationOrder == FirstOrder {
		d := h.Model.Density
		if d == nil {
			d = sparse.ZerosDense(h.Model.Velocity.Shape...)
			for i := range d.Elements {
				d.Elements[i] = 1
			}
		}
		if err = h.register(g, DensityParm, d); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (h *ModelHandler) register(g *GridBox, t Tag, d *sparse.DenseArray) error {
	f, err := g.NewField(true)
	if err != nil {
		return err
	}
	if err = f.SetDense(d, g.Full.X.PhysicalStart(), g.Full.Y.PhysicalStart(), g.Full.Z.PhysicalStart()); err != nil {
		return err
	}
	return g.RegisterParameter(t, f)
}
