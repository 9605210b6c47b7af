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

// Package synthetic builds layered subsurface models and regular
// acquisition geometries for forward modelling and testing.
package synthetic

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/sparse"
	"github.com/seismicimaging/rtm"
)

// Layer is a constant-property layer below the surface
// z = Top + Slope·x, where x and z are in meters.
type Layer struct {
	Top      float64
	Slope    float64
	Velocity float64 // [m/s]
	Density  float64 // [kg/m³]; 0 for none, or 1000 if other layers have one
}

// LayeredModel describes a model made of stacked layers. Every cell
// takes the properties of the deepest layer whose top is at or above
// the cell center.
type LayeredModel struct {
	Nx, Ny, Nz int
	DX, DY, DZ float64

	// X0, Y0 and Z0 are the coordinates of the first cell.
	X0, Y0, Z0 float64

	Layers []Layer `toml:"Layer"`
}

// ReadLayeredModel decodes a TOML model description from r.
func ReadLayeredModel(r io.Reader) (*LayeredModel, error) {
	m := new(LayeredModel)
	if _, err := toml.DecodeReader(r, m); err != nil {
		return nil, fmt.Errorf("synthetic: decoding layered model: %v", err)
	}
	return m, nil
}

// ReadLayeredModelFile decodes the TOML model description at path.
func ReadLayeredModelFile(path string) (*LayeredModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rtm.NewError(rtm.CollaboratorIOError, "synthetic.ReadLayeredModelFile", "%v", err)
	}
	defer f.Close()
	return ReadLayeredModel(f)
}

func (m *LayeredModel) check() error {
	const op = "LayeredModel.Model"
	if m.Nx < 1 || m.Ny < 1 || m.Nz < 1 {
		return rtm.NewError(rtm.ConfigurationError, op, "invalid size %dx%dx%d", m.Nx, m.Ny, m.Nz)
	}
	if !(m.DX > 0 && m.DZ > 0) || (m.Ny > 1 && !(m.DY > 0)) {
		return rtm.NewError(rtm.ConfigurationError, op, "invalid cell size %gx%gx%g", m.DX, m.DY, m.DZ)
	}
	if len(m.Layers) == 0 {
		return rtm.NewError(rtm.ConfigurationError, op, "no layers")
	}
	for i, l := range m.Layers {
		if !(l.Velocity > 0) || l.Density < 0 {
			return rtm.NewError(rtm.ConfigurationError, op, "layer %d: velocity %g, density %g", i, l.Velocity, l.Density)
		}
	}
	return nil
}

// Model builds the model. Cells above every layer take the properties
// of the shallowest one.
func (m *LayeredModel) Model() (*rtm.Model, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	layers := append([]Layer(nil), m.Layers...)
	sort.SliceStable(layers, func(i, j int) bool { return layers[i].Top < layers[j].Top })
	dy := m.DY
	if dy == 0 {
		dy = m.DX
	}
	out := &rtm.Model{
		Axes: rtm.Axis3{
			X: rtm.NewAxis(m.Nx, m.DX, m.X0),
			Y: rtm.NewAxis(m.Ny, dy, m.Y0),
			Z: rtm.NewAxis(m.Nz, m.DZ, m.Z0),
		},
		Velocity: sparse.ZerosDense(m.Ny, m.Nz, m.Nx),
	}
	withDensity := false
	for _, l := range layers {
		withDensity = withDensity || l.Density > 0
	}
	if withDensity {
		out.Density = sparse.ZerosDense(m.Ny, m.Nz, m.Nx)
	}
	for ix := 0; ix < m.Nx; ix++ {
		x := m.X0 + float64(ix)*m.DX
		for iz := 0; iz < m.Nz; iz++ {
			z := m.Z0 + float64(iz)*m.DZ
			l := layers[0]
			for _, ll := range layers[1:] {
				if ll.Top+ll.Slope*x <= z {
					l = ll
				}
			}
			rho := l.Density
			if rho == 0 {
				rho = 1000
			}
			for iy := 0; iy < m.Ny; iy++ {
				out.Velocity.Set(l.Velocity, iy, iz, ix)
				if withDensity {
					out.Density.Set(rho, iy, iz, ix)
				}
			}
		}
	}
	return out, nil
}

// Acquisition is a regular line of shots and receivers, in cells. In
// 3-D the line runs along x through the middle of the model.
type Acquisition struct {
	ShotCount   int
	FirstShot   int
	ShotSpacing int
	SourceDepth int

	// ReceiverSpacing of 0 puts a receiver on every cell.
	ReceiverSpacing int
	ReceiverDepth   int
}

// Shots returns the shots of the acquisition over m, with empty
// traces. Shot identifiers count from 0.
func (a Acquisition) Shots(m *rtm.Model) ([]*rtm.Shot, error) {
	const op = "Acquisition.Shots"
	nx, ny, nz := m.Axes.X.PhysicalSize, m.Axes.Y.PhysicalSize, m.Axes.Z.PhysicalSize
	if a.ShotCount < 1 {
		return nil, rtm.NewError(rtm.ConfigurationError, op, "no shots")
	}
	if a.SourceDepth < 0 || a.SourceDepth >= nz || a.ReceiverDepth < 0 || a.ReceiverDepth >= nz {
		return nil, rtm.NewError(rtm.DataBoundsError, op, "source depth %d or receiver depth %d outside of [0, %d)",
			a.SourceDepth, a.ReceiverDepth, nz)
	}
	rs := a.ReceiverSpacing
	if rs < 1 {
		rs = 1
	}
	y := ny / 2
	var receivers []rtm.Cell
	for ix := 0; ix < nx; ix += rs {
		receivers = append(receivers, rtm.Cell{X: ix, Y: y, Z: a.ReceiverDepth})
	}
	shots := make([]*rtm.Shot, a.ShotCount)
	for i := range shots {
		sx := a.FirstShot + i*a.ShotSpacing
		if sx < 0 || sx >= nx {
			return nil, rtm.NewError(rtm.DataBoundsError, op, "shot %d at x=%d outside of [0, %d)", i, sx, nx)
		}
		shots[i] = &rtm.Shot{
			ID:        i,
			Source:    rtm.Cell{X: sx, Y: y, Z: a.SourceDepth},
			Receivers: receivers,
		}
	}
	return shots, nil
}
