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
	"sort"
	"strings"
)

// Tag identifies a buffer held by a GridBox. Tags are built by or-ing
// a kind (Wave or Parm), a quantity, and for wavefields a time slot.
type Tag uint32

// Tag bits.
const (
	Wave Tag = 1 << iota // wavefield
	Parm                 // parameter field
	Wind                 // window copy of a parameter

	Pressure
	ParticleX
	ParticleY
	ParticleZ
	Velocity
	Density

	Curr
	Prev
	Next
)

// Tags used by the kernels.
const (
	PressureCurr = Wave | Pressure | Curr
	PressurePrev = Wave | Pressure | Prev
	PressureNext = Wave | Pressure | Next

	ParticleXCurr = Wave | ParticleX | Curr
	ParticleYCurr = Wave | ParticleY | Curr
	ParticleZCurr = Wave | ParticleZ | Curr

	VelocityParm = Parm | Velocity
	DensityParm  = Parm | Density
)

var tagNames = []struct {
	t    Tag
	name string
}{
	{Wave, "wave"}, {Parm, "parm"}, {Wind, "window"},
	{Pressure, "pressure"}, {ParticleX, "particle-x"}, {ParticleY, "particle-y"},
	{ParticleZ, "particle-z"}, {Velocity, "velocity"}, {Density, "density"},
	{Curr, "curr"}, {Prev, "prev"}, {Next, "next"},
}

func (t Tag) String() string {
	var s []string
	for _, n := range tagNames {
		if t&n.t != 0 {
			s = append(s, n.name)
		}
	}
	if len(s) == 0 {
		return fmt.Sprintf("Tag(%d)", uint32(t))
	}
	return strings.Join(s, "|")
}

// GridBox owns the wavefield and parameter buffers of a propagation.
// Parameters are held twice: over the full model, and over the active
// window (tag | Wind). Wavefields only exist over the window.
type GridBox struct {
	Full   Axis3 // full model, extended with boundaries and halos
	Window Axis3 // active sub-domain, extended the same way

	// Physical cell offsets of the window within the full model.
	StartX, StartY, StartZ int

	NT int     // number of time steps
	DT float64 // time step

	params *ComputationParameters
	fields map[Tag]*Field
}

// NewGridBox returns a grid over the physical axes phys, extended with
// the boundary, halo and alignment that p asks for. The window has the
// full size unless p enables windowing.
func NewGridBox(phys Axis3, p *ComputationParameters) (*GridBox, error) {
	if phys.X.PhysicalSize < 1 || phys.Y.PhysicalSize < 1 || phys.Z.PhysicalSize < 1 {
		return nil, errorf(ConfigurationError, "NewGridBox", "invalid grid size %dx%dx%d",
			phys.X.PhysicalSize, phys.Y.PhysicalSize, phys.Z.PhysicalSize)
	}
	g := &GridBox{params: p, fields: make(map[Tag]*Field)}
	g.Full = phys
	g.Window = phys
	if p.Window.Enabled {
		g.Window.X.PhysicalSize = windowSize(p.Window.LeftX+p.Window.RightX+1, phys.X.PhysicalSize)
		if phys.Y.PhysicalSize > 1 {
			g.Window.Y.PhysicalSize = windowSize(p.Window.LeftY+p.Window.RightY+1, phys.Y.PhysicalSize)
		}
		if p.Window.Depth > 0 {
			g.Window.Z.PhysicalSize = windowSize(p.Window.Depth, phys.Z.PhysicalSize)
		}
	}
	for _, a := range []*Axis3{&g.Full, &g.Window} {
		if err := a.Extend(p.BoundaryLength, p.HalfLength, p.Alignment); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func windowSize(n, max int) int {
	if n > max {
		return max
	}
	return n
}

// Params returns the parameters the grid was built with.
func (g *GridBox) Params() *ComputationParameters { return g.params }

// NewField allocates a zeroed buffer over the window, or over the full
// model when full is true.
func (g *GridBox) NewField(full bool) (*Field, error) {
	a := g.Window
	if full {
		a = g.Full
	}
	if n := a.Cells(); n > g.params.MaxCells {
		return nil, errorf(DeviceResourceError, "GridBox.NewField",
			"%d cells requested, limit is %d", n, g.params.MaxCells)
	}
	nx, ny, nz := a.Dims()
	return NewField(nx, ny, nz), nil
}

// RegisterField attaches a wavefield buffer, which must have the window
// dimensions.
func (g *GridBox) RegisterField(t Tag, f *Field) {
	if t&Wave == 0 {
		panic(errorf(LogicError, "GridBox.RegisterField", "%v is not a wavefield tag", t))
	}
	g.checkShape("GridBox.RegisterField", t, f)
	g.fields[t] = f
}

// AllocateField allocates and registers a zeroed wavefield.
func (g *GridBox) AllocateField(t Tag) error {
	f, err := g.NewField(false)
	if err != nil {
		return err
	}
	g.RegisterField(t, f)
	return nil
}

// RegisterParameter attaches a full-model parameter buffer and
// allocates its window copy.
func (g *GridBox) RegisterParameter(t Tag, full *Field) error {
	if t&Parm == 0 || t&Wind != 0 {
		panic(errorf(LogicError, "GridBox.RegisterParameter", "%v is not a parameter tag", t))
	}
	g.checkShape("GridBox.RegisterParameter", t, full)
	w, err := g.NewField(false)
	if err != nil {
		return err
	}
	g.fields[t] = full
	g.fields[t|Wind] = w
	return nil
}

func (g *GridBox) checkShape(op string, t Tag, f *Field) {
	a := g.Window
	if t&Parm != 0 && t&Wind == 0 {
		a = g.Full
	}
	nx, ny, nz := a.Dims()
	if f.Nx != nx || f.Ny != ny || f.Nz != nz {
		panic(errorf(DataBoundsError, op, "%v: buffer is %dx%dx%d, grid is %dx%dx%d",
			t, f.Nx, f.Ny, f.Nz, nx, ny, nz))
	}
}

// Has reports whether a buffer is registered under t.
func (g *GridBox) Has(t Tag) bool {
	_, ok := g.fields[t]
	return ok
}

// Get returns the buffer registered under t. It panics if there is none.
func (g *GridBox) Get(t Tag) *Field {
	f, ok := g.fields[t]
	if !ok {
		panic(errorf(LogicError, "GridBox.Get", "no buffer registered as %v", t))
	}
	return f
}

// Set replaces the buffer registered under t.
func (g *GridBox) Set(t Tag, f *Field) {
	if _, ok := g.fields[t]; !ok {
		panic(errorf(LogicError, "GridBox.Set", "no buffer registered as %v", t))
	}
	g.checkShape("GridBox.Set", t, f)
	g.fields[t] = f
}

// Swap exchanges the buffers registered under a and b.
func (g *GridBox) Swap(a, b Tag) {
	fa, fb := g.Get(a), g.Get(b)
	g.fields[a], g.fields[b] = fb, fa
}

// Tags returns the registered tags in increasing order.
func (g *GridBox) Tags() []Tag {
	t := make([]Tag, 0, len(g.fields))
	for k := range g.fields {
		t = append(t, k)
	}
	sort.Slice(t, func(i, j int) bool { return t[i] < t[j] })
	return t
}

// WaveTags returns the registered wavefield tags in increasing order.
func (g *GridBox) WaveTags() []Tag {
	var o []Tag
	for _, t := range g.Tags() {
		if t&Wave != 0 {
			o = append(o, t)
		}
	}
	return o
}

// ZeroWavefields sets every wavefield to zero.
func (g *GridBox) ZeroWavefields() {
	for _, t := range g.WaveTags() {
		g.fields[t].Zero()
	}
}

// CloneLayout returns a grid with the same axes, window and time
// stepping, sharing the full-model parameters, with copies of the
// window parameters and new zeroed wavefields.
func (g *GridBox) CloneLayout() (*GridBox, error) {
	o := &GridBox{
		Full: g.Full, Window: g.Window,
		StartX: g.StartX, StartY: g.StartY, StartZ: g.StartZ,
		NT: g.NT, DT: g.DT,
		params: g.params,
		fields: make(map[Tag]*Field, len(g.fields)),
	}
	for t, f := range g.fields {
		switch {
		case t&Parm != 0 && t&Wind == 0:
			o.fields[t] = f
		case t&Wind != 0:
			o.fields[t] = f.Clone()
		default:
			n, err := o.NewField(false)
			if err != nil {
				return nil, err
			}
			o.fields[t] = n
		}
	}
	return o, nil
}

// CopyWindowParameters copies the window parameters of src into g.
func (g *GridBox) CopyWindowParameters(src *GridBox) {
	for t, f := range g.fields {
		if t&Wind != 0 {
			f.CopyFrom(src.Get(t))
		}
	}
}

// SetupWindow places the window around the physical source cell
// (sx, sy) of the full model and copies the full-model parameters of
// the physical region into the window parameters. The window
// boundaries are left for the boundary manager to fill.
func (g *GridBox) SetupWindow(sx, sy int) error {
	const op = "GridBox.SetupWindow"
	if sx < 0 || sx >= g.Full.X.PhysicalSize || sy < 0 || sy >= g.Full.Y.PhysicalSize {
		return errorf(DataBoundsError, op, "source cell (%d, %d) outside of the %dx%d model",
			sx, sy, g.Full.X.PhysicalSize, g.Full.Y.PhysicalSize)
	}
	w := g.params.Window
	g.StartX, g.StartY, g.StartZ = 0, 0, 0
	if w.Enabled {
		g.StartX = clampStart(sx-w.LeftX, g.Full.X.PhysicalSize-g.Window.X.PhysicalSize)
		if !g.Full.Is2D() {
			g.StartY = clampStart(sy-w.LeftY, g.Full.Y.PhysicalSize-g.Window.Y.PhysicalSize)
		}
	}
	g.Window.X.Reference = g.Full.X.Coordinate(g.Full.X.PhysicalStart() + g.StartX)
	g.Window.Y.Reference = g.Full.Y.Coordinate(g.Full.Y.PhysicalStart() + g.StartY)

	fx, fy, fz := g.Full.X.PhysicalStart(), g.Full.Y.PhysicalStart(), g.Full.Z.PhysicalStart()
	wx, wy, wz := g.Window.X.PhysicalStart(), g.Window.Y.PhysicalStart(), g.Window.Z.PhysicalStart()
	nx, ny, nz := g.Window.X.PhysicalSize, g.Window.Y.PhysicalSize, g.Window.Z.PhysicalSize
	for t, full := range g.fields {
		if t&Parm == 0 || t&Wind != 0 {
			continue
		}
		win := g.fields[t|Wind]
		if !w.Enabled {
			win.CopyFrom(full)
			continue
		}
		win.Zero()
		for iy := 0; iy < ny; iy++ {
			for iz := 0; iz < nz; iz++ {
				src := full.Index(fx+g.StartX, fy+g.StartY+iy, fz+g.StartZ+iz)
				dst := win.Index(wx, wy+iy, wz+iz)
				copy(win.Data[dst:dst+nx], full.Data[src:src+nx])
			}
		}
	}
	return nil
}

func clampStart(s, max int) int {
	if s > max {
		s = max
	}
	if s < 0 {
		s = 0
	}
	return s
}

// WindowCell converts a physical cell of the full model into the window
// logical index. ok is false when the cell lies outside the physical
// part of the window.
func (g *GridBox) WindowCell(gx, gy, gz int) (ix, iy, iz int, ok bool) {
	lx, ly, lz := gx-g.StartX, gy-g.StartY, gz-g.StartZ
	if lx < 0 || lx >= g.Window.X.PhysicalSize || ly < 0 || ly >= g.Window.Y.PhysicalSize ||
		lz < 0 || lz >= g.Window.Z.PhysicalSize {
		return 0, 0, 0, false
	}
	return g.Window.X.PhysicalStart() + lx, g.Window.Y.PhysicalStart() + ly,
		g.Window.Z.PhysicalStart() + lz, true
}
