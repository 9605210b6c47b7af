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

// Mode is the direction in which a kernel propagates.
type Mode int

// Propagation modes.
const (
	Forward Mode = iota + 1
	Inverse      // reconstruct an earlier state from a later one
	Adjoint      // back-propagate receiver data
)

func (m Mode) String() string {
	switch m {
	case Forward:
		return "forward"
	case Inverse:
		return "inverse"
	case Adjoint:
		return "adjoint"
	}
	return "unknown"
}

// Update names the part of a time step after which a boundary manager
// acts. The second order kernel updates the pressure only; the first
// order kernel updates the particle velocities and then the pressure.
type Update int

// Updates of a time step.
const (
	PressureUpdate Update = iota + 1
	VelocityUpdate
)

// BoundaryManager keeps waves leaving the domain from reflecting back
// into it.
type BoundaryManager interface {
	// ExtendModel fills the boundary layers of the full-model parameters.
	// It is called once after the model is loaded.
	ExtendModel()

	// ReExtendModel fills the boundary layers of the window parameters.
	// It is called for every shot after the window has been placed and
	// before the parameters are converted for the kernel.
	ReExtendModel()

	// ApplyBoundary is called by the kernel after each update of a
	// forward or adjoint step, before any later update reads the
	// updated fields.
	ApplyBoundary(u Update)

	// AdjustModelForBackward prepares the window for the backward pass.
	AdjustModelForBackward()
}

// Kernel advances the wavefields of a GridBox by one time step.
type Kernel interface {
	// Step advances the wavefields by one time step, applying the
	// boundary manager, if any, after each update.
	Step()

	// SetMode sets the propagation mode.
	SetMode(Mode) error
	Mode() Mode

	// Grid returns the grid the kernel operates on.
	Grid() *GridBox

	// SetBoundaryManager sets the boundary manager applied during every
	// step. It may be nil.
	SetBoundaryManager(BoundaryManager)

	// PreprocessModel converts the window parameters from physical
	// units into the factors the stencil uses.
	PreprocessModel()

	// StateTags lists the wavefields whose boundary rings must be saved
	// to reconstruct the propagation backwards in time.
	StateTags() []Tag

	// Clone returns a kernel of the same kind operating on g, which must
	// have the same layout as the kernel's grid. The clone has no
	// boundary manager and runs in forward mode.
	Clone(g *GridBox) (Kernel, error)
}

// NewKernel returns the kernel for the equation order of the grid's
// parameters and registers the wavefields it needs.
func NewKernel(g *GridBox) (Kernel, error) {
	switch g.Params().EquationOrder {
	case SecondOrder:
		return newSecondOrderKernel(g)
	case FirstOrder:
		return newStaggeredKernel(g)
	}
	return nil, errorf(ConfigurationError, "NewKernel", "unsupported equation order %d",
		int(g.Params().EquationOrder))
}

func checkMode(m Mode) error {
	switch m {
	case Forward, Inverse, Adjoint:
		return nil
	}
	return errorf(ConfigurationError, "Kernel.SetMode", "unsupported mode %d", int(m))
}

func registerMissing(g *GridBox, tags ...Tag) error {
	for _, t := range tags {
		if g.Has(t) {
			continue
		}
		if err := g.AllocateField(t); err != nil {
			return err
		}
	}
	return nil
}

// secondOrder solves the second order acoustic wave equation
// for pressure with a centered 2·halfLength order stencil.
type secondOrder struct {
	grid  *GridBox
	bm    BoundaryManager
	mode  Mode
	tiles []block

	c0         float64   // center coefficient scaled by Σ 1/d²
	cx, cy, cz []float64 // off-center coefficients scaled by 1/d²
	sy, sz     int       // strides
}

func newSecondOrderKernel(g *GridBox) (*secondOrder, error) {
	if err := registerMissing(g, PressureCurr, PressurePrev, PressureNext); err != nil {
		return nil, err
	}
	p := g.Params()
	k := &secondOrder{grid: g, mode: Forward, tiles: stepBlocks(g.Window, p)}
	c := p.SecondDerivative
	hl := p.HalfLength
	dx2 := 1 / (g.Window.X.CellSize * g.Window.X.CellSize)
	dz2 := 1 / (g.Window.Z.CellSize * g.Window.Z.CellSize)
	k.c0 = c[0] * (dx2 + dz2)
	k.cx = make([]float64, hl+1)
	k.cz = make([]float64, hl+1)
	for i := 1; i <= hl; i++ {
		k.cx[i] = c[i] * dx2
		k.cz[i] = c[i] * dz2
	}
	if !g.Window.Is2D() {
		dy2 := 1 / (g.Window.Y.CellSize * g.Window.Y.CellSize)
		k.c0 += c[0] * dy2
		k.cy = make([]float64, hl+1)
		for i := 1; i <= hl; i++ {
			k.cy[i] = c[i] * dy2
		}
	}
	f := g.Get(PressureCurr)
	k.sy, k.sz = f.StrideY(), f.StrideZ()
	return k, nil
}

func (k *secondOrder) Grid() *GridBox                        { return k.grid }
func (k *secondOrder) SetBoundaryManager(bm BoundaryManager) { k.bm = bm }
func (k *secondOrder) Mode() Mode                            { return k.mode }
func (k *secondOrder) StateTags() []Tag                      { return []Tag{PressureCurr} }

func (k *secondOrder) SetMode(m Mode) error {
	if err := checkMode(m); err != nil {
		return err
	}
	k.mode = m
	return nil
}

func (k *secondOrder) Clone(g *GridBox) (Kernel, error) {
	return newSecondOrderKernel(g)
}

// PreprocessModel replaces the window velocity with v²·dt².
func (k *secondOrder) PreprocessModel() {
	dt2 := k.grid.DT * k.grid.DT
	v := k.grid.Get(VelocityParm | Wind).Data
	for i, vv := range v {
		v[i] = vv * vv * dt2
	}
}

// Step computes the next pressure sample. The three modes share the
// arithmetic: reversal in time is done by the caller swapping the
// current and previous samples.
func (k *secondOrder) Step() {
	g := k.grid
	curr := g.Get(PressureCurr).Data
	prev := g.Get(PressurePrev).Data
	next := g.Get(PressureNext).Data
	vf := g.Get(VelocityParm | Wind).Data
	f := g.Get(PressureCurr)
	parallelBlocks(k.tiles, func(b block) {
		for iy := b.y0; iy < b.y1; iy++ {
			for iz := b.z0; iz < b.z1; iz++ {
				row := f.Index(0, iy, iz)
				for p := row + b.x0; p < row+b.x1; p++ {
					lap := k.c0 * curr[p]
					for i := 1; i < len(k.cx); i++ {
						lap += k.cx[i]*(curr[p+i]+curr[p-i]) +
							k.cz[i]*(curr[p+i*k.sz]+curr[p-i*k.sz])
					}
					if k.cy != nil {
						for i := 1; i < len(k.cy); i++ {
							lap += k.cy[i] * (curr[p+i*k.sy] + curr[p-i*k.sy])
						}
					}
					next[p] = 2*curr[p] - prev[p] + vf[p]*lap
				}
			}
		}
	})
	g.Swap(PressurePrev, PressureCurr)
	g.Swap(PressureCurr, PressureNext)
	if k.bm != nil {
		k.bm.ApplyBoundary(PressureUpdate)
	}
}
