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

// staggered solves the first order acoustic system
//
//	∂v/∂t = -b ∇p
//	∂p/∂t = -K ∇·v
//
// on a staggered grid, where particle velocities live half a cell after
// the pressure along their own axis. After PreprocessModel the window
// velocity parameter holds K·dt and the window density parameter holds
// b·dt.
type staggered struct {
	grid  *GridBox
	bm    BoundaryManager
	mode  Mode
	tiles []block

	s          []float64 // staggered coefficients
	rx, ry, rz float64   // 1/d
	sy, sz     int

	// midStep runs between the pressure and the particle velocity
	// updates of an inverse step.
	midStep func()
}

func newStaggeredKernel(g *GridBox) (*staggered, error) {
	tags := []Tag{PressureCurr, ParticleXCurr, ParticleZCurr}
	if !g.Window.Is2D() {
		tags = append(tags, ParticleYCurr)
	}
	if err := registerMissing(g, tags...); err != nil {
		return nil, err
	}
	p := g.Params()
	k := &staggered{
		grid:  g,
		mode:  Forward,
		tiles: stepBlocks(g.Window, p),
		s:     p.StaggeredDerivative,
		rx:    1 / g.Window.X.CellSize,
		ry:    1 / g.Window.Y.CellSize,
		rz:    1 / g.Window.Z.CellSize,
	}
	f := g.Get(PressureCurr)
	k.sy, k.sz = f.StrideY(), f.StrideZ()
	return k, nil
}

func (k *staggered) Grid() *GridBox                        { return k.grid }
func (k *staggered) SetBoundaryManager(bm BoundaryManager) { k.bm = bm }
func (k *staggered) Mode() Mode                            { return k.mode }

func (k *staggered) StateTags() []Tag {
	t := []Tag{PressureCurr, ParticleXCurr, ParticleZCurr}
	if !k.grid.Window.Is2D() {
		t = append(t, ParticleYCurr)
	}
	return t
}

func (k *staggered) SetMode(m Mode) error {
	if err := checkMode(m); err != nil {
		return err
	}
	k.mode = m
	return nil
}

func (k *staggered) Clone(g *GridBox) (Kernel, error) {
	return newStaggeredKernel(g)
}

// SetMidStepHook sets a function run between the two half updates of
// an inverse step.
func (k *staggered) SetMidStepHook(f func()) { k.midStep = f }

// PreprocessModel replaces the window velocity by K·dt = ρv²·dt and the
// window density by b·dt = dt/ρ. Without a density model ρ = 1.
func (k *staggered) PreprocessModel() {
	g := k.grid
	v := g.Get(VelocityParm | Wind).Data
	var rho []float64
	if g.Has(DensityParm | Wind) {
		rho = g.Get(DensityParm | Wind).Data
	}
	for i, vv := range v {
		r := 1.
		if rho != nil && rho[i] > 0 {
			r = rho[i]
		}
		v[i] = r * vv * vv * g.DT
		if rho != nil {
			rho[i] = g.DT / r
		}
	}
}

func (k *staggered) buoyancy() []float64 {
	if k.grid.Has(DensityParm | Wind) {
		return k.grid.Get(DensityParm | Wind).Data
	}
	return nil
}

// Step advances velocity then pressure in forward and adjoint modes, and
// undoes pressure then velocity in inverse mode. The boundary manager
// acts on the velocities before the pressure update reads them, so the
// values a forward step uses are the ones a checkpoint saves.
func (k *staggered) Step() {
	if k.mode == Inverse {
		k.updatePressure(1)
		if k.midStep != nil {
			k.midStep()
		}
		k.updateVelocity(1)
		return
	}
	k.updateVelocity(-1)
	if k.bm != nil {
		k.bm.ApplyBoundary(VelocityUpdate)
	}
	k.updatePressure(-1)
	if k.bm != nil {
		k.bm.ApplyBoundary(PressureUpdate)
	}
}

// updateVelocity adds sign·b·dt·∇p to the particle velocities.
func (k *staggered) updateVelocity(sign float64) {
	g := k.grid
	pf := g.Get(PressureCurr)
	p := pf.Data
	vx := g.Get(ParticleXCurr).Data
	vz := g.Get(ParticleZCurr).Data
	var vy []float64
	if g.Has(ParticleYCurr) {
		vy = g.Get(ParticleYCurr).Data
	}
	b := k.buoyancy()
	dtOverRho := g.DT
	parallelBlocks(k.tiles, func(bl block) {
		for iy := bl.y0; iy < bl.y1; iy++ {
			for iz := bl.z0; iz < bl.z1; iz++ {
				row := pf.Index(0, iy, iz)
				for c := row + bl.x0; c < row+bl.x1; c++ {
					var gx, gz, gy float64
					for i := 1; i < len(k.s); i++ {
						gx += k.s[i] * (p[c+i] - p[c-i+1])
						gz += k.s[i] * (p[c+i*k.sz] - p[c-(i-1)*k.sz])
						if vy != nil {
							gy += k.s[i] * (p[c+i*k.sy] - p[c-(i-1)*k.sy])
						}
					}
					f := dtOverRho
					if b != nil {
						f = b[c]
					}
					vx[c] += sign * f * gx * k.rx
					vz[c] += sign * f * gz * k.rz
					if vy != nil {
						vy[c] += sign * f * gy * k.ry
					}
				}
			}
		}
	})
}

// updatePressure adds sign·K·dt·∇·v to the pressure.
func (k *staggered) updatePressure(sign float64) {
	g := k.grid
	pf := g.Get(PressureCurr)
	p := pf.Data
	vx := g.Get(ParticleXCurr).Data
	vz := g.Get(ParticleZCurr).Data
	var vy []float64
	if g.Has(ParticleYCurr) {
		vy = g.Get(ParticleYCurr).Data
	}
	kdt := g.Get(VelocityParm | Wind).Data
	parallelBlocks(k.tiles, func(bl block) {
		for iy := bl.y0; iy < bl.y1; iy++ {
			for iz := bl.z0; iz < bl.z1; iz++ {
				row := pf.Index(0, iy, iz)
				for c := row + bl.x0; c < row+bl.x1; c++ {
					var dx, dz, dy float64
					for i := 1; i < len(k.s); i++ {
						dx += k.s[i] * (vx[c+i-1] - vx[c-i])
						dz += k.s[i] * (vz[c+(i-1)*k.sz] - vz[c-i*k.sz])
						if vy != nil {
							dy += k.s[i] * (vy[c+(i-1)*k.sy] - vy[c-i*k.sy])
						}
					}
					div := dx*k.rx + dz*k.rz
					if vy != nil {
						div += dy * k.ry
					}
					p[c] += sign * kdt[c] * div
				}
			}
		}
	})
}
