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
)

// CPML is a convolutional perfectly matched layer (Pasalic and McGarry,
// 2010). For the second order equation the pressure update gets, inside
// the boundary layers, the terms ∂ψ/∂h + ζ for every axis h, where the
// memory variables follow
//
//	ψⁿ = a·ψⁿ⁻¹ + b·∂uⁿ/∂h
//	ζⁿ = a·ζⁿ⁻¹ + b·(∂²uⁿ/∂h² + ∂ψⁿ/∂h)
//
// For the first order system every staggered derivative ∂p/∂h and
// ∂vₕ/∂h gets its own memory variable, ψ and ζ, following
// ψⁿ = a·ψⁿ⁻¹ + b·∂/∂h, which is added to the derivative. a and b grow
// with the depth into the layer.
type CPML struct {
	extender

	length    int
	vmax      float64
	staggered bool
	first     []float64 // centered first derivative coefficients
	second    []float64 // second derivative coefficients
	stag      []float64 // staggered first derivative coefficients
	axes      []*pmlAxis
}

// pmlAxis holds the layer coefficients and memory variables of one axis.
type pmlAxis struct {
	dir      int // 0: x, 1: y, 2: z
	stride   int
	h        float64
	particle rtm.Tag // particle velocity along the axis

	a, b []float64 // indexed by depth-1

	psi, zeta *rtm.Field
}

// NewCPML returns a CPML boundary for g.
func NewCPML(g *rtm.GridBox) (*CPML, error) {
	p := g.Params()
	c := &CPML{
		extender: extender{
			grid:      g,
			velocity:  homogeneousExtension{top: p.UseTopLayer},
			density:   homogeneousExtension{top: p.UseTopLayer},
			removeTop: p.UseTopLayer,
		},
		length:    p.BoundaryLength,
		staggered: p.EquationOrder == rtm.FirstOrder,
		first:     p.FirstDerivative,
		second:    p.SecondDerivative,
		stag:      p.StaggeredDerivative,
	}
	if c.staggered && len(c.stag) < 2 {
		return nil, rtm.NewError(rtm.ConfigurationError, "boundary.NewCPML",
			"no staggered coefficients for order %d", p.Order)
	}
	nx, ny, nz := g.Window.Dims()
	dirs := []int{0, 2}
	if !g.Window.Is2D() {
		dirs = append(dirs, 1)
	}
	for _, d := range dirs {
		ax := &pmlAxis{
			dir:  d,
			a:    make([]float64, c.length),
			b:    make([]float64, c.length),
			psi:  rtm.NewField(nx, ny, nz),
			zeta: rtm.NewField(nx, ny, nz),
		}
		switch d {
		case 0:
			ax.stride, ax.h, ax.particle = 1, g.Window.X.CellSize, rtm.ParticleXCurr
		case 1:
			ax.stride, ax.h, ax.particle = ax.psi.StrideY(), g.Window.Y.CellSize, rtm.ParticleYCurr
		case 2:
			ax.stride, ax.h, ax.particle = ax.psi.StrideZ(), g.Window.Z.CellSize, rtm.ParticleZCurr
		}
		c.axes = append(c.axes, ax)
	}
	return c, nil
}

// ReExtendModel extends the window parameters, derives the layer
// coefficients from the window velocity and clears the memory
// variables.
func (c *CPML) ReExtendModel() {
	c.extender.ReExtendModel()
	c.vmax = maxPhysical(c.grid.Get(rtm.VelocityParm|rtm.Wind), c.grid.Window)
	for _, ax := range c.axes {
		c.fillCoefficients(ax)
	}
	c.reset()
}

// AdjustModelForBackward removes the top layer and clears the memory
// variables.
func (c *CPML) AdjustModelForBackward() {
	c.extender.AdjustModelForBackward()
	c.reset()
}

func (c *CPML) reset() {
	for _, ax := range c.axes {
		ax.psi.Zero()
		ax.zeta.Zero()
	}
}

// fillCoefficients sets a = exp(-dt(dᵢ+α)) and b = dᵢ/(dᵢ+α)·(a-1) with
// dᵢ = i²·d0.
func (c *CPML) fillCoefficients(ax *pmlAxis) {
	p := c.grid.Params()
	l := float64(c.length)
	if c.length == 0 || !(c.vmax > 0) {
		for i := range ax.a {
			ax.a[i], ax.b[i] = 0, 0
		}
		return
	}
	d0 := -math.Log(p.CPML.ReflectCoefficient) * (3 * c.vmax / (l * ax.h)) * p.CPML.RelaxCoefficient / l
	alpha := p.CPML.ShiftRatio
	for i := 1; i <= c.length; i++ {
		d := float64(i*i) * d0
		a := math.Exp(-c.grid.DT * (d + alpha))
		ax.a[i-1] = a
		if d+alpha != 0 {
			ax.b[i-1] = d / (d + alpha) * (a - 1)
		} else {
			ax.b[i-1] = 0
		}
	}
}

// ApplyBoundary adds the layer terms to the fields just updated by the
// kernel.
func (c *CPML) ApplyBoundary(u rtm.Update) {
	if c.length == 0 {
		return
	}
	switch {
	case c.staggered && u == rtm.VelocityUpdate:
		c.applyVelocity()
	case c.staggered:
		c.applyPressure()
	case u == rtm.PressureUpdate:
		c.applySecondOrder()
	}
}

// applySecondOrder adds the layer terms to the pressure just computed,
// using the sample it was computed from.
func (c *CPML) applySecondOrder() {
	g := c.grid
	u := g.Get(rtm.PressurePrev).Data
	next := g.Get(rtm.PressureCurr).Data
	vf := g.Get(rtm.VelocityParm | rtm.Wind).Data
	for _, ax := range c.axes {
		psi, zeta := ax.psi.Data, ax.zeta.Data
		s := ax.stride
		rh := 1 / ax.h
		rh2 := rh * rh
		c.layer(ax, func(p, depth int) {
			var du float64
			for i := 1; i < len(c.first); i++ {
				du += c.first[i] * (u[p+i*s] - u[p-i*s])
			}
			psi[p] = ax.a[depth-1]*psi[p] + ax.b[depth-1]*du*rh
		})
		c.layer(ax, func(p, depth int) {
			d2u := c.second[0] * u[p]
			var dpsi float64
			for i := 1; i < len(c.second); i++ {
				d2u += c.second[i] * (u[p+i*s] + u[p-i*s])
				dpsi += c.first[i] * (psi[p+i*s] - psi[p-i*s])
			}
			dpsi *= rh
			zeta[p] = ax.a[depth-1]*zeta[p] + ax.b[depth-1]*(d2u*rh2+dpsi)
			next[p] += vf[p] * (dpsi + zeta[p])
		})
	}
}

// applyVelocity corrects the particle velocities just computed from the
// pressure gradient, with the same staggered stencil as the kernel.
func (c *CPML) applyVelocity() {
	g := c.grid
	pr := g.Get(rtm.PressureCurr).Data
	var buoy []float64
	if g.Has(rtm.DensityParm | rtm.Wind) {
		buoy = g.Get(rtm.DensityParm | rtm.Wind).Data
	}
	for _, ax := range c.axes {
		v := g.Get(ax.particle).Data
		psi := ax.psi.Data
		s := ax.stride
		rh := 1 / ax.h
		c.layer(ax, func(p, depth int) {
			var dp float64
			for i := 1; i < len(c.stag); i++ {
				dp += c.stag[i] * (pr[p+i*s] - pr[p-(i-1)*s])
			}
			psi[p] = ax.a[depth-1]*psi[p] + ax.b[depth-1]*dp*rh
			f := g.DT
			if buoy != nil {
				f = buoy[p]
			}
			v[p] -= f * psi[p]
		})
	}
}

// applyPressure corrects the pressure just computed from the velocity
// divergence.
func (c *CPML) applyPressure() {
	g := c.grid
	pr := g.Get(rtm.PressureCurr).Data
	kdt := g.Get(rtm.VelocityParm | rtm.Wind).Data
	for _, ax := range c.axes {
		v := g.Get(ax.particle).Data
		zeta := ax.zeta.Data
		s := ax.stride
		rh := 1 / ax.h
		c.layer(ax, func(p, depth int) {
			var dv float64
			for i := 1; i < len(c.stag); i++ {
				dv += c.stag[i] * (v[p+(i-1)*s] - v[p-i*s])
			}
			zeta[p] = ax.a[depth-1]*zeta[p] + ax.b[depth-1]*dv*rh
			pr[p] -= kdt[p] * zeta[p]
		})
	}
}

// layer calls fn with the window offset and the depth into the layer of
// every cell of the two boundary layers normal to ax. The layers span
// the stepped extent of the other axes.
func (c *CPML) layer(ax *pmlAxis, fn func(p, depth int)) {
	w := c.grid.Window
	f := ax.psi
	x0, x1 := w.X.StepRange()
	y0, y1 := w.Y.StepRange()
	z0, z1 := w.Z.StepRange()
	var a rtm.Axis
	switch ax.dir {
	case 0:
		a = w.X
	case 1:
		a = w.Y
	case 2:
		a = w.Z
	}
	s, e := a.PhysicalRange()
	depth := func(i int) int {
		if i < s {
			return s - i
		}
		return i - e + 1
	}
	in := func(i int) bool { return (i < s && i >= s-c.length) || (i >= e && i < e+c.length) }
	for iy := y0; iy < y1; iy++ {
		for iz := z0; iz < z1; iz++ {
			for ix := x0; ix < x1; ix++ {
				i := [3]int{ix, iy, iz}[ax.dir]
				if !in(i) {
					continue
				}
				fn(f.Index(ix, iy, iz), depth(i))
			}
		}
	}
}
