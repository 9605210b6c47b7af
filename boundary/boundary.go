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

// Package boundary holds the policies that keep waves leaving the
// computation domain from coming back into it. Every policy fills the
// boundary layers of the parameter model with an Extension; the
// absorbing ones also act on the wavefields after every time step.
package boundary

import "github.com/seismicimaging/rtm"

// New returns the boundary manager selected by the parameters of g.
// It can be used as an rtm.BoundaryFactory.
func New(g *rtm.GridBox) (rtm.BoundaryManager, error) {
	p := g.Params()
	switch p.Boundary {
	case rtm.NoBoundary:
		return NewNone(g), nil
	case rtm.SpongeBoundary:
		return NewSponge(g), nil
	case rtm.RandomBoundary:
		return NewRandom(g), nil
	case rtm.CPMLBoundary:
		c, err := NewCPML(g)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, rtm.NewError(rtm.ConfigurationError, "boundary.New", "unknown boundary policy %q", string(p.Boundary))
}

// extender fills the boundary layers of the velocity and, if present,
// density parameters.
type extender struct {
	grid     *rtm.GridBox
	velocity Extension
	density  Extension

	// removeTop zeroes the top boundary of the window parameters before
	// the backward pass.
	removeTop bool
}

func (e *extender) extend(wind rtm.Tag, a rtm.Axis3) {
	e.velocity.Extend(e.grid.Get(rtm.VelocityParm|wind), a)
	if e.grid.Has(rtm.DensityParm | wind) {
		e.density.Extend(e.grid.Get(rtm.DensityParm|wind), a)
	}
}

// ExtendModel extends the full-model parameters.
func (e *extender) ExtendModel() { e.extend(0, e.grid.Full) }

// ReExtendModel extends the window parameters.
func (e *extender) ReExtendModel() { e.extend(rtm.Wind, e.grid.Window) }

// AdjustModelForBackward removes the top layer of the window parameters
// if it was extended.
func (e *extender) AdjustModelForBackward() {
	if !e.removeTop {
		return
	}
	zeroTop(e.grid.Get(rtm.VelocityParm|rtm.Wind), e.grid.Window)
	if e.grid.Has(rtm.DensityParm | rtm.Wind) {
		zeroTop(e.grid.Get(rtm.DensityParm|rtm.Wind), e.grid.Window)
	}
}

// None leaves a reflecting domain: the boundary velocity is zero, so
// the wavefield never moves into the boundary layers.
type None struct {
	extender
}

// NewNone returns a None boundary for g.
func NewNone(g *rtm.GridBox) *None {
	return &None{extender{
		grid:     g,
		velocity: zeroExtension{},
		density:  homogeneousExtension{top: true},
	}}
}

// ApplyBoundary does nothing.
func (*None) ApplyBoundary(rtm.Update) {}

// updated lists the current samples of the wavefields of g that change
// in update u.
func updated(g *rtm.GridBox, u rtm.Update) []*rtm.Field {
	tags := []rtm.Tag{rtm.PressureCurr}
	if u == rtm.VelocityUpdate {
		tags = []rtm.Tag{rtm.ParticleXCurr, rtm.ParticleYCurr, rtm.ParticleZCurr}
	}
	var o []*rtm.Field
	for _, t := range tags {
		if g.Has(t) {
			o = append(o, g.Get(t))
		}
	}
	return o
}
