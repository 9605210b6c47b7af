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

import "github.com/seismicimaging/rtm"

// Random scatters outgoing waves instead of absorbing them: the
// boundary velocity is split into grains of random values (Clapp,
// 2009). The grains depend on the seed and the window position, so a
// shot always sees the same boundary while different shots see
// different ones.
type Random struct {
	extender
	ext randomExtension
}

// NewRandom returns a Random boundary for g.
func NewRandom(g *rtm.GridBox) *Random {
	p := g.Params()
	r := &Random{
		ext: randomExtension{
			top:       p.UseTopLayer,
			length:    p.BoundaryLength,
			grainSize: p.Random.GrainSize,
		},
	}
	if r.ext.grainSize < 1 {
		r.ext.grainSize = 1
	}
	r.extender = extender{
		grid:      g,
		velocity:  &r.ext,
		density:   homogeneousExtension{top: p.UseTopLayer},
		removeTop: p.UseTopLayer,
	}
	return r
}

// ExtendModel extends the full-model parameters.
func (r *Random) ExtendModel() {
	r.ext.seed = uint64(r.grid.Params().Random.Seed)
	r.extender.ExtendModel()
}

// ReExtendModel extends the window parameters with grains drawn for
// the current window position.
func (r *Random) ReExtendModel() {
	g := r.grid
	r.ext.seed = uint64(g.Params().Random.Seed) + uint64(g.StartX)*7919 + uint64(g.StartY)*104729 + 1
	r.extender.ReExtendModel()
}

// ApplyBoundary does nothing.
func (*Random) ApplyBoundary(rtm.Update) {}
