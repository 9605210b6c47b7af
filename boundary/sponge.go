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

// Sponge damps the wavefield in the boundary layers a little more at
// every step the further the cell lies from the physical region
// (Cerjan et al., 1985).
type Sponge struct {
	extender

	cells   []int     // window offsets of the boundary cells
	weights []float64 // damping factor of each cell
}

// NewSponge returns a Sponge boundary for g.
func NewSponge(g *rtm.GridBox) *Sponge {
	p := g.Params()
	s := &Sponge{extender: extender{
		grid:      g,
		velocity:  homogeneousExtension{top: p.UseTopLayer},
		density:   homogeneousExtension{top: p.UseTopLayer},
		removeTop: p.UseTopLayer,
	}}
	l := p.BoundaryLength
	profile := make([]float64, l+1)
	for d := range profile {
		profile[d] = SpongeCoefficient(d, l)
	}
	nx, ny, nz := g.Window.Dims()
	f := rtm.Field{Nx: nx, Ny: ny, Nz: nz}
	forBoundary(g.Window, func(ix, iy, iz, _, _, _, depth int) {
		if depth > l {
			depth = l
		}
		s.cells = append(s.cells, f.Index(ix, iy, iz))
		s.weights = append(s.weights, profile[depth])
	})
	return s
}

// SpongeCoefficient returns the damping factor of a cell depth cells
// into a boundary of the given length. Depth 0 is the physical region.
// Where boundaries overlap the deepest one applies, which is the
// smallest factor.
func SpongeCoefficient(depth, length int) float64 {
	if length == 0 || depth <= 0 {
		return 1
	}
	a := 0.1 / float64(length) * float64(depth)
	return math.Exp(-a * a)
}

// ApplyBoundary damps the wavefields that changed in update u.
func (s *Sponge) ApplyBoundary(u rtm.Update) {
	for _, f := range updated(s.grid, u) {
		for i, c := range s.cells {
			f.Data[c] *= s.weights[i]
		}
	}
}
