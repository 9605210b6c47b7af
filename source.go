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

import "math"

// Ricker returns the Ricker wavelet of peak frequency f sampled every
// dt for steps 0 through nt. It peaks at t = 1/f.
func Ricker(f, dt float64, nt int) []float64 {
	w := make([]float64, nt+1)
	for k := range w {
		tau := float64(k)*dt - 1/f
		a := math.Pi * math.Pi * f * f * tau * tau
		w[k] = (1 - 2*a) * math.Exp(-a)
	}
	return w
}

// Source is a point source at a window cell.
type Source struct {
	X, Y, Z int       // window logical cell
	Wavelet []float64 // amplitude per time step
}

// NewSource returns a Ricker source with the grid's time stepping and
// the peak frequency of its parameters.
func NewSource(g *GridBox) *Source {
	return &Source{Wavelet: Ricker(g.Params().SourceFrequency, g.DT, g.NT)}
}

// Place puts the source at the physical cell (gx, gy, gz) of the full
// model. It returns a DataBoundsError if the cell is not inside the
// window.
func (s *Source) Place(g *GridBox, gx, gy, gz int) error {
	ix, iy, iz, ok := g.WindowCell(gx, gy, gz)
	if !ok {
		return errorf(DataBoundsError, "Source.Place", "source cell (%d, %d, %d) outside of the window", gx, gy, gz)
	}
	s.X, s.Y, s.Z = ix, iy, iz
	return nil
}

// Inject adds sign times the amplitude of the given step, scaled by the
// window velocity factor at the source, to the current pressure.
func (s *Source) Inject(g *GridBox, step int, sign float64) {
	if step < 0 || step >= len(s.Wavelet) {
		return
	}
	p := g.Get(PressureCurr)
	c := p.Index(s.X, s.Y, s.Z)
	p.Data[c] += sign * s.Wavelet[step] * g.Get(VelocityParm | Wind).Data[c]
}
