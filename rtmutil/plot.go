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

package rtmutil

import (
	"fmt"
	"math"
	"os"

	"github.com/seismicimaging/rtm"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// imageSlice is a y slice of a migrated image, with depth increasing
// downward.
type imageSlice struct {
	m *rtm.MigrationData
	y int
}

func (s imageSlice) Dims() (c, r int)   { return s.m.Nx, s.m.Nz }
func (s imageSlice) Z(c, r int) float64 { return s.m.Image.Get(s.y, r, c) }
func (s imageSlice) X(c int) float64    { return s.m.X0 + float64(c)*s.m.DX }
func (s imageSlice) Y(r int) float64    { return -(s.m.Z0 + float64(r)*s.m.DZ) }

// values returns the samples of the slice.
func (s imageSlice) values() []float64 {
	n := s.m.Nx * s.m.Nz
	return s.m.Image.Elements[s.y*n : (s.y+1)*n]
}

// colorLimit returns the half width of the symmetric color scale: the
// largest absolute value, or, if clip > 0, clip standard deviations
// away from the mean if that is smaller.
func colorLimit(v []float64, clip float64) float64 {
	lim := math.Max(math.Abs(floats.Min(v)), math.Abs(floats.Max(v)))
	if clip > 0 {
		mean, std := stat.MeanStdDev(v, nil)
		if c := math.Abs(mean) + clip*std; c > 0 && c < lim {
			lim = c
		}
	}
	if lim == 0 {
		lim = 1
	}
	return lim
}

// Plot renders the y slice of the image in imageFile to a PNG file.
func Plot(imageFile, plotFile string, slice int, clip float64) error {
	m, hash, err := rtm.ReadMigrationNCF(imageFile)
	if err != nil {
		return err
	}
	if slice < 0 || slice >= m.Ny {
		return rtm.NewError(rtm.DataBoundsError, "rtmutil.Plot", "slice %d outside of [0, %d)", slice, m.Ny)
	}
	s := imageSlice{m: m, y: slice}
	lim := colorLimit(s.values(), clip)

	cm := moreland.SmoothBlueRed()
	cm.SetMin(-lim)
	cm.SetMax(lim)
	hm := plotter.NewHeatMap(s, cm.Palette(255))
	hm.Min, hm.Max = -lim, lim

	p, err := plot.New()
	if err != nil {
		return fmt.Errorf("rtm: creating plot: %v", err)
	}
	p.Title.Text = fmt.Sprintf("Migrated image, %d shots (%.8s)", m.Shots, hash)
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "depth (m)"
	p.Add(hm)

	legend, err := plot.New()
	if err != nil {
		return fmt.Errorf("rtm: creating plot: %v", err)
	}
	legend.Add(&plotter.ColorBar{ColorMap: cm})
	legend.HideY()
	legend.X.Padding = 0

	const width, height, bar = 6 * vg.Inch, 4 * vg.Inch, 0.6 * vg.Inch
	img := vgimg.New(width, height)
	dc := draw.New(img)
	p.Draw(draw.Crop(dc, 0, 0, bar, 0))
	legend.Draw(draw.Crop(dc, 0, 0, 0, bar-height))

	f, err := os.Create(plotFile)
	if err != nil {
		return rtm.NewError(rtm.CollaboratorIOError, "rtmutil.Plot", "%v", err)
	}
	defer f.Close()
	png := vgimg.PngCanvas{Canvas: img}
	if _, err = png.WriteTo(f); err != nil {
		return fmt.Errorf("rtm: writing plot: %v", err)
	}
	return f.Close()
}
