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
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// DataVersion is the version of the NetCDF files written and read by
// this package.
const DataVersion = "1"

// ReadModelNCF reads a model from a NetCDF file holding a "velocity"
// variable, an optional "density" variable, both with dimensions
// (y, z, x), and global cell size and origin attributes.
func ReadModelNCF(path string) (*Model, error) {
	const op = "ReadModelNCF"
	r, err := os.Open(path)
	if err != nil {
		return nil, ioError(op, path, err)
	}
	defer r.Close()
	f, err := cdf.Open(r)
	if err != nil {
		return nil, ioError(op, path, err)
	}
	m := new(Model)
	if m.Velocity, err = readDense(f, "velocity"); err != nil {
		return nil, ioError(op, path, err)
	}
	if hasVariable(f, "density") {
		if m.Density, err = readDense(f, "density"); err != nil {
			return nil, ioError(op, path, err)
		}
	}
	if len(m.Velocity.Shape) != 3 {
		return nil, ioError(op, path, fmt.Errorf("velocity has %d dimensions, want 3", len(m.Velocity.Shape)))
	}
	var d, o [3]float64
	for i, n := range []string{"x", "y", "z"} {
		if d[i], err = floatAttribute(f, "d"+n); err != nil {
			return nil, ioError(op, path, err)
		}
		o[i], _ = floatAttribute(f, n+"0")
	}
	m.Axes = Axis3{
		X: NewAxis(m.Velocity.Shape[2], d[0], o[0]),
		Y: NewAxis(m.Velocity.Shape[0], d[1], o[1]),
		Z: NewAxis(m.Velocity.Shape[1], d[2], o[2]),
	}
	return m, nil
}

// WriteModelNCF writes m to a NetCDF file in the format ReadModelNCF
// reads.
func WriteModelNCF(path string, m *Model) error {
	const op = "WriteModelNCF"
	w, err := os.Create(path)
	if err != nil {
		return ioError(op, path, err)
	}
	defer w.Close()
	h := cdf.NewHeader([]string{"y", "z", "x"}, m.Velocity.Shape)
	h.AddAttribute("", "comment", "RTM subsurface model")
	h.AddAttribute("", "data_version", DataVersion)
	addAxesAttributes(h, m.Axes)
	vars := map[string]*sparse.DenseArray{"velocity": m.Velocity}
	h.AddVariable("velocity", []string{"y", "z", "x"}, []float32{0})
	h.AddAttribute("velocity", "units", "m/s")
	if m.Density != nil {
		vars["density"] = m.Density
		h.AddVariable("density", []string{"y", "z", "x"}, []float32{0})
		h.AddAttribute("density", "units", "kg/m³")
	}
	h.Define()
	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return ioError(op, path, err)
	}
	for _, name := range []string{"velocity", "density"} {
		if d, ok := vars[name]; ok {
			if err = writeDense(f, name, d); err != nil {
				return ioError(op, path, fmt.Errorf("writing variable %s: %v", name, err))
			}
		}
	}
	if err = cdf.UpdateNumRecs(w); err != nil {
		return ioError(op, path, err)
	}
	return nil
}

func addAxesAttributes(h *cdf.Header, a Axis3) {
	h.AddAttribute("", "dx", []float64{a.X.CellSize})
	h.AddAttribute("", "dy", []float64{a.Y.CellSize})
	h.AddAttribute("", "dz", []float64{a.Z.CellSize})
	h.AddAttribute("", "x0", []float64{a.X.Reference})
	h.AddAttribute("", "y0", []float64{a.Y.Reference})
	h.AddAttribute("", "z0", []float64{a.Z.Reference})
}

// ReadTracesNCF reads a trace file written by WriteTracesNCF.
func ReadTracesNCF(path string) (*Gather, error) {
	const op = "ReadTracesNCF"
	r, err := os.Open(path)
	if err != nil {
		return nil, ioError(op, path, err)
	}
	defer r.Close()
	f, err := cdf.Open(r)
	if err != nil {
		return nil, ioError(op, path, err)
	}
	dt, err := floatAttribute(f, "dt")
	if err != nil {
		return nil, ioError(op, path, err)
	}
	ints := make(map[string][]int32)
	for _, v := range []string{"shot_id", "source_x", "source_y", "source_z",
		"receiver_x", "receiver_y", "receiver_z"} {
		if ints[v], err = readInt32(f, v); err != nil {
			return nil, ioError(op, path, fmt.Errorf("%s: %v", v, err))
		}
	}
	tr, err := readDense(f, "traces")
	if err != nil {
		return nil, ioError(op, path, err)
	}
	if len(tr.Shape) != 3 {
		return nil, ioError(op, path, fmt.Errorf("traces have %d dimensions, want 3", len(tr.Shape)))
	}
	ns, nr, nt := tr.Shape[0], tr.Shape[1], tr.Shape[2]
	for v, n := range map[string]int{"shot_id": ns, "source_x": ns, "source_y": ns, "source_z": ns,
		"receiver_x": ns * nr, "receiver_y": ns * nr, "receiver_z": ns * nr} {
		if len(ints[v]) < n {
			return nil, errorf(DataBoundsError, op, "%s: %s holds %d values, want %d", path, v, len(ints[v]), n)
		}
	}
	g := NewGather()
	for s := 0; s < ns; s++ {
		shot := &Shot{
			ID:     int(ints["shot_id"][s]),
			Source: Cell{X: int(ints["source_x"][s]), Y: int(ints["source_y"][s]), Z: int(ints["source_z"][s])},
			DT:     dt,
		}
		for rc := 0; rc < nr; rc++ {
			i := s*nr + rc
			shot.Receivers = append(shot.Receivers, Cell{
				X: int(ints["receiver_x"][i]), Y: int(ints["receiver_y"][i]), Z: int(ints["receiver_z"][i])})
			shot.Traces = append(shot.Traces, tr.Elements[i*nt:(i+1)*nt])
		}
		g.AddShot(shot)
	}
	return g, nil
}

// WriteTracesNCF writes shots, which must all have the same number of
// receivers, samples and sample interval, to a NetCDF file.
func WriteTracesNCF(path string, shots []*Shot) error {
	const op = "WriteTracesNCF"
	if len(shots) == 0 {
		return errorf(DataBoundsError, op, "no shots to write")
	}
	nr := len(shots[0].Receivers)
	nt := 0
	if nr > 0 {
		nt = len(shots[0].Traces[0])
	}
	for _, s := range shots {
		if len(s.Receivers) != nr || len(s.Traces) != nr || s.DT != shots[0].DT {
			return errorf(DataBoundsError, op, "shot %d does not match the layout of shot %d", s.ID, shots[0].ID)
		}
		for _, t := range s.Traces {
			if len(t) != nt {
				return errorf(DataBoundsError, op, "shot %d has traces of %d samples, want %d", s.ID, len(t), nt)
			}
		}
	}
	w, err := os.Create(path)
	if err != nil {
		return ioError(op, path, err)
	}
	defer w.Close()
	h := cdf.NewHeader([]string{"shot", "receiver", "time"}, []int{len(shots), nr, nt})
	h.AddAttribute("", "comment", "RTM shot gathers")
	h.AddAttribute("", "data_version", DataVersion)
	h.AddAttribute("", "dt", []float64{shots[0].DT})
	ints := map[string][]int32{}
	for _, v := range []string{"shot_id", "source_x", "source_y", "source_z"} {
		h.AddVariable(v, []string{"shot"}, []int32{0})
	}
	for _, v := range []string{"receiver_x", "receiver_y", "receiver_z"} {
		h.AddVariable(v, []string{"shot", "receiver"}, []int32{0})
	}
	h.AddVariable("traces", []string{"shot", "receiver", "time"}, []float32{0})
	h.Define()
	traces := sparse.ZerosDense(len(shots), nr, nt)
	for i, s := range shots {
		ints["shot_id"] = append(ints["shot_id"], int32(s.ID))
		ints["source_x"] = append(ints["source_x"], int32(s.Source.X))
		ints["source_y"] = append(ints["source_y"], int32(s.Source.Y))
		ints["source_z"] = append(ints["source_z"], int32(s.Source.Z))
		for r, c := range s.Receivers {
			ints["receiver_x"] = append(ints["receiver_x"], int32(c.X))
			ints["receiver_y"] = append(ints["receiver_y"], int32(c.Y))
			ints["receiver_z"] = append(ints["receiver_z"], int32(c.Z))
			copy(traces.Elements[(i*nr+r)*nt:], s.Traces[r])
		}
	}
	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return ioError(op, path, err)
	}
	for _, v := range []string{"shot_id", "source_x", "source_y", "source_z",
		"receiver_x", "receiver_y", "receiver_z"} {
		if len(ints[v]) == 0 {
			continue
		}
		end := f.Header.Lengths(v)
		if _, err = f.Writer(v, make([]int, len(end)), end).Write(ints[v]); err != nil {
			return ioError(op, path, fmt.Errorf("writing variable %s: %v", v, err))
		}
	}
	if nr > 0 && nt > 0 {
		if err = writeDense(f, "traces", traces); err != nil {
			return ioError(op, path, fmt.Errorf("writing traces: %v", err))
		}
	}
	if err = cdf.UpdateNumRecs(w); err != nil {
		return ioError(op, path, err)
	}
	return nil
}

// WriteMigrationNCF writes the migrated image to a NetCDF file.
// configHash identifies the configuration that produced it.
func WriteMigrationNCF(path string, m *MigrationData, configHash string) error {
	const op = "WriteMigrationNCF"
	w, err := os.Create(path)
	if err != nil {
		return ioError(op, path, err)
	}
	defer w.Close()
	dims := []string{"y", "z", "x"}
	h := cdf.NewHeader(dims, []int{m.Ny, m.Nz, m.Nx})
	h.AddAttribute("", "comment", "RTM migrated image")
	h.AddAttribute("", "data_version", DataVersion)
	h.AddAttribute("", "config_hash", configHash)
	h.AddAttribute("", "shots", []int32{int32(m.Shots)})
	h.AddAttribute("", "dx", []float64{m.DX})
	h.AddAttribute("", "dy", []float64{m.DY})
	h.AddAttribute("", "dz", []float64{m.DZ})
	h.AddAttribute("", "x0", []float64{m.X0})
	h.AddAttribute("", "y0", []float64{m.Y0})
	h.AddAttribute("", "z0", []float64{m.Z0})
	vars := []struct {
		name string
		d    *sparse.DenseArray
	}{
		{"image", m.Image},
		{"source_illumination", m.SourceIllumination},
		{"receiver_illumination", m.ReceiverIllumination},
	}
	for _, v := range vars {
		if v.d != nil {
			h.AddVariable(v.name, dims, []float32{0})
		}
	}
	h.Define()
	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return ioError(op, path, err)
	}
	for _, v := range vars {
		if v.d == nil {
			continue
		}
		if err = writeDense(f, v.name, v.d); err != nil {
			return ioError(op, path, fmt.Errorf("writing variable %s: %v", v.name, err))
		}
	}
	if err = cdf.UpdateNumRecs(w); err != nil {
		return ioError(op, path, err)
	}
	return nil
}

// ReadMigrationNCF reads an image written by WriteMigrationNCF. It also
// returns the configuration hash stored with it.
func ReadMigrationNCF(path string) (*MigrationData, string, error) {
	const op = "ReadMigrationNCF"
	r, err := os.Open(path)
	if err != nil {
		return nil, "", ioError(op, path, err)
	}
	defer r.Close()
	f, err := cdf.Open(r)
	if err != nil {
		return nil, "", ioError(op, path, err)
	}
	m := new(MigrationData)
	if m.Image, err = readDense(f, "image"); err != nil {
		return nil, "", ioError(op, path, err)
	}
	if hasVariable(f, "source_illumination") {
		if m.SourceIllumination, err = readDense(f, "source_illumination"); err != nil {
			return nil, "", ioError(op, path, err)
		}
		if m.ReceiverIllumination, err = readDense(f, "receiver_illumination"); err != nil {
			return nil, "", ioError(op, path, err)
		}
	}
	m.Ny, m.Nz, m.Nx = m.Image.Shape[0], m.Image.Shape[1], m.Image.Shape[2]
	for _, a := range []struct {
		name string
		v    *float64
	}{{"dx", &m.DX}, {"dy", &m.DY}, {"dz", &m.DZ}, {"x0", &m.X0}, {"y0", &m.Y0}, {"z0", &m.Z0}} {
		if *a.v, err = floatAttribute(f, a.name); err != nil {
			return nil, "", ioError(op, path, err)
		}
	}
	if s, ok := f.Header.GetAttribute("", "shots").([]int32); ok && len(s) > 0 {
		m.Shots = int(s[0])
	}
	hash, _ := f.Header.GetAttribute("", "config_hash").(string)
	return m, hash, nil
}

func hasVariable(f *cdf.File, name string) bool {
	for _, v := range f.Header.Variables() {
		if v == name {
			return true
		}
	}
	return false
}

func floatAttribute(f *cdf.File, name string) (float64, error) {
	v, ok := f.Header.GetAttribute("", name).([]float64)
	if !ok || len(v) == 0 {
		return 0, fmt.Errorf("missing attribute %s", name)
	}
	return v[0], nil
}

func readDense(f *cdf.File, name string) (*sparse.DenseArray, error) {
	if !hasVariable(f, name) {
		return nil, fmt.Errorf("missing variable %s", name)
	}
	dims := f.Header.Lengths(name)
	d := sparse.ZerosDense(dims...)
	tmp := make([]float32, len(d.Elements))
	if len(tmp) == 0 {
		return d, nil
	}
	if _, err := f.Reader(name, nil, nil).Read(tmp); err != nil {
		return nil, fmt.Errorf("reading %s: %v", name, err)
	}
	for i, v := range tmp {
		d.Elements[i] = float64(v)
	}
	return d, nil
}

func readInt32(f *cdf.File, name string) ([]int32, error) {
	if !hasVariable(f, name) {
		return nil, fmt.Errorf("missing variable %s", name)
	}
	n := 1
	for _, l := range f.Header.Lengths(name) {
		n *= l
	}
	o := make([]int32, n)
	if n == 0 {
		return o, nil
	}
	if _, err := f.Reader(name, nil, nil).Read(o); err != nil {
		return nil, err
	}
	return o, nil
}

func writeDense(f *cdf.File, name string, data *sparse.DenseArray) error {
	// Check that data matches dimensions.
	n := 1
	for _, v := range data.Shape {
		n *= v
	}
	if len(data.Elements) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(data.Elements))
	}
	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	_, err := f.Writer(name, start, end).Write(data32)
	return err
}
