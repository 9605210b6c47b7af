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
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// Values are stored in single precision.
const ioTolerance = 1e-6

func compareDense(t *testing.T, name string, got, want *sparse.DenseArray) {
	t.Helper()
	if len(got.Shape) != len(want.Shape) {
		t.Fatalf("%s: shape %v, want %v", name, got.Shape, want.Shape)
	}
	for i := range got.Shape {
		if got.Shape[i] != want.Shape[i] {
			t.Fatalf("%s: shape %v, want %v", name, got.Shape, want.Shape)
		}
	}
	for i, v := range want.Elements {
		if different(got.Elements[i], v, ioTolerance) {
			t.Fatalf("%s: element %d is %g, want %g", name, i, got.Elements[i], v)
		}
	}
}

func TestModelNCF(t *testing.T) {
	m := NewModel(5, 1, 4, 12.5, 12.5, 10, 1500)
	m.Axes.X.Reference = 100
	m.Axes.Z.Reference = -20
	m.Density = sparse.ZerosDense(1, 4, 5)
	for i := range m.Velocity.Elements {
		m.Velocity.Elements[i] = 1500 + float64(i)*10.1
		m.Density.Elements[i] = 1000 + float64(i)
	}
	path := filepath.Join(t.TempDir(), "model.ncf")
	if err := WriteModelNCF(path, m); err != nil {
		t.Fatal(err)
	}
	r, err := ReadModelNCF(path)
	if err != nil {
		t.Fatal(err)
	}
	compareDense(t, "velocity", r.Velocity, m.Velocity)
	compareDense(t, "density", r.Density, m.Density)
	if r.Axes.X.PhysicalSize != 5 || r.Axes.Y.PhysicalSize != 1 || r.Axes.Z.PhysicalSize != 4 {
		t.Errorf("axes %v", r.Axes)
	}
	if r.Axes.X.CellSize != 12.5 || r.Axes.Z.CellSize != 10 || r.Axes.X.Reference != 100 || r.Axes.Z.Reference != -20 {
		t.Errorf("geometry %v", r.Axes)
	}
	if err = r.Check(); err != nil {
		t.Error(err)
	}

	if _, err = ReadModelNCF(filepath.Join(t.TempDir(), "missing.ncf")); !IsKind(err, CollaboratorIOError) {
		t.Errorf("missing file: %v", err)
	}
}

func TestTracesNCF(t *testing.T) {
	var shots []*Shot
	for id := 0; id < 3; id++ {
		s := &Shot{ID: id * 5, Source: Cell{X: id, Y: 0, Z: 2}, DT: 0.004}
		for r := 0; r < 4; r++ {
			s.Receivers = append(s.Receivers, Cell{X: r * 2, Z: 1})
			tr := make([]float64, 6)
			for k := range tr {
				tr[k] = float64(id*100+r*10+k) / 7
			}
			s.Traces = append(s.Traces, tr)
		}
		shots = append(shots, s)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "traces.ncf")
	if err := WriteTracesNCF(path, shots); err != nil {
		t.Fatal(err)
	}
	g, err := ReadTracesNCF(path)
	if err != nil {
		t.Fatal(err)
	}
	if ids := g.ShotIDs(); len(ids) != 3 || ids[2] != 10 {
		t.Fatalf("shots %v", ids)
	}
	for _, want := range shots {
		got, err := g.ReadShot(want.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Source != want.Source || got.DT != want.DT || len(got.Receivers) != 4 {
			t.Errorf("shot %d: %+v", want.ID, got)
		}
		for r := range want.Traces {
			if got.Receivers[r] != want.Receivers[r] {
				t.Errorf("shot %d receiver %d at %v", want.ID, r, got.Receivers[r])
			}
			for k, v := range want.Traces[r] {
				if different(got.Traces[r][k], v, ioTolerance) {
					t.Errorf("shot %d receiver %d sample %d: %g != %g", want.ID, r, k, got.Traces[r][k], v)
				}
			}
		}
	}

	bad := []*Shot{shots[0], {ID: 99, DT: 0.004}}
	if err := WriteTracesNCF(filepath.Join(dir, "bad.ncf"), bad); !IsKind(err, DataBoundsError) {
		t.Errorf("mismatched shots: %v", err)
	}
	if err := WriteTracesNCF(filepath.Join(dir, "none.ncf"), nil); !IsKind(err, DataBoundsError) {
		t.Errorf("no shots: %v", err)
	}
}

// writeShortReceivers writes a trace file whose receiver coordinates
// are stored per shot instead of per shot and receiver.
func writeShortReceivers(t *testing.T, path string) {
	t.Helper()
	w, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	const ns, nr, nt = 2, 3, 4
	h := cdf.NewHeader([]string{"shot", "receiver", "time"}, []int{ns, nr, nt})
	h.AddAttribute("", "dt", []float64{0.004})
	for _, v := range []string{"shot_id", "source_x", "source_y", "source_z",
		"receiver_x", "receiver_y", "receiver_z"} {
		h.AddVariable(v, []string{"shot"}, []int32{0})
	}
	h.AddVariable("traces", []string{"shot", "receiver", "time"}, []float32{0})
	h.Define()
	f, err := cdf.Create(w, h)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []string{"shot_id", "source_x", "source_y", "source_z",
		"receiver_x", "receiver_y", "receiver_z"} {
		if _, err = f.Writer(v, []int{0}, []int{ns}).Write([]int32{0, 1}); err != nil {
			t.Fatal(err)
		}
	}
	if err = writeDense(f, "traces", sparse.ZerosDense(ns, nr, nt)); err != nil {
		t.Fatal(err)
	}
	if err = cdf.UpdateNumRecs(w); err != nil {
		t.Fatal(err)
	}
}

func TestReadTracesNCFShortArrays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.ncf")
	writeShortReceivers(t, path)
	if _, err := ReadTracesNCF(path); !IsKind(err, DataBoundsError) {
		t.Errorf("receiver arrays shorter than the traces: %v", err)
	}
}

func TestMigrationNCF(t *testing.T) {
	m := &MigrationData{
		Nx: 4, Ny: 1, Nz: 3,
		DX: 10, DY: 10, DZ: 5,
		X0:                   50,
		Shots:                3,
		Image:                sparse.ZerosDense(1, 3, 4),
		SourceIllumination:   sparse.ZerosDense(1, 3, 4),
		ReceiverIllumination: sparse.ZerosDense(1, 3, 4),
	}
	for i := range m.Image.Elements {
		m.Image.Elements[i] = float64(i) - 5.5
		m.SourceIllumination.Elements[i] = float64(i) + 1
		m.ReceiverIllumination.Elements[i] = 2 * float64(i+1)
	}
	path := filepath.Join(t.TempDir(), "image.ncf")
	if err := WriteMigrationNCF(path, m, "7f3a"); err != nil {
		t.Fatal(err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Fatalf("output file: %v", err)
	}
	r, hash, err := ReadMigrationNCF(path)
	if err != nil {
		t.Fatal(err)
	}
	if hash != "7f3a" {
		t.Errorf("hash %q", hash)
	}
	if r.Nx != 4 || r.Ny != 1 || r.Nz != 3 || r.DZ != 5 || r.X0 != 50 || r.Shots != 3 {
		t.Errorf("header %+v", r)
	}
	compareDense(t, "image", r.Image, m.Image)
	compareDense(t, "source illumination", r.SourceIllumination, m.SourceIllumination)
	compareDense(t, "receiver illumination", r.ReceiverIllumination, m.ReceiverIllumination)
}
