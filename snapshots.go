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
	"path/filepath"
	"sort"
	"sync"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// SnapshotWriter keeps the pressure over the physical cells of the
// window every Every steps and writes, per shot and phase, a NetCDF file
// shot<id>_<phase>.ncf to Dir. The forward snapshots of a shot are
// written before its backward pass, the backward and reconstructed ones
// before its image is stacked. Close writes whatever is left, such as
// the snapshots of forward modelling.
//
// Writing stops at the first error, which Err returns.
type SnapshotWriter struct {
	NopCallback

	Every int
	Dir   string
	Log   logrus.FieldLogger

	mu      sync.Mutex
	pending map[snapshotKey]*snapshotSet
	written []string
	err     error
}

type snapshotKey struct {
	shot  int
	phase string
}

// snapshotSet holds the frames of one shot and phase.
type snapshotSet struct {
	nx, ny, nz int
	dx, dy, dz float64
	x0, y0, z0 float64
	dt         float64
	steps      []int32
	data       []float64 // [step][y][z][x]
}

// NewSnapshotWriter returns a SnapshotWriter sampling every k steps into
// dir.
func NewSnapshotWriter(k int, dir string) *SnapshotWriter {
	if k < 1 {
		k = 1
	}
	return &SnapshotWriter{Every: k, Dir: dir, Log: logrus.StandardLogger(),
		pending: make(map[snapshotKey]*snapshotSet)}
}

func (w *SnapshotWriter) sample(shot, step int, phase string, g *GridBox) {
	if step%w.Every != 0 {
		return
	}
	a := g.Window
	x0, x1 := a.X.PhysicalRange()
	y0, y1 := a.Y.PhysicalRange()
	z0, z1 := a.Z.PhysicalRange()
	frame := g.Get(PressureCurr).Dense(x0, x1, y0, y1, z0, z1).Elements

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		w.pending = make(map[snapshotKey]*snapshotSet)
	}
	k := snapshotKey{shot, phase}
	s, ok := w.pending[k]
	if !ok {
		s = &snapshotSet{
			nx: x1 - x0, ny: y1 - y0, nz: z1 - z0,
			dx: a.X.CellSize, dy: a.Y.CellSize, dz: a.Z.CellSize,
			x0: a.X.Reference, y0: a.Y.Reference, z0: a.Z.Reference,
			dt: g.DT,
		}
		w.pending[k] = s
	}
	s.steps = append(s.steps, int32(step))
	s.data = append(s.data, frame...)
}

func (w *SnapshotWriter) AfterForwardStep(shot, step int, g *GridBox) {
	w.sample(shot, step, "forward", g)
}

func (w *SnapshotWriter) AfterBackwardStep(shot, step int, g *GridBox) {
	w.sample(shot, step, "backward", g)
}

func (w *SnapshotWriter) AfterFetchStep(shot, step int, forward *GridBox) {
	w.sample(shot, step, "reconstructed", forward)
}

func (w *SnapshotWriter) BeforeBackwardPropagation(shot int, _ *GridBox) {
	w.flush(snapshotKey{shot, "forward"})
}

func (w *SnapshotWriter) BeforeShotStacking(shot int, _ *Field) {
	w.flush(snapshotKey{shot, "backward"}, snapshotKey{shot, "reconstructed"})
}

// Close writes the snapshots not written yet and returns the first
// error met.
func (w *SnapshotWriter) Close() error {
	w.mu.Lock()
	keys := make([]snapshotKey, 0, len(w.pending))
	for k := range w.pending {
		keys = append(keys, k)
	}
	w.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].shot != keys[j].shot {
			return keys[i].shot < keys[j].shot
		}
		return keys[i].phase < keys[j].phase
	})
	w.flush(keys...)
	return w.Err()
}

// Err returns the first error met writing snapshots.
func (w *SnapshotWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Files returns the paths of the files written so far.
func (w *SnapshotWriter) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.written...)
}

func (w *SnapshotWriter) flush(keys ...snapshotKey) {
	for _, k := range keys {
		w.mu.Lock()
		s, ok := w.pending[k]
		delete(w.pending, k)
		failed := w.err != nil
		w.mu.Unlock()
		if !ok || failed {
			continue
		}
		path := filepath.Join(w.Dir, fmt.Sprintf("shot%d_%s.ncf", k.shot, k.phase))
		err := s.write(path)
		w.mu.Lock()
		if err != nil && w.err == nil {
			w.err = err
			if w.Log != nil {
				w.Log.WithError(err).Error("snapshot output disabled")
			}
		}
		if err == nil {
			w.written = append(w.written, path)
		}
		w.mu.Unlock()
	}
}

func (s *snapshotSet) write(path string) error {
	const op = "SnapshotWriter"
	f, err := os.Create(path)
	if err != nil {
		return ioError(op, path, err)
	}
	defer f.Close()
	nt := len(s.steps)
	h := cdf.NewHeader([]string{"step", "y", "z", "x"}, []int{nt, s.ny, s.nz, s.nx})
	h.AddAttribute("", "comment", "RTM pressure snapshots")
	h.AddAttribute("", "data_version", DataVersion)
	h.AddAttribute("", "dt", []float64{s.dt})
	h.AddAttribute("", "dx", []float64{s.dx})
	h.AddAttribute("", "dy", []float64{s.dy})
	h.AddAttribute("", "dz", []float64{s.dz})
	h.AddAttribute("", "x0", []float64{s.x0})
	h.AddAttribute("", "y0", []float64{s.y0})
	h.AddAttribute("", "z0", []float64{s.z0})
	h.AddVariable("step", []string{"step"}, []int32{0})
	h.AddVariable("pressure", []string{"step", "y", "z", "x"}, []float32{0})
	h.Define()
	cf, err := cdf.Create(f, h)
	if err != nil {
		return ioError(op, path, err)
	}
	if nt > 0 {
		if _, err = cf.Writer("step", []int{0}, []int{nt}).Write(s.steps); err != nil {
			return ioError(op, path, fmt.Errorf("writing steps: %v", err))
		}
		d := &sparse.DenseArray{Shape: []int{nt, s.ny, s.nz, s.nx}, Elements: s.data}
		if len(s.data) > 0 {
			if err = writeDense(cf, "pressure", d); err != nil {
				return ioError(op, path, fmt.Errorf("writing pressure: %v", err))
			}
		}
	}
	if err = cdf.UpdateNumRecs(f); err != nil {
		return ioError(op, path, err)
	}
	return f.Close()
}

// ReadSnapshotsNCF reads a file written by a SnapshotWriter and returns
// the sampled steps and the pressure, shaped step × y × z × x.
func ReadSnapshotsNCF(path string) ([]int, *sparse.DenseArray, error) {
	const op = "ReadSnapshotsNCF"
	r, err := os.Open(path)
	if err != nil {
		return nil, nil, ioError(op, path, err)
	}
	defer r.Close()
	f, err := cdf.Open(r)
	if err != nil {
		return nil, nil, ioError(op, path, err)
	}
	s32, err := readInt32(f, "step")
	if err != nil {
		return nil, nil, ioError(op, path, err)
	}
	p, err := readDense(f, "pressure")
	if err != nil {
		return nil, nil, ioError(op, path, err)
	}
	if len(p.Shape) != 4 || p.Shape[0] != len(s32) {
		return nil, nil, errorf(DataBoundsError, op, "%s: %d steps for pressure of shape %v", path, len(s32), p.Shape)
	}
	steps := make([]int, len(s32))
	for i, v := range s32 {
		steps[i] = int(v)
	}
	return steps, p, nil
}
