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
	"math"
	"sort"
	"sync"
)

// Cell is a physical cell of the full model.
type Cell struct {
	X, Y, Z int
}

// Shot is one source excitation and the traces recorded for it.
type Shot struct {
	ID        int
	Source    Cell
	Receivers []Cell

	// DT is the sample interval of the traces.
	DT float64

	// Traces holds one time series per receiver.
	Traces [][]float64
}

// TraceManager provides the recorded data of a survey.
type TraceManager interface {
	// ShotIDs returns the identifiers of every shot available.
	ShotIDs() []int

	// ReadShot returns the shot with the given identifier.
	ReadShot(id int) (*Shot, error)
}

// GetValidShots returns, in increasing order, every stride-th shot of tm
// whose identifier is within [min, max]. A negative max has no upper
// limit and a stride below 1 selects every shot.
func GetValidShots(tm TraceManager, min, max, stride int) []int {
	ids := append([]int(nil), tm.ShotIDs()...)
	sort.Ints(ids)
	if stride < 1 {
		stride = 1
	}
	var o []int
	n := 0
	for _, id := range ids {
		if id < min || (max >= 0 && id > max) {
			continue
		}
		if n%stride == 0 {
			o = append(o, id)
		}
		n++
	}
	return o
}

// Check returns a DataBoundsError if the traces of s cannot be used: its
// sample interval must be positive and finite and it must hold one trace
// per receiver.
func (s *Shot) Check() error {
	const op = "Shot.Check"
	if !(s.DT > 0) || math.IsInf(s.DT, 0) {
		return errorf(DataBoundsError, op, "shot %d: invalid sample interval %g", s.ID, s.DT)
	}
	if len(s.Traces) != len(s.Receivers) {
		return errorf(DataBoundsError, op, "shot %d: %d traces for %d receivers",
			s.ID, len(s.Traces), len(s.Receivers))
	}
	return nil
}

// Resample returns the traces of s linearly interpolated onto nt+1
// samples spaced by dt. Samples past the end of the recording are zero.
func (s *Shot) Resample(dt float64, nt int) *Shot {
	o := &Shot{ID: s.ID, Source: s.Source, Receivers: s.Receivers, DT: dt,
		Traces: make([][]float64, len(s.Traces))}
	for r, tr := range s.Traces {
		out := make([]float64, nt+1)
		for k := range out {
			t := float64(k) * dt / s.DT
			i := int(t)
			if i >= len(tr)-1 {
				if i == len(tr)-1 && t == float64(i) {
					out[k] = tr[i]
				}
				continue
			}
			f := t - float64(i)
			out[k] = (1-f)*tr[i] + f*tr[i+1]
		}
		o.Traces[r] = out
	}
	return o
}

// Gather is an in-memory TraceManager. It is safe for concurrent use.
type Gather struct {
	mu    sync.RWMutex
	shots map[int]*Shot
}

// NewGather returns a gather holding shots.
func NewGather(shots ...*Shot) *Gather {
	g := &Gather{shots: make(map[int]*Shot)}
	for _, s := range shots {
		g.shots[s.ID] = s
	}
	return g
}

// AddShot adds or replaces a shot.
func (g *Gather) AddShot(s *Shot) {
	g.mu.Lock()
	g.shots[s.ID] = s
	g.mu.Unlock()
}

// ShotIDs implements TraceManager.
func (g *Gather) ShotIDs() []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	o := make([]int, 0, len(g.shots))
	for id := range g.shots {
		o = append(o, id)
	}
	sort.Ints(o)
	return o
}

// ReadShot implements TraceManager.
func (g *Gather) ReadShot(id int) (*Shot, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.shots[id]
	if !ok {
		return nil, errorf(CollaboratorIOError, "Gather.ReadShot", "no shot %d", id)
	}
	return s, nil
}

// receiverInjector adds recorded amplitudes to the main grid during
// back-propagation.
type receiverInjector struct {
	cells  []int // flat window offsets
	traces [][]float64
}

// newReceiverInjector keeps the receivers of s that fall inside the
// window of g.
func newReceiverInjector(g *GridBox, s *Shot) *receiverInjector {
	ri := new(receiverInjector)
	f := g.Get(PressureCurr)
	for i, r := range s.Receivers {
		ix, iy, iz, ok := g.WindowCell(r.X, r.Y, r.Z)
		if !ok {
			continue
		}
		ri.cells = append(ri.cells, f.Index(ix, iy, iz))
		ri.traces = append(ri.traces, s.Traces[i])
	}
	return ri
}

// inject adds the samples of step, scaled by the velocity factor, to the
// current pressure of g.
func (ri *receiverInjector) inject(g *GridBox, step int) {
	p := g.Get(PressureCurr).Data
	vf := g.Get(VelocityParm | Wind).Data
	for i, c := range ri.cells {
		if tr := ri.traces[i]; step >= 0 && step < len(tr) {
			p[c] += tr[step] * vf[c]
		}
	}
}

// receiverRecorder samples the current pressure of a grid at receivers.
type receiverRecorder struct {
	cells []int
	index []int // receiver index of each cell
}

func newReceiverRecorder(g *GridBox, receivers []Cell) *receiverRecorder {
	rr := new(receiverRecorder)
	f := g.Get(PressureCurr)
	for i, r := range receivers {
		ix, iy, iz, ok := g.WindowCell(r.X, r.Y, r.Z)
		if !ok {
			continue
		}
		rr.cells = append(rr.cells, f.Index(ix, iy, iz))
		rr.index = append(rr.index, i)
	}
	return rr
}

func (rr *receiverRecorder) record(g *GridBox, traces [][]float64, step int) {
	p := g.Get(PressureCurr).Data
	for i, c := range rr.cells {
		traces[rr.index[i]][step] = p[c]
	}
}
