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
	"encoding/binary"
	"math"

	"github.com/klauspost/compress/zstd"
)

// ForwardCollector makes the source wavefield of a forward propagation
// available again during the backward pass, in reverse time order.
//
// A forward pass starts with ResetGrid(true) and calls SaveForward after
// every step of the main kernel. ResetGrid(false) then positions the
// collector on step NT-1, and each FetchForward moves it one step back
// until its state is Done at step 0. GetForwardGrid holds the forward
// pressure of the current step.
type ForwardCollector interface {
	ResetGrid(forward bool) error
	SaveForward()
	FetchForward()
	GetForwardGrid() *GridBox
	State() PropagatorState
	Step() int
}

// NewForwardCollector returns the collector selected by the parameters
// of the grid of main.
func NewForwardCollector(main Kernel, src *Source) (ForwardCollector, error) {
	p := main.Grid().Params()
	switch p.Collector {
	case TwoPropagation:
		return NewSnapshotCollector(main, p.Compression)
	case ReversePropagation:
		return NewTimeReversalPropagator(main, src)
	case BoundarySaving, "":
		return NewReversePropagator(main, src)
	}
	return nil, errorf(ConfigurationError, "NewForwardCollector", "unknown forward collector %q", p.Collector)
}

// SnapshotCollector keeps the forward pressure of every step, so that
// the backward pass reads it back instead of recomputing it. Snapshots
// may be compressed losslessly with zstd.
type SnapshotCollector struct {
	main Kernel
	grid *GridBox

	compression Compression
	enc         *zstd.Encoder
	dec         *zstd.Decoder
	buf         []byte

	cells    int
	maxCells int
	raw      []float64 // [step][cell], without compression
	packed   [][]byte  // [step], with compression

	state   PropagatorState
	counter int
}

// NewSnapshotCollector returns a snapshot collector for main.
func NewSnapshotCollector(main Kernel, c Compression) (*SnapshotCollector, error) {
	const op = "NewSnapshotCollector"
	g, err := main.Grid().CloneLayout()
	if err != nil {
		return nil, err
	}
	s := &SnapshotCollector{
		main:        main,
		grid:        g,
		compression: c,
		cells:       len(g.Get(PressureCurr).Data),
		maxCells:    g.Params().MaxCells,
	}
	switch c {
	case NoSnapshotCompression, "":
	case ZstdCompression:
		if s.enc, err = zstd.NewWriter(nil); err != nil {
			return nil, errorf(ConfigurationError, op, "zstd encoder: %v", err)
		}
		if s.dec, err = zstd.NewReader(nil); err != nil {
			return nil, errorf(ConfigurationError, op, "zstd decoder: %v", err)
		}
	default:
		return nil, errorf(ConfigurationError, op, "unknown compression %q", c)
	}
	return s, nil
}

// State returns the current state.
func (s *SnapshotCollector) State() PropagatorState { return s.state }

// Step returns the step of the snapshot most recently saved or loaded.
func (s *SnapshotCollector) Step() int { return s.counter }

// GetForwardGrid returns the grid snapshots are loaded into.
func (s *SnapshotCollector) GetForwardGrid() *GridBox { return s.grid }

// ResetGrid prepares a pass. With forward true it zeroes the main
// wavefields, drops the stored snapshots and saves the initial state.
// With forward false it loads the snapshot of the step before the last
// and zeroes the main wavefields for back-propagation.
func (s *SnapshotCollector) ResetGrid(forward bool) error {
	const op = "SnapshotCollector.ResetGrid"
	mg := s.main.Grid()
	if forward {
		if s.compression != ZstdCompression {
			n := (mg.NT + 1) * s.cells
			if n > s.maxCells {
				return errorf(DeviceResourceError, op,
					"snapshots need %d values, limit is %d", n, s.maxCells)
			}
			if cap(s.raw) >= n {
				s.raw = s.raw[:0]
			} else {
				s.raw = make([]float64, 0, n)
			}
		} else {
			s.packed = s.packed[:0]
		}
		mg.ZeroWavefields()
		s.grid.ZeroWavefields()
		s.counter = 0
		s.state = ForwardRunning
		s.save()
		return nil
	}
	if s.state != ForwardRunning {
		return errorf(LogicError, op, "cannot start the backward pass from state %v", s.state)
	}
	s.grid.CopyWindowParameters(mg)
	s.grid.ZeroWavefields()
	mg.ZeroWavefields()
	if s.counter == 0 {
		s.state = Done
		return nil
	}
	s.counter--
	s.load()
	s.state = BackwardRunning
	if s.counter == 0 {
		s.state = Done
	}
	return nil
}

// SaveForward stores the main pressure after a forward step.
func (s *SnapshotCollector) SaveForward() {
	if s.state != ForwardRunning {
		panic(errorf(LogicError, "SnapshotCollector.SaveForward", "called in state %v", s.state))
	}
	s.counter++
	s.save()
}

// FetchForward loads the snapshot of the previous step.
func (s *SnapshotCollector) FetchForward() {
	if s.state != BackwardRunning {
		panic(errorf(LogicError, "SnapshotCollector.FetchForward", "called in state %v", s.state))
	}
	s.counter--
	s.load()
	if s.counter == 0 {
		s.state = Done
	}
}

func (s *SnapshotCollector) save() {
	p := s.main.Grid().Get(PressureCurr).Data
	if s.enc == nil {
		s.raw = append(s.raw, p...)
		return
	}
	s.buf = appendFloats(s.buf[:0], p)
	s.packed = append(s.packed, s.enc.EncodeAll(s.buf, nil))
}

func (s *SnapshotCollector) load() {
	const op = "SnapshotCollector.FetchForward"
	dst := s.grid.Get(PressureCurr).Data
	if s.enc == nil {
		copy(dst, s.raw[s.counter*s.cells:(s.counter+1)*s.cells])
		return
	}
	var err error
	s.buf, err = s.dec.DecodeAll(s.packed[s.counter], s.buf[:0])
	if err != nil {
		panic(errorf(LogicError, op, "step %d: %v", s.counter, err))
	}
	if len(s.buf) != 8*len(dst) {
		panic(errorf(LogicError, op, "step %d holds %d bytes, want %d", s.counter, len(s.buf), 8*len(dst)))
	}
	for i := range dst {
		dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(s.buf[8*i:]))
	}
	s.packed[s.counter] = nil
}

func appendFloats(b []byte, v []float64) []byte {
	for _, f := range v {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(f))
	}
	return b
}
