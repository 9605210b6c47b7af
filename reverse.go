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

import "fmt"

// PropagatorState is the state of a ForwardCollector.
type PropagatorState int

// Propagator states.
const (
	Idle PropagatorState = iota
	ForwardRunning
	BackwardRunning
	Done
)

func (s PropagatorState) String() string {
	switch s {
	case Idle:
		return "idle"
	case ForwardRunning:
		return "forward"
	case BackwardRunning:
		return "backward"
	case Done:
		return "done"
	}
	return fmt.Sprintf("PropagatorState(%d)", int(s))
}

// ReversePropagator reconstructs the forward wavefield one step at a
// time and backwards in time, on an internal grid, by running the
// inverse kernel from the last forward state. It records the boundary
// rings of the forward propagation and writes them back after each
// inverse step, unless it was built by NewTimeReversalPropagator.
//
// The forward state after step k is saved at index k. Index 0 holds the
// quiescent initial state.
type ReversePropagator struct {
	main   Kernel
	grid   *GridBox // reconstruction grid
	kernel Kernel   // reconstruction kernel
	store  *BoundarySaver
	source *Source

	state   PropagatorState
	counter int
}

// NewReversePropagator returns a propagator recording the propagation of
// main, whose source is src.
func NewReversePropagator(main Kernel, src *Source) (*ReversePropagator, error) {
	g, err := main.Grid().CloneLayout()
	if err != nil {
		return nil, err
	}
	k, err := main.Clone(g)
	if err != nil {
		return nil, err
	}
	if err = k.SetMode(Inverse); err != nil {
		return nil, err
	}
	store, err := NewBoundarySaver(main.Grid(), main.StateTags(), main.Grid().NT)
	if err != nil {
		return nil, err
	}
	r := &ReversePropagator{main: main, grid: g, kernel: k, store: store, source: src}
	if h, ok := k.(interface{ SetMidStepHook(func()) }); ok {
		h.SetMidStepHook(func() { r.store.Restore(r.grid, r.counter-1, PressureCurr) })
	}
	return r, nil
}

// NewTimeReversalPropagator returns a propagator that stores nothing
// and relies on the time reversibility of the wave equation alone. The
// reconstruction is only faithful when the boundary of main does not
// absorb energy, which is the case for the none and random policies.
func NewTimeReversalPropagator(main Kernel, src *Source) (*ReversePropagator, error) {
	switch p := main.Grid().Params().Boundary; p {
	case NoBoundary, RandomBoundary:
	default:
		return nil, errorf(ConfigurationError, "NewTimeReversalPropagator",
			"the %s boundary cannot be reversed without storage", p)
	}
	g, err := main.Grid().CloneLayout()
	if err != nil {
		return nil, err
	}
	k, err := main.Clone(g)
	if err != nil {
		return nil, err
	}
	if err = k.SetMode(Inverse); err != nil {
		return nil, err
	}
	return &ReversePropagator{main: main, grid: g, kernel: k, source: src}, nil
}

// State returns the current state.
func (r *ReversePropagator) State() PropagatorState { return r.state }

// Step returns the time step of the forward state most recently saved,
// or, while running backward, of the reconstructed state.
func (r *ReversePropagator) Step() int { return r.counter }

// GetForwardGrid returns the reconstruction grid.
func (r *ReversePropagator) GetForwardGrid() *GridBox { return r.grid }

// Store returns the checkpoint store, nil for a time reversal
// propagator.
func (r *ReversePropagator) Store() *BoundarySaver { return r.store }

// ResetGrid prepares a pass. With forward true it zeroes the main
// wavefields, clears the store, and saves the initial state. With
// forward false it seeds the reconstruction grid with the last forward
// state, zeroes the main wavefields for back-propagation, and moves to
// the backward pass, positioned on the step before the last.
func (r *ReversePropagator) ResetGrid(forward bool) error {
	const op = "ReversePropagator.ResetGrid"
	mg := r.main.Grid()
	if forward {
		mg.ZeroWavefields()
		r.grid.ZeroWavefields()
		r.counter = 0
		if r.store != nil {
			if err := r.store.Reset(mg.NT); err != nil {
				return err
			}
			r.store.Save(mg, 0)
		}
		r.state = ForwardRunning
		return nil
	}
	if r.state != ForwardRunning {
		return errorf(LogicError, op, "cannot start the backward pass from state %v", r.state)
	}
	r.grid.CopyWindowParameters(mg)
	r.grid.ZeroWavefields()
	if r.counter == 0 {
		mg.ZeroWavefields()
		r.state = Done
		return nil
	}
	switch mg.Params().EquationOrder {
	case SecondOrder:
		// Reversed slots make the same stencil step backwards.
		r.grid.Get(PressurePrev).CopyFrom(mg.Get(PressureCurr))
		r.grid.Get(PressureCurr).CopyFrom(mg.Get(PressurePrev))
		r.counter--
		r.state = BackwardRunning
	default:
		for _, t := range r.main.StateTags() {
			r.grid.Get(t).CopyFrom(mg.Get(t))
		}
		r.state = BackwardRunning
		r.FetchForward()
	}
	mg.ZeroWavefields()
	if r.counter == 0 {
		r.state = Done
	}
	return nil
}

// SaveForward records the main grid state after a forward step.
func (r *ReversePropagator) SaveForward() {
	if r.state != ForwardRunning {
		panic(errorf(LogicError, "ReversePropagator.SaveForward", "called in state %v", r.state))
	}
	r.counter++
	if r.store != nil {
		r.store.Save(r.main.Grid(), r.counter)
	}
}

// FetchForward moves the reconstruction one step back in time.
func (r *ReversePropagator) FetchForward() {
	if r.state != BackwardRunning {
		panic(errorf(LogicError, "ReversePropagator.FetchForward", "called in state %v", r.state))
	}
	switch r.grid.Params().EquationOrder {
	case SecondOrder:
		r.kernel.Step()
		r.source.Inject(r.grid, r.counter+1, 1)
		r.counter--
		if r.store != nil {
			r.store.Restore(r.grid, r.counter, PressureCurr)
		}
	default:
		r.source.Inject(r.grid, r.counter, -1)
		r.kernel.Step() // restores the pressure ring half way
		if r.store != nil {
			r.store.Restore(r.grid, r.counter-1, r.kernel.StateTags()[1:]...)
		}
		r.counter--
	}
	if r.counter == 0 {
		r.state = Done
	}
}
