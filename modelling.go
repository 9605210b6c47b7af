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
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// ModelShots forward-models the given shots, whose sources and receivers
// must be set, through the engine's model, and returns them with their
// traces filled in. Traces are sampled at every time step, from the
// quiescent state at step 0 through step NT.
func (e *Engine) ModelShots(ctx context.Context, shots []*Shot) ([]*Shot, error) {
	if e.base == nil {
		if err := e.Initialize(); err != nil {
			return nil, err
		}
	}
	byID := make(map[int]*Shot, len(shots))
	ids := make([]int, len(shots))
	for i, s := range shots {
		if _, ok := byID[s.ID]; ok {
			return nil, errorf(ConfigurationError, "Engine.ModelShots", "duplicate shot id %d", s.ID)
		}
		byID[s.ID] = s
		ids[i] = s.ID
	}
	out := make(map[int]*Shot, len(shots))
	var mu sync.Mutex
	err := e.dispatch(ctx, ids, func(w *worker, id int) error {
		s, err := w.model(byID[id])
		if err != nil {
			return err
		}
		mu.Lock()
		out[id] = s
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	o := make([]*Shot, len(shots))
	for i, id := range ids {
		o[i] = out[id]
	}
	return o, nil
}

// model propagates the source of s and records the receivers.
func (w *worker) model(s *Shot) (o *Shot, err error) {
	defer recoverShot(s.ID, &err)
	g := w.grid
	cb := w.e.Callbacks
	cb.BeforeShotPreprocessing(s.ID)
	if err = w.prepare(s); err != nil {
		return nil, err
	}
	o = &Shot{
		ID:        s.ID,
		Source:    s.Source,
		Receivers: append([]Cell(nil), s.Receivers...),
		DT:        g.DT,
		Traces:    make([][]float64, len(s.Receivers)),
	}
	for i := range o.Traces {
		o.Traces[i] = make([]float64, g.NT+1)
	}
	cb.AfterShotPreprocessing(o)
	rec := newReceiverRecorder(g, o.Receivers)
	w.e.log().WithFields(logrus.Fields{
		"shot":      s.ID,
		"source":    s.Source,
		"receivers": len(rec.cells),
	}).Info("modelling shot")

	if err = w.kernel.SetMode(Forward); err != nil {
		return nil, err
	}
	g.ZeroWavefields()
	cb.BeforeForwardPropagation(s.ID, g)
	for step := 1; step <= g.NT; step++ {
		w.kernel.Step()
		w.source.Inject(g, step, 1)
		rec.record(g, o.Traces, step)
		cb.AfterForwardStep(s.ID, step, g)
	}
	return o, nil
}
