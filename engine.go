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
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// BoundaryFactory returns the boundary manager of a grid.
type BoundaryFactory func(g *GridBox) (BoundaryManager, error)

// Engine runs reverse time migration: for every selected shot it
// propagates the source wavefield forward while checkpointing, then
// back-propagates the recorded traces while reconstructing the source
// wavefield, correlates the two, and stacks the result.
type Engine struct {
	Params *ComputationParameters
	Model  *Model
	Traces TraceManager

	// NewBoundary builds the boundary manager of each grid. If nil, the
	// grids have no boundary manager.
	NewBoundary BoundaryFactory

	Callbacks Callbacks
	Log       logrus.FieldLogger

	// Workers is the number of shots processed concurrently. Values
	// below 1 use one worker.
	Workers int

	// RecordingTime is the simulated duration. If zero, it is the length
	// of the traces of the first selected shot.
	RecordingTime float64

	// DT fixes the time step. If zero, the stable step of the model
	// scaled by the relaxation factor is used.
	DT float64

	// Shot selection; see GetValidShots.
	ShotMin, ShotMax, ShotStride int

	base    *GridBox
	stack   *ImageStack
	workers []*worker
}

// worker holds the state needed to process one shot at a time.
type worker struct {
	e      *Engine
	grid   *GridBox
	kernel Kernel
	bm     BoundaryManager
	source *Source
	rp     ForwardCollector
	corr   *CrossCorrelation
}

func (e *Engine) log() logrus.FieldLogger {
	if e.Log == nil {
		e.Log = logrus.StandardLogger()
	}
	return e.Log
}

// Grid returns the grid over the full model, available after
// Initialize.
func (e *Engine) Grid() *GridBox { return e.base }

// Initialize validates the configuration, builds the grids and extends
// the model. It is called by Migrate and ModelShots if needed.
func (e *Engine) Initialize() error {
	const op = "Engine.Initialize"
	log := e.log()
	if e.Params == nil || e.Model == nil {
		return errorf(ConfigurationError, op, "parameters and model are required")
	}
	e.Callbacks.BeforeInitialization(e.Params)
	if err := e.Params.Validate(log); err != nil {
		return err
	}
	h := &ModelHandler{Model: e.Model, Params: e.Params}
	base, err := h.NewGridBox()
	if err != nil {
		return err
	}
	vmax := e.Model.MaxVelocity()
	base.DT = e.Params.SuitableDT(base.Full, vmax)
	if e.DT > 0 {
		if e.DT > base.DT/e.Params.DTRelax {
			log.WithFields(logrus.Fields{"dt": e.DT, "stable": base.DT / e.Params.DTRelax}).
				Warn("time step above the stability limit")
		}
		base.DT = e.DT
	}
	rt := e.RecordingTime
	if rt <= 0 {
		if rt, err = e.tracesDuration(); err != nil {
			return err
		}
	}
	base.NT = int(math.Ceil(rt/base.DT - 1e-9))
	if base.NT < 1 {
		return errorf(ConfigurationError, op, "recording time %g shorter than the time step %g", rt, base.DT)
	}
	if e.NewBoundary != nil {
		bm, err := e.NewBoundary(base)
		if err != nil {
			return err
		}
		bm.ExtendModel()
	}
	e.base = base
	if e.stack, err = NewImageStack(base); err != nil {
		return err
	}
	n := e.Workers
	if n < 1 {
		n = 1
	}
	e.workers = e.workers[:0]
	for i := 0; i < n; i++ {
		w, err := e.newWorker()
		if err != nil {
			return err
		}
		e.workers = append(e.workers, w)
	}
	log.WithFields(logrus.Fields{
		"grid":      base.Full,
		"window":    base.Window,
		"dt":        base.DT,
		"nt":        base.NT,
		"boundary":  e.Params.Boundary,
		"order":     e.Params.Order,
		"equation":  e.Params.EquationOrder,
		"collector": e.Params.Collector,
		"workers":   n,
	}).Info("initialized")
	e.Callbacks.AfterInitialization(base)
	return nil
}

func (e *Engine) tracesDuration() (float64, error) {
	const op = "Engine.Initialize"
	if e.Traces == nil {
		return 0, errorf(ConfigurationError, op, "either a recording time or traces are required")
	}
	ids := GetValidShots(e.Traces, e.ShotMin, e.ShotMax, e.ShotStride)
	if len(ids) == 0 {
		return 0, errorf(ConfigurationError, op, "no shots selected")
	}
	s, err := e.Traces.ReadShot(ids[0])
	if err != nil {
		return 0, err
	}
	if err = s.Check(); err != nil {
		return 0, err
	}
	if len(s.Traces) == 0 || len(s.Traces[0]) < 2 {
		return 0, errorf(DataBoundsError, op, "shot %d has no usable traces", s.ID)
	}
	return float64(len(s.Traces[0])-1) * s.DT, nil
}

func (e *Engine) newWorker() (*worker, error) {
	g, err := e.base.CloneLayout()
	if err != nil {
		return nil, err
	}
	w := &worker{e: e, grid: g}
	if w.kernel, err = NewKernel(g); err != nil {
		return nil, err
	}
	if e.NewBoundary != nil {
		if w.bm, err = e.NewBoundary(g); err != nil {
			return nil, err
		}
		w.kernel.SetBoundaryManager(w.bm)
	}
	w.source = NewSource(g)
	if w.rp, err = NewForwardCollector(w.kernel, w.source); err != nil {
		return nil, err
	}
	if w.corr, err = NewCrossCorrelation(g, e.stack); err != nil {
		return nil, err
	}
	return w, nil
}

// Migrate migrates every selected shot and returns the stacked image.
// Shots are processed concurrently by the workers. The first error
// aborts the migration.
func (e *Engine) Migrate(ctx context.Context) (*MigrationData, error) {
	if e.base == nil {
		if err := e.Initialize(); err != nil {
			return nil, err
		}
	}
	if e.Traces == nil {
		return nil, errorf(ConfigurationError, "Engine.Migrate", "no traces")
	}
	ids := GetValidShots(e.Traces, e.ShotMin, e.ShotMax, e.ShotStride)
	if len(ids) == 0 {
		return nil, errorf(ConfigurationError, "Engine.Migrate", "no shots selected")
	}
	start := time.Now()
	err := e.dispatch(ctx, ids, func(w *worker, id int) error { return w.migrate(id) })
	if err != nil {
		return nil, err
	}
	m := e.stack.GetMigrationData()
	e.log().WithFields(logrus.Fields{
		"shots":    m.Shots,
		"duration": time.Since(start),
	}).Info("migration finished")
	e.Callbacks.AfterMigration(m)
	return m, nil
}

// dispatch feeds ids to the workers.
func (e *Engine) dispatch(ctx context.Context, ids []int, f func(w *worker, id int) error) error {
	jobs := make(chan int)
	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		defer close(jobs)
		for _, id := range ids {
			select {
			case jobs <- id:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	for _, w := range e.workers {
		w := w
		grp.Go(func() error {
			for id := range jobs {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := f(w, id); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return grp.Wait()
}

// prepare places the window, source and receivers for shot s.
func (w *worker) prepare(s *Shot) error {
	g := w.grid
	if err := g.SetupWindow(s.Source.X, s.Source.Y); err != nil {
		return err
	}
	if w.bm != nil {
		w.bm.ReExtendModel()
	}
	w.kernel.PreprocessModel()
	return w.source.Place(g, s.Source.X, s.Source.Y, s.Source.Z)
}

// migrate runs the forward and backward passes of a shot and stacks its
// image.
func (w *worker) migrate(id int) (err error) {
	defer recoverShot(id, &err)
	e := w.e
	cb := e.Callbacks
	g := w.grid
	log := e.log().WithField("shot", id)
	start := time.Now()

	cb.BeforeShotPreprocessing(id)
	shot, err := e.Traces.ReadShot(id)
	if err != nil {
		return err
	}
	if err = shot.Check(); err != nil {
		return err
	}
	shot = shot.Resample(g.DT, g.NT)
	cb.AfterShotPreprocessing(shot)
	if err = w.prepare(shot); err != nil {
		return err
	}
	inj := newReceiverInjector(g, shot)
	log.WithFields(logrus.Fields{
		"source":    shot.Source,
		"receivers": len(inj.cells),
		"window_x":  g.StartX,
		"window_y":  g.StartY,
	}).Info("migrating shot")

	w.corr.ResetShotCorrelation()
	if err = w.kernel.SetMode(Forward); err != nil {
		return err
	}
	if err = w.rp.ResetGrid(true); err != nil {
		return err
	}
	cb.BeforeForwardPropagation(id, g)
	for step := 1; step <= g.NT; step++ {
		w.kernel.Step()
		w.source.Inject(g, step, 1)
		w.rp.SaveForward()
		cb.AfterForwardStep(id, step, g)
	}

	if err = w.rp.ResetGrid(false); err != nil {
		return err
	}
	if w.bm != nil {
		w.bm.AdjustModelForBackward()
	}
	if err = w.kernel.SetMode(Adjoint); err != nil {
		return err
	}
	cb.BeforeBackwardPropagation(id, g)
	fwd := w.rp.GetForwardGrid()
	for w.rp.State() == BackwardRunning {
		it := w.rp.Step()
		w.kernel.Step()
		inj.inject(g, it)
		cb.AfterBackwardStep(id, it, g)
		w.corr.Correlate(fwd)
		w.rp.FetchForward()
		cb.AfterFetchStep(id, w.rp.Step(), fwd)
	}

	cb.BeforeShotStacking(id, w.corr.ShotImage())
	w.corr.Stack()
	cb.AfterShotStacking(id, e.stack)
	log.WithField("duration", time.Since(start)).Info("shot stacked")
	return nil
}
