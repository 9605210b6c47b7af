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
	"io"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// Callback observes a migration. Callbacks must not modify the grids or
// images they are given. Shots may run concurrently, so implementations
// must be safe for concurrent use.
type Callback interface {
	BeforeInitialization(p *ComputationParameters)
	AfterInitialization(g *GridBox)
	BeforeShotPreprocessing(shot int)
	AfterShotPreprocessing(s *Shot)
	BeforeForwardPropagation(shot int, g *GridBox)
	AfterForwardStep(shot, step int, g *GridBox)
	BeforeBackwardPropagation(shot int, g *GridBox)
	AfterBackwardStep(shot, step int, g *GridBox)
	AfterFetchStep(shot, step int, forward *GridBox)
	BeforeShotStacking(shot int, image *Field)
	AfterShotStacking(shot int, stack *ImageStack)
	AfterMigration(m *MigrationData)
}

// NopCallback implements Callback and does nothing. It can be embedded
// to implement only some of the hooks.
type NopCallback struct{}

func (NopCallback) BeforeInitialization(*ComputationParameters) {}
func (NopCallback) AfterInitialization(*GridBox)                {}
func (NopCallback) BeforeShotPreprocessing(int)                 {}
func (NopCallback) AfterShotPreprocessing(*Shot)                {}
func (NopCallback) BeforeForwardPropagation(int, *GridBox)      {}
func (NopCallback) AfterForwardStep(int, int, *GridBox)         {}
func (NopCallback) BeforeBackwardPropagation(int, *GridBox)     {}
func (NopCallback) AfterBackwardStep(int, int, *GridBox)        {}
func (NopCallback) AfterFetchStep(int, int, *GridBox)           {}
func (NopCallback) BeforeShotStacking(int, *Field)              {}
func (NopCallback) AfterShotStacking(int, *ImageStack)          {}
func (NopCallback) AfterMigration(*MigrationData)               {}

// Callbacks runs every callback it holds, in order.
type Callbacks []Callback

func (cs Callbacks) BeforeInitialization(p *ComputationParameters) {
	for _, c := range cs {
		c.BeforeInitialization(p)
	}
}

func (cs Callbacks) AfterInitialization(g *GridBox) {
	for _, c := range cs {
		c.AfterInitialization(g)
	}
}

func (cs Callbacks) BeforeShotPreprocessing(shot int) {
	for _, c := range cs {
		c.BeforeShotPreprocessing(shot)
	}
}

func (cs Callbacks) AfterShotPreprocessing(s *Shot) {
	for _, c := range cs {
		c.AfterShotPreprocessing(s)
	}
}

func (cs Callbacks) BeforeForwardPropagation(shot int, g *GridBox) {
	for _, c := range cs {
		c.BeforeForwardPropagation(shot, g)
	}
}

func (cs Callbacks) AfterForwardStep(shot, step int, g *GridBox) {
	for _, c := range cs {
		c.AfterForwardStep(shot, step, g)
	}
}

func (cs Callbacks) BeforeBackwardPropagation(shot int, g *GridBox) {
	for _, c := range cs {
		c.BeforeBackwardPropagation(shot, g)
	}
}

func (cs Callbacks) AfterBackwardStep(shot, step int, g *GridBox) {
	for _, c := range cs {
		c.AfterBackwardStep(shot, step, g)
	}
}

func (cs Callbacks) AfterFetchStep(shot, step int, forward *GridBox) {
	for _, c := range cs {
		c.AfterFetchStep(shot, step, forward)
	}
}

func (cs Callbacks) BeforeShotStacking(shot int, image *Field) {
	for _, c := range cs {
		c.BeforeShotStacking(shot, image)
	}
}

func (cs Callbacks) AfterShotStacking(shot int, stack *ImageStack) {
	for _, c := range cs {
		c.AfterShotStacking(shot, stack)
	}
}

func (cs Callbacks) AfterMigration(m *MigrationData) {
	for _, c := range cs {
		c.AfterMigration(m)
	}
}

// Norm returns the L2 norm of the current pressure of g over the
// physical cells of the window.
func Norm(g *GridBox) float64 {
	f := g.Get(PressureCurr)
	x0, x1 := g.Window.X.PhysicalRange()
	y0, y1 := g.Window.Y.PhysicalRange()
	z0, z1 := g.Window.Z.PhysicalRange()
	var sum float64
	for iy := y0; iy < y1; iy++ {
		for iz := z0; iz < z1; iz++ {
			row := f.Index(x0, iy, iz)
			n := floats.Norm(f.Data[row:row+x1-x0], 2)
			sum += n * n
		}
	}
	return math.Sqrt(sum)
}

// NormRecord is a wavefield norm sampled by a NormWriter.
type NormRecord struct {
	Shot  int
	Phase string // "forward", "backward" or "reconstructed"
	Step  int
	Norm  float64
}

// NormWriter samples the norms of the forward, backward and
// reconstructed wavefields every Every steps. Samples are kept in
// Records, logged at debug level, and written as CSV lines to W if it
// is not nil. Writing stops at the first error, which Err returns.
type NormWriter struct {
	NopCallback

	Every int
	W     io.Writer
	Log   logrus.FieldLogger

	mu      sync.Mutex
	Records []NormRecord
	err     error
}

// NewNormWriter returns a NormWriter sampling every k steps.
func NewNormWriter(k int, w io.Writer) *NormWriter {
	if k < 1 {
		k = 1
	}
	return &NormWriter{Every: k, W: w, Log: logrus.StandardLogger()}
}

func (n *NormWriter) sample(shot, step int, phase string, g *GridBox) {
	if step%n.Every != 0 {
		return
	}
	r := NormRecord{Shot: shot, Phase: phase, Step: step, Norm: Norm(g)}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Records = append(n.Records, r)
	if n.Log != nil {
		n.Log.WithFields(logrus.Fields{
			"shot":  shot,
			"phase": phase,
			"step":  step,
		}).Debugf("norm %g", r.Norm)
	}
	if n.W == nil || n.err != nil {
		return
	}
	if _, err := fmt.Fprintf(n.W, "%d,%s,%d,%g\n", shot, phase, step, r.Norm); err != nil {
		n.err = errorf(CollaboratorIOError, "NormWriter", "writing norms: %v", err)
		if n.Log != nil {
			n.Log.WithError(err).Error("norm output disabled")
		}
	}
}

// Err returns the first error met writing to W.
func (n *NormWriter) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

// Norms returns the norms recorded for a shot and phase, in the order
// they were sampled.
func (n *NormWriter) Norms(shot int, phase string) []float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	var o []float64
	for _, r := range n.Records {
		if r.Shot == shot && r.Phase == phase {
			o = append(o, r.Norm)
		}
	}
	return o
}

func (n *NormWriter) AfterForwardStep(shot, step int, g *GridBox) {
	n.sample(shot, step, "forward", g)
}

func (n *NormWriter) AfterBackwardStep(shot, step int, g *GridBox) {
	n.sample(shot, step, "backward", g)
}

func (n *NormWriter) AfterFetchStep(shot, step int, forward *GridBox) {
	n.sample(shot, step, "reconstructed", forward)
}
