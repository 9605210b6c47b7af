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
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/seismicimaging/rtm"
	"github.com/seismicimaging/rtm/boundary"
	"github.com/seismicimaging/rtm/synthetic"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// session holds the resources shared by Run and Model.
type session struct {
	log       *logrus.Logger
	logFile   *os.File
	normFile  *os.File
	norms     *rtm.NormWriter
	snapshots *rtm.SnapshotWriter
	engine    *rtm.Engine
}

// newSession creates the log file and an engine over the model.
func newSession(cmd *cobra.Command, logFile string, models ModelFiles, p *rtm.ComputationParameters,
	workers int, recordingTime, dt float64, diag Diagnostics) (*session, error) {
	s := new(session)
	var err error
	s.logFile, err = os.Create(logFile)
	if err != nil {
		return nil, fmt.Errorf("rtm: problem creating log file: %v", err)
	}
	var out io.Writer = os.Stdout
	if cmd != nil {
		out = cmd.OutOrStdout()
	}
	s.log = logrus.New()
	s.log.Out = io.MultiWriter(out, s.logFile)
	s.log.Formatter = &logrus.TextFormatter{DisableColors: true, FullTimestamp: true}

	s.log.Info("Reading the model...")
	m, err := models.Load()
	if err != nil {
		s.close()
		return nil, err
	}
	s.engine = &rtm.Engine{
		Params:        p,
		Model:         m,
		NewBoundary:   boundary.New,
		Log:           s.log,
		Workers:       workers,
		RecordingTime: recordingTime,
		DT:            dt,
	}
	if diag.NormEvery > 0 {
		var w io.Writer
		if diag.NormPath != "" {
			if s.normFile, err = os.Create(diag.NormPath); err != nil {
				s.close()
				return nil, rtm.NewError(rtm.CollaboratorIOError, "rtmutil.newSession", "%v", err)
			}
			if _, err = fmt.Fprintln(s.normFile, "shot,phase,step,norm"); err != nil {
				s.close()
				return nil, rtm.NewError(rtm.CollaboratorIOError, "rtmutil.newSession", "%v", err)
			}
			w = s.normFile
		}
		s.norms = rtm.NewNormWriter(diag.NormEvery, w)
		s.norms.Log = s.log
		s.engine.Callbacks = append(s.engine.Callbacks, s.norms)
	}
	if diag.SnapshotEvery > 0 {
		if _, err = os.Stat(diag.SnapshotDir); err != nil {
			s.close()
			return nil, rtm.NewError(rtm.ConfigurationError, "rtmutil.newSession",
				"the snapshot directory doesn't exist: %v", err)
		}
		s.snapshots = rtm.NewSnapshotWriter(diag.SnapshotEvery, diag.SnapshotDir)
		s.snapshots.Log = s.log
		s.engine.Callbacks = append(s.engine.Callbacks, s.snapshots)
	}
	return s, nil
}

// finish writes the pending snapshots and reports any diagnostics that
// could not be written.
func (s *session) finish() error {
	if s.snapshots != nil {
		if err := s.snapshots.Close(); err != nil {
			return err
		}
		s.log.WithField("files", len(s.snapshots.Files())).Info("Snapshots written.")
	}
	if s.norms != nil {
		return s.norms.Err()
	}
	return nil
}

func (s *session) close() error {
	var err error
	if s.normFile != nil {
		err = s.normFile.Close()
	}
	if cerr := s.logFile.Close(); err == nil {
		err = cerr
	}
	return err
}

// Run migrates the shots in traceFile and writes the stacked image to
// outputFile.
//
// cmd is the cobra.Command instance where Run is called from; log
// messages are written to its output as well as to logFile.
//
// models locates the earth model and p holds the computation
// parameters. sel selects the shots to migrate and workers is the
// number of shots migrated concurrently.
//
// recordingTime is the simulated duration; if zero, the length of the
// traces is used. dt fixes the time step if it is nonzero.
//
// configHash identifies the configuration and is stored with the image.
func Run(cmd *cobra.Command, logFile, outputFile, traceFile string, models ModelFiles,
	p *rtm.ComputationParameters, sel ShotSelection, workers int, recordingTime, dt float64,
	diag Diagnostics, configHash string) error {

	startTime := time.Now()
	s, err := newSession(cmd, logFile, models, p, workers, recordingTime, dt, diag)
	if err != nil {
		return err
	}
	defer s.close()

	s.log.Info("Reading the traces...")
	traces, err := rtm.ReadTracesNCF(traceFile)
	if err != nil {
		return err
	}
	e := s.engine
	e.Traces = traces
	e.ShotMin, e.ShotMax, e.ShotStride = sel.Min, sel.Max, sel.Stride

	m, err := e.Migrate(context.Background())
	if err != nil {
		return err
	}
	if err = s.finish(); err != nil {
		return err
	}
	s.log.WithField("file", outputFile).Info("Writing the image...")
	if err = rtm.WriteMigrationNCF(outputFile, m, configHash); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"shots":    m.Shots,
		"duration": time.Since(startTime).Round(time.Millisecond),
	}).Info("RTM has successfully completed.")
	return s.close()
}

// Model simulates the shots of acq through the model and writes the
// recorded pressure to traceFile. The arguments are as for Run, with
// recordingTime required.
func Model(cmd *cobra.Command, logFile, traceFile string, models ModelFiles,
	p *rtm.ComputationParameters, acq synthetic.Acquisition, workers int, recordingTime, dt float64,
	diag Diagnostics) error {

	startTime := time.Now()
	if recordingTime <= 0 {
		return rtm.NewError(rtm.ConfigurationError, "rtmutil.Model", "Modelling.RecordingTime=%g but should be >0", recordingTime)
	}
	s, err := newSession(cmd, logFile, models, p, workers, recordingTime, dt, diag)
	if err != nil {
		return err
	}
	defer s.close()

	shots, err := acq.Shots(s.engine.Model)
	if err != nil {
		return err
	}
	out, err := s.engine.ModelShots(context.Background(), shots)
	if err != nil {
		return err
	}
	if err = s.finish(); err != nil {
		return err
	}
	s.log.WithField("file", traceFile).Info("Writing the traces...")
	if err = rtm.WriteTracesNCF(traceFile, out); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"shots":    len(out),
		"duration": time.Since(startTime).Round(time.Millisecond),
	}).Info("Modelling has successfully completed.")
	return s.close()
}
