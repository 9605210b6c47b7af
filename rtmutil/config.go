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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lnashier/viper"
	"github.com/seismicimaging/rtm"
	"github.com/seismicimaging/rtm/internal/hash"
	"github.com/seismicimaging/rtm/synthetic"
	"github.com/spf13/cast"
)

// checkOutputFile expands any environment variables in f and makes sure
// the directory it is to be written to exists.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="image.ncf")`)
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("rtm: the output directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}

// Parameters unmarshals the computation parameters from a viper
// configuration. The parameters are validated when the engine is
// initialized.
func Parameters(cfg *viper.Viper) (*rtm.ComputationParameters, error) {
	order, err := cast.ToIntE(cfg.Get("Order"))
	if err != nil {
		return nil, fmt.Errorf("parsing computation parameters: Order: %v", err)
	}
	p, err := rtm.NewComputationParameters(order)
	if err != nil {
		return nil, err
	}

	ints := []struct {
		name string
		v    *int
	}{
		{"BoundaryLength", &p.BoundaryLength},
		{"BlockX", &p.BlockX},
		{"BlockY", &p.BlockY},
		{"BlockZ", &p.BlockZ},
		{"Window.LeftX", &p.Window.LeftX},
		{"Window.RightX", &p.Window.RightX},
		{"Window.LeftY", &p.Window.LeftY},
		{"Window.RightY", &p.Window.RightY},
		{"Window.Depth", &p.Window.Depth},
		{"Random.GrainSize", &p.Random.GrainSize},
		{"Alignment", &p.Alignment},
		{"MaxCells", &p.MaxCells},
	}
	for _, o := range ints {
		if *o.v, err = cast.ToIntE(cfg.Get(o.name)); err != nil {
			return nil, fmt.Errorf("parsing computation parameters: %s: %v", o.name, err)
		}
	}
	fl := []struct {
		name string
		v    *float64
	}{
		{"SourceFrequency", &p.SourceFrequency},
		{"DTRelax", &p.DTRelax},
		{"CPML.ReflectCoefficient", &p.CPML.ReflectCoefficient},
		{"CPML.ShiftRatio", &p.CPML.ShiftRatio},
		{"CPML.RelaxCoefficient", &p.CPML.RelaxCoefficient},
	}
	for _, o := range fl {
		if *o.v, err = cast.ToFloat64E(cfg.Get(o.name)); err != nil {
			return nil, fmt.Errorf("parsing computation parameters: %s: %v", o.name, err)
		}
	}
	if p.Window.Enabled, err = cast.ToBoolE(cfg.Get("Window.Enabled")); err != nil {
		return nil, fmt.Errorf("parsing computation parameters: Window.Enabled: %v", err)
	}
	if p.UseTopLayer, err = cast.ToBoolE(cfg.Get("UseTopLayer")); err != nil {
		return nil, fmt.Errorf("parsing computation parameters: UseTopLayer: %v", err)
	}
	if p.Random.Seed, err = cast.ToInt64E(cfg.Get("Random.Seed")); err != nil {
		return nil, fmt.Errorf("parsing computation parameters: Random.Seed: %v", err)
	}

	if p.EquationOrder, err = rtm.ParseEquationOrder(cfg.GetString("EquationOrder")); err != nil {
		return nil, err
	}
	if p.Approximation, err = rtm.ParseApproximation(cfg.GetString("Approximation")); err != nil {
		return nil, err
	}
	if p.Boundary, err = rtm.ParseBoundaryPolicy(cfg.GetString("Boundary")); err != nil {
		return nil, err
	}
	if p.Compensation, err = rtm.ParseCompensation(cfg.GetString("Compensation")); err != nil {
		return nil, err
	}
	if p.Collector, err = rtm.ParseCollector(cfg.GetString("Collector")); err != nil {
		return nil, err
	}
	if p.Compression, err = rtm.ParseCompression(cfg.GetString("Compression")); err != nil {
		return nil, err
	}
	return p, nil
}

// ShotSelection is the range of shot ids to migrate; see
// rtm.GetValidShots.
type ShotSelection struct {
	Min, Max, Stride int
}

func shotSelection(cfg *viper.Viper) (ShotSelection, error) {
	var s ShotSelection
	var err error
	if s.Min, err = cast.ToIntE(cfg.Get("ShotMin")); err != nil {
		return s, fmt.Errorf("ShotMin: %v", err)
	}
	if s.Max, err = cast.ToIntE(cfg.Get("ShotMax")); err != nil {
		return s, fmt.Errorf("ShotMax: %v", err)
	}
	if s.Stride, err = cast.ToIntE(cfg.Get("ShotStride")); err != nil {
		return s, fmt.Errorf("ShotStride: %v", err)
	}
	if s.Stride < 1 {
		return s, fmt.Errorf("parsing shot selection: ShotStride=%d but should be >0", s.Stride)
	}
	return s, nil
}

func acquisition(cfg *viper.Viper) (synthetic.Acquisition, error) {
	var a synthetic.Acquisition
	fields := []struct {
		name string
		v    *int
	}{
		{"Modelling.ShotCount", &a.ShotCount},
		{"Modelling.FirstShot", &a.FirstShot},
		{"Modelling.ShotSpacing", &a.ShotSpacing},
		{"Modelling.SourceDepth", &a.SourceDepth},
		{"Modelling.ReceiverSpacing", &a.ReceiverSpacing},
		{"Modelling.ReceiverDepth", &a.ReceiverDepth},
	}
	for _, f := range fields {
		v, err := cast.ToIntE(cfg.Get(f.name))
		if err != nil {
			return a, fmt.Errorf("parsing acquisition: %s: %v", f.name, err)
		}
		*f.v = v
	}
	return a, nil
}

// ModelFiles locates the earth model: either a velocity file, with an
// optional density file, or a layered synthetic model description.
type ModelFiles struct {
	Velocity, Density, Synthetic string
}

func modelSource(cfg *viper.Viper) ModelFiles {
	return ModelFiles{
		Velocity:  os.ExpandEnv(cfg.GetString("VelocityFile")),
		Density:   os.ExpandEnv(cfg.GetString("DensityFile")),
		Synthetic: os.ExpandEnv(cfg.GetString("SyntheticModel")),
	}
}

// Load reads the model.
func (f ModelFiles) Load() (*rtm.Model, error) {
	const op = "rtmutil.ModelFiles.Load"
	switch {
	case f.Velocity != "" && f.Synthetic != "":
		return nil, rtm.NewError(rtm.ConfigurationError, op, "only one of VelocityFile and SyntheticModel may be specified")
	case f.Synthetic != "":
		if f.Density != "" {
			return nil, rtm.NewError(rtm.ConfigurationError, op, "DensityFile can not be used with SyntheticModel")
		}
		lm, err := synthetic.ReadLayeredModelFile(f.Synthetic)
		if err != nil {
			return nil, err
		}
		return lm.Model()
	case f.Velocity == "":
		return nil, rtm.NewError(rtm.ConfigurationError, op, "either VelocityFile or SyntheticModel needs to be specified")
	}
	m, err := rtm.ReadModelNCF(f.Velocity)
	if err != nil {
		return nil, err
	}
	if f.Density != "" {
		d, err := rtm.ReadModelNCF(f.Density)
		if err != nil {
			return nil, err
		}
		if d.Density != nil {
			m.Density = d.Density
		} else {
			m.Density = d.Velocity
		}
	}
	if err = m.Check(); err != nil {
		return nil, err
	}
	return m, nil
}

// Diagnostics configures the sampling of wavefield norms and pressure
// snapshots. Intervals are in time steps; 0 disables sampling.
type Diagnostics struct {
	NormEvery int
	NormPath  string // CSV output; empty to only log the norms

	SnapshotEvery int
	SnapshotDir   string
}

func diagnostics(cfg *viper.Viper) Diagnostics {
	return Diagnostics{
		NormEvery:     cfg.GetInt("NormWriter.Every"),
		NormPath:      os.ExpandEnv(cfg.GetString("NormWriter.Path")),
		SnapshotEvery: cfg.GetInt("SnapshotWriter.Every"),
		SnapshotDir:   os.ExpandEnv(cfg.GetString("SnapshotWriter.Dir")),
	}
}

// hashExclude lists the options that do not change the migrated image.
var hashExclude = map[string]bool{
	"config":               true,
	"LogFile":              true,
	"OutputFile":           true,
	"PlotFile":             true,
	"PlotSlice":            true,
	"PlotClip":             true,
	"Workers":              true,
	"NormWriter.Every":     true,
	"NormWriter.Path":      true,
	"SnapshotWriter.Every": true,
	"SnapshotWriter.Dir":   true,
}

// ConfigHash returns a key identifying the configuration values that
// determine a migrated image.
func ConfigHash(cfg *viper.Viper) string {
	vals := make(map[string]string)
	for _, o := range options {
		if hashExclude[o.name] {
			continue
		}
		vals[o.name] = cast.ToString(cfg.Get(o.name))
	}
	return hash.Hash(vals)
}
