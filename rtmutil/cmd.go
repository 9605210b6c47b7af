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

	"github.com/lnashier/viper"
	"github.com/seismicimaging/rtm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// computation is the set of flags shared by the commands that
	// propagate waves.
	computation := []*pflag.FlagSet{runCmd.Flags(), modelCmd.Flags()}

	// Options are the configuration options available to RTM.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "VelocityFile",
			usage: `
              VelocityFile is the path to the NetCDF file holding the velocity
              model, and optionally the density model. It can contain
              environment variables.`,
			defaultVal: "",
			flagsets:   computation,
		},
		{
			name: "DensityFile",
			usage: `
              DensityFile is the path to a NetCDF file whose "density" variable
              replaces the density of the velocity file. It is optional.`,
			defaultVal: "",
			flagsets:   computation,
		},
		{
			name: "SyntheticModel",
			usage: `
              SyntheticModel is the path to a TOML layered model description.
              It is used instead of VelocityFile if VelocityFile is empty.`,
			defaultVal: "",
			flagsets:   computation,
		},
		{
			name: "TraceFile",
			usage: `
              TraceFile is the path of the NetCDF shot gathers. 'run' reads
              it and 'model' writes it.`,
			defaultVal: "traces.ncf",
			flagsets:   computation,
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path of the migrated image. 'run' writes it
              and 'plot' reads it.`,
			defaultVal: "image.ncf",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), plotCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can
              include environment variables. If LogFile is left blank, the
              log file is written next to the output with the extension
              ".log".`,
			defaultVal: "",
			flagsets:   computation,
		},
		{
			name: "PlotFile",
			usage: `
              PlotFile is the path of the image rendered by 'plot'. The
              extension selects the format.`,
			defaultVal: "image.png",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "PlotSlice",
			usage: `
              PlotSlice is the y index of the slice that 'plot' renders.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "PlotClip",
			usage: `
              PlotClip clips the color scale of 'plot' at this many standard
              deviations from the mean. 0 disables clipping.`,
			defaultVal: 3.0,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "Order",
			usage: `
              Order is the spatial order of the finite difference stencil,
              one of 2, 4, 8, 12 or 16.`,
			defaultVal: 8,
			flagsets:   computation,
		},
		{
			name: "BoundaryLength",
			usage: `
              BoundaryLength is the number of cells added around the model
              for the boundary policy.`,
			defaultVal: rtm.DefaultBoundaryLength,
			flagsets:   computation,
		},
		{
			name: "SourceFrequency",
			usage: `
              SourceFrequency is the peak frequency of the Ricker source
              wavelet [Hz].`,
			defaultVal: float64(rtm.DefaultSourceFrequency),
			flagsets:   computation,
		},
		{
			name: "DTRelax",
			usage: `
              DTRelax is the fraction of the stable time step that is used.
              It must be in (0, 1].`,
			defaultVal: rtm.DefaultDTRelax,
			flagsets:   computation,
		},
		{
			name: "DT",
			usage: `
              DT fixes the time step [s]. If 0, the stable time step scaled by
              DTRelax is used.`,
			defaultVal: 0.0,
			flagsets:   computation,
		},
		{
			name: "BlockX",
			usage: `
              BlockX, BlockY and BlockZ are the edge lengths in cells of the
              tiles a time step is split into.`,
			defaultVal: rtm.DefaultBlock,
			flagsets:   computation,
		},
		{
			name:       "BlockY",
			usage:      "\n              See BlockX.",
			defaultVal: rtm.DefaultBlock,
			flagsets:   computation,
		},
		{
			name:       "BlockZ",
			usage:      "\n              See BlockX.",
			defaultVal: rtm.DefaultBlock,
			flagsets:   computation,
		},
		{
			name: "Window.Enabled",
			usage: `
              Window.Enabled restricts the computation of every shot to a
              window around its source.`,
			defaultVal: false,
			flagsets:   computation,
		},
		{
			name: "Window.LeftX",
			usage: `
              Window.LeftX, Window.RightX, Window.LeftY and Window.RightY are
              the number of cells of the window on each side of the source.`,
			defaultVal: 0,
			flagsets:   computation,
		},
		{
			name:       "Window.RightX",
			usage:      "\n              See Window.LeftX.",
			defaultVal: 0,
			flagsets:   computation,
		},
		{
			name:       "Window.LeftY",
			usage:      "\n              See Window.LeftX.",
			defaultVal: 0,
			flagsets:   computation,
		},
		{
			name:       "Window.RightY",
			usage:      "\n              See Window.LeftX.",
			defaultVal: 0,
			flagsets:   computation,
		},
		{
			name: "Window.Depth",
			usage: `
              Window.Depth is the number of cells of the window along z. 0 uses
              the full depth.`,
			defaultVal: 0,
			flagsets:   computation,
		},
		{
			name: "EquationOrder",
			usage: `
              EquationOrder selects the second order wave equation ("second")
              or the first order pressure-velocity system ("first").`,
			defaultVal: "second",
			flagsets:   computation,
		},
		{
			name: "Approximation",
			usage: `
              Approximation is the physics of the medium. Only "isotropic" is
              supported.`,
			defaultVal: "isotropic",
			flagsets:   computation,
		},
		{
			name: "Boundary",
			usage: `
              Boundary is the boundary policy: "none", "sponge", "random" or
              "cpml" (also "absorbing-layer").`,
			defaultVal: string(rtm.SpongeBoundary),
			flagsets:   computation,
		},
		{
			name: "Compensation",
			usage: `
              Compensation is the illumination compensation of the image,
              "none" or "combined".`,
			defaultVal: "none",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Collector",
			usage: `
              Collector selects how the source wavefield reaches the backward
              pass: "boundary-saving" stores the boundary of every step and
              propagates backwards, "two-propagation" stores the pressure of
              every step, and "reverse-propagation" stores nothing, which is
              only allowed with the "none" and "random" boundaries.`,
			defaultVal: "boundary-saving",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Compression",
			usage: `
              Compression is the lossless compression of the pressure stored
              by the "two-propagation" collector, "none" or "zstd".`,
			defaultVal: "none",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "UseTopLayer",
			usage: `
              UseTopLayer extends the model into a boundary layer above the
              surface. If false, the surface is reflecting during modelling.`,
			defaultVal: true,
			flagsets:   computation,
		},
		{
			name: "CPML.ReflectCoefficient",
			usage: `
              CPML.ReflectCoefficient is the target reflection coefficient of
              the absorbing layer.`,
			defaultVal: 0.1,
			flagsets:   computation,
		},
		{
			name: "CPML.ShiftRatio",
			usage: `
              CPML.ShiftRatio is the frequency shift of the absorbing layer.`,
			defaultVal: 0.1,
			flagsets:   computation,
		},
		{
			name: "CPML.RelaxCoefficient",
			usage: `
              CPML.RelaxCoefficient scales the damping profile of the
              absorbing layer.`,
			defaultVal: 0.1,
			flagsets:   computation,
		},
		{
			name: "Random.GrainSize",
			usage: `
              Random.GrainSize is the edge length in cells of the blocks of
              the random boundary.`,
			defaultVal: 4,
			flagsets:   computation,
		},
		{
			name: "Random.Seed",
			usage: `
              Random.Seed seeds the random boundary.`,
			defaultVal: 1,
			flagsets:   computation,
		},
		{
			name: "Alignment",
			usage: `
              Alignment rounds the allocated x size up to a multiple of this
              many cells.`,
			defaultVal: 0,
			flagsets:   computation,
		},
		{
			name: "MaxCells",
			usage: `
              MaxCells is the largest number of cells any single buffer may
              hold.`,
			defaultVal: rtm.DefaultMaxCells,
			flagsets:   computation,
		},
		{
			name: "ShotMin",
			usage: `
              ShotMin and ShotMax select the shots whose identifiers are in
              [ShotMin, ShotMax]. A negative ShotMax has no upper limit.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name:       "ShotMax",
			usage:      "\n              See ShotMin.",
			defaultVal: -1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ShotStride",
			usage: `
              ShotStride migrates every ShotStride-th selected shot.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of shots processed concurrently.`,
			shorthand:  "w",
			defaultVal: 1,
			flagsets:   computation,
		},
		{
			name: "RecordingTime",
			usage: `
              RecordingTime is the simulated duration of a migration [s]. If 0,
              the length of the recorded traces is used.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "NormWriter.Every",
			usage: `
              NormWriter.Every samples the wavefield norms every this many time
              steps. 0 disables sampling.`,
			defaultVal: 0,
			flagsets:   computation,
		},
		{
			name: "NormWriter.Path",
			usage: `
              NormWriter.Path is the CSV file the sampled norms are written to.
              If empty, norms are only logged.`,
			defaultVal: "",
			flagsets:   computation,
		},
		{
			name: "SnapshotWriter.Every",
			usage: `
              SnapshotWriter.Every keeps the pressure over the physical cells
              every this many time steps and writes it, per shot and phase, to
              a NetCDF file in SnapshotWriter.Dir. 0 disables snapshots.`,
			defaultVal: 0,
			flagsets:   computation,
		},
		{
			name: "SnapshotWriter.Dir",
			usage: `
              SnapshotWriter.Dir is the directory snapshot files are written to.`,
			defaultVal: ".",
			flagsets:   computation,
		},
		{
			name: "Modelling.ShotCount",
			usage: `
              Modelling.ShotCount is the number of shots 'model' simulates.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{modelCmd.Flags()},
		},
		{
			name: "Modelling.FirstShot",
			usage: `
              Modelling.FirstShot is the x cell of the first source.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{modelCmd.Flags()},
		},
		{
			name: "Modelling.ShotSpacing",
			usage: `
              Modelling.ShotSpacing is the distance in cells between sources.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{modelCmd.Flags()},
		},
		{
			name: "Modelling.SourceDepth",
			usage: `
              Modelling.SourceDepth is the z cell of the sources.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{modelCmd.Flags()},
		},
		{
			name: "Modelling.ReceiverSpacing",
			usage: `
              Modelling.ReceiverSpacing is the distance in cells between
              receivers.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{modelCmd.Flags()},
		},
		{
			name: "Modelling.ReceiverDepth",
			usage: `
              Modelling.ReceiverDepth is the z cell of the receivers.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{modelCmd.Flags()},
		},
		{
			name: "Modelling.RecordingTime",
			usage: `
              Modelling.RecordingTime is the simulated duration [s].`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{modelCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("RTM")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
		}
		Cfg.BindPFlag(option.name, option.flagsets[0].Lookup(option.name))
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(modelCmd)
	Root.AddCommand(plotCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("rtm: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "rtm",
	Short: "A reverse time migration engine.",
	Long: `rtm images the subsurface from recorded seismic shots by reverse time
migration. Use the subcommands specified below to access the functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'RTM_var' where 'var' is the
name of the variable to be set. Paths may contain environment variables.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of RTM.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("RTM v%s\n", rtm.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd migrates recorded shots.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Migrate recorded shots.",
	Long: `run migrates the shots of TraceFile through the model of VelocityFile
(or SyntheticModel) and writes the stacked image to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		p, err := Parameters(Cfg)
		if err != nil {
			return err
		}
		sel, err := shotSelection(Cfg)
		if err != nil {
			return err
		}
		return Run(
			cmd,
			checkLogFile(os.ExpandEnv(Cfg.GetString("LogFile")), outputFile),
			outputFile,
			os.ExpandEnv(Cfg.GetString("TraceFile")),
			modelSource(Cfg),
			p, sel,
			Cfg.GetInt("Workers"),
			Cfg.GetFloat64("RecordingTime"),
			Cfg.GetFloat64("DT"),
			diagnostics(Cfg),
			ConfigHash(Cfg),
		)
	},
	DisableAutoGenTag: true,
}

// modelCmd simulates shots.
var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Simulate shots.",
	Long: `model forward-models a regular line of shots through the model of
VelocityFile (or SyntheticModel) and writes the recorded pressure to
TraceFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		traceFile, err := checkOutputFile(Cfg.GetString("TraceFile"))
		if err != nil {
			return err
		}
		p, err := Parameters(Cfg)
		if err != nil {
			return err
		}
		acq, err := acquisition(Cfg)
		if err != nil {
			return err
		}
		return Model(
			cmd,
			checkLogFile(os.ExpandEnv(Cfg.GetString("LogFile")), traceFile),
			traceFile,
			modelSource(Cfg),
			p, acq,
			Cfg.GetInt("Workers"),
			Cfg.GetFloat64("Modelling.RecordingTime"),
			Cfg.GetFloat64("DT"),
			diagnostics(Cfg),
		)
	},
	DisableAutoGenTag: true,
}

// plotCmd renders a migrated image.
var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render a migrated image.",
	Long: `plot renders the y slice PlotSlice of the image in OutputFile to
PlotFile as a heat map.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		plotFile, err := checkOutputFile(Cfg.GetString("PlotFile"))
		if err != nil {
			return err
		}
		return Plot(os.ExpandEnv(Cfg.GetString("OutputFile")), plotFile,
			Cfg.GetInt("PlotSlice"), Cfg.GetFloat64("PlotClip"))
	},
	DisableAutoGenTag: true,
}
