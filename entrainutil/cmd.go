/*
Copyright © 2026 the Entrain authors.
This file is part of Entrain.

Entrain is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Entrain is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Entrain.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package entrainutil holds the command-line interface to Entrain.
package entrainutil

import (
	"fmt"
	"runtime"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/energymodel/entrain"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to Entrain.
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
			name: "loglevel",
			usage: `
              loglevel sets the logging verbosity (panic, fatal, error,
              warning, info, debug, trace).`,
			defaultVal: "warning",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "model",
			usage: `
              model specifies the model description file (YAML) to
              simulate.`,
			shorthand:  "m",
			defaultVal: "entrain.yaml",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), plotCmd.Flags()},
		},
		{
			name: "output",
			usage: `
              output specifies the results file to write. The file
              extension selects the format: .csv, .tsv, .json or .xlsx
              for simulation results; .png, .svg or .pdf for plots.`,
			shorthand:  "o",
			defaultVal: "results.csv",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "nprocs",
			usage: `
              nprocs specifies the number of time steps to evaluate in
              parallel. The default is the number of processors.`,
			defaultVal: runtime.GOMAXPROCS(-1),
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "stage",
			usage: `
              stage specifies which compression stage's chart to plot,
              counting from 1.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "plotfile",
			usage: `
              plotfile specifies the image file to draw the chart to.
              The file extension selects the format (png, svg, pdf).`,
			defaultVal: "chart.png",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("ENTRAIN")

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
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(plotCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("entrain: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// logger builds the logger shared by the commands at the configured
// verbosity.
func logger() (logrus.FieldLogger, error) {
	level, err := logrus.ParseLevel(Cfg.GetString("loglevel"))
	if err != nil {
		return nil, fmt.Errorf("entrain: parsing log level: %v", err)
	}
	log := logrus.New()
	log.SetLevel(level)
	// Warnings emitted while charts are still being constructed have no
	// owning component to log through; they use the standard logger,
	// which must honor the same verbosity.
	logrus.SetLevel(level)
	return log, nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "entrain",
	Short: "A compressor-train energy model.",
	Long: `Entrain simulates the shaft power demand of gas compressor trains for
energy and emissions reporting. Use the subcommands specified below to
access the model functionality.

Refer to the subcommand documentation for configuration options and default
settings. Configuration can be changed by using a configuration file (and
providing the path to the file using the --config flag), by using
command-line arguments, or by setting environment variables in the format
'ENTRAIN_var' where 'var' is the name of the variable to be set.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of Entrain.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("Entrain v%s\n", entrain.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate a compressor train over its input time series.",
	Long: `run loads the model description, evaluates the compressor train at every
time step of the input series, and writes the results to the output file.
Time steps are independent and are evaluated in parallel.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logger()
		if err != nil {
			return err
		}
		return Run(
			Cfg.GetString("model"),
			Cfg.GetString("output"),
			cast.ToInt(Cfg.Get("nprocs")),
			log,
			cmd.OutOrStdout(),
		)
	},
	DisableAutoGenTag: true,
}

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Draw a stage's compressor chart.",
	Long: `plot draws the performance chart of one compression stage of the model:
head against volumetric rate for each measured speed, with the surge and
stonewall envelopes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Plot(
			Cfg.GetString("model"),
			Cfg.GetString("plotfile"),
			cast.ToInt(Cfg.Get("stage")),
		)
	},
	DisableAutoGenTag: true,
}
