/*
Copyright © 2023 the xsprofile authors.
This file is part of xsprofile.

xsprofile is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

xsprofile is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with xsprofile.  If not, see <http://www.gnu.org/licenses/>.
*/

package xsprofileutil

import (
	"github.com/lnashier/viper"
	"github.com/pkg/errors"
	"github.com/spatialmodel/xsprofile"
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
	// Options are the configuration options available to xsprofile.
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
			name: "Unresolved",
			usage: `
              Unresolved specifies what happens to intersection points that are
              not within the snap distance of any whisker. Options are "drop"
              (leave them out of the output), "strict" (stop with an error),
              and "keep" (write them with WhiskerID -1, Distance -1, and
              SortRank 0).`,
			shorthand:  "u",
			defaultVal: "drop",
			flagsets:   []*pflag.FlagSet{profileCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "Tolerance",
			usage: `
              Tolerance is added to the snap distance when deciding whether a
              point is close enough to a whisker to be associated with it. It
              allows for floating point error. If it is 0, a default of 1e-6
              is used.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{profileCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of whiskers that are processed at the same
              time. If it is 0, the number of processors is used.`,
			shorthand:  "w",
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{profileCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "WhiskerIDField",
			usage: `
              WhiskerIDField is the whisker attribute that holds the whisker
              IDs. If it is empty, the record number of each whisker is used,
              starting from 0.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{profileCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "Overwrite",
			usage: `
              Overwrite specifies whether an existing output file should be
              replaced.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{profileCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile specifies the path to the log file. If it is empty, the
              log is written next to the output file with a .log extension.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{profileCmd.Flags()},
		},
		{
			name: "Verbose",
			usage: `
              Verbose specifies whether the progress of each processing stage
              should be logged.`,
			shorthand:  "v",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{profileCmd.Flags(), batchCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("XSPROFILE")
	Cfg.AutomaticEnv()

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
	Root.AddCommand(profileCmd)
	Root.AddCommand(batchCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return errors.Wrap(err, "xsprofile: problem reading configuration file")
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "xsprofile",
	Short: "A cross-sectional linear-referencing profiler.",
	Long: `xsprofile finds where reference features such as curbs, lane lines, and
parcels cross a set of cross-section lines ("whiskers"), and orders them by
their distance along each whisker.
Use the subcommands specified below to access the functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'XSPROFILE_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of xsprofile.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("xsprofile v%s\n", xsprofile.Version)
	},
	DisableAutoGenTag: true,
}

// profileCmd creates a single profile.
var profileCmd = &cobra.Command{
	Use:   "profile whiskers references snap_distance output",
	Short: "Create a cross-sectional profile.",
	Long: `profile finds the points where the reference features cross or touch
the whiskers, snaps them onto the whiskers if they are within snap_distance,
and writes them to the output file along with their distance along their
whisker (Distance) and their order along it (SortRank, starting at 1).
whiskers, references, and output can be shapefiles (.shp) or GeoJSON files
(.geojson or .json), and whiskers and references can be URLs or
blob storage locations (gs://, s3://, or file://). snap_distance is in the
linear units of the whisker coordinate system.`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		whiskerFile, err := checkInputFile("whisker", args[0])
		if err != nil {
			return err
		}
		referenceFile, err := checkInputFile("reference", args[1])
		if err != nil {
			return err
		}
		snapDistance, err := checkSnapDistance(args[2])
		if err != nil {
			return err
		}
		outputFile, err := checkOutputFile(args[3])
		if err != nil {
			return err
		}
		cfg, err := ProfileConfig(Cfg, snapDistance)
		if err != nil {
			return err
		}
		return Run(cmd,
			checkLogFile(Cfg.GetString("LogFile"), outputFile),
			whiskerFile, referenceFile, outputFile, cfg,
			Cfg.GetString("WhiskerIDField"),
			Cfg.GetBool("Overwrite"),
			Cfg.GetBool("Verbose"),
		)
	},
	DisableAutoGenTag: true,
}

// batchCmd creates several profiles.
var batchCmd = &cobra.Command{
	Use:   "batch jobs.toml",
	Short: "Create several cross-sectional profiles.",
	Long: `batch creates the profiles listed in a TOML file, one after the other.
Each [[Job]] in the file needs Whiskers, References, SnapDistance, and Output
entries, and can override the Unresolved, WhiskerIDField, and LogFile settings.
The batch stops at the first job that fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := ReadJobs(args[0])
		if err != nil {
			return err
		}
		return RunBatch(cmd, Cfg, jobs)
	},
	DisableAutoGenTag: true,
}
