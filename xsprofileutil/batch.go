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
	"os"

	"github.com/BurntSushi/toml"
	"github.com/lnashier/viper"
	"github.com/pkg/errors"
	"github.com/spatialmodel/xsprofile"
	"github.com/spf13/cobra"
)

// Job is a single profile in a batch file.
type Job struct {
	Whiskers     string
	References   string
	SnapDistance interface{} // integer or floating point
	Output       string

	// These override the command-line settings when set.
	Unresolved     string
	WhiskerIDField string
	LogFile        string
}

type jobFile struct {
	Job []*Job
}

// ReadJobs reads the jobs in a TOML batch file.
func ReadJobs(path string) ([]*Job, error) {
	var f jobFile
	if _, err := toml.DecodeFile(os.ExpandEnv(path), &f); err != nil {
		return nil, errors.Wrapf(err, "xsprofile: reading batch file %s", path)
	}
	if len(f.Job) == 0 {
		return nil, errors.Errorf("xsprofile: batch file %s does not contain any [[Job]] entries", path)
	}
	for i, j := range f.Job {
		if j.SnapDistance == nil {
			return nil, errors.Errorf("xsprofile: batch file %s: job %d does not have a SnapDistance", path, i+1)
		}
		if _, err := checkSnapDistance(j.SnapDistance); err != nil {
			return nil, errors.Wrapf(err, "xsprofile: batch file %s: job %d", path, i+1)
		}
	}
	return f.Job, nil
}

// RunBatch runs each of the jobs in order with the settings in cfg,
// stopping at the first failure.
func RunBatch(cmd *cobra.Command, cfg *viper.Viper, jobs []*Job) error {
	for i, j := range jobs {
		if err := runJob(cmd, cfg, j); err != nil {
			return errors.Wrapf(err, "xsprofile: batch job %d", i+1)
		}
	}
	return nil
}

func runJob(cmd *cobra.Command, cfg *viper.Viper, j *Job) error {
	whiskerFile, err := checkInputFile("whisker", j.Whiskers)
	if err != nil {
		return err
	}
	referenceFile, err := checkInputFile("reference", j.References)
	if err != nil {
		return err
	}
	snapDistance, err := checkSnapDistance(j.SnapDistance)
	if err != nil {
		return err
	}
	outputFile, err := checkOutputFile(j.Output)
	if err != nil {
		return err
	}
	c, err := ProfileConfig(cfg, snapDistance)
	if err != nil {
		return err
	}
	if j.Unresolved != "" {
		if c.Unresolved, err = xsprofile.ParseUnresolvedPolicy(j.Unresolved); err != nil {
			return err
		}
	}
	idField := cfg.GetString("WhiskerIDField")
	if j.WhiskerIDField != "" {
		idField = j.WhiskerIDField
	}
	return Run(cmd, checkLogFile(j.LogFile, outputFile),
		whiskerFile, referenceFile, outputFile, c, idField,
		cfg.GetBool("Overwrite"), cfg.GetBool("Verbose"))
}
