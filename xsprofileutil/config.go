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
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/lnashier/viper"
	"github.com/pkg/errors"
	"github.com/spatialmodel/xsprofile"
	"github.com/spf13/cast"
)

// checkInputFile expands any environment variables in f and makes sure
// that it is specified.
func checkInputFile(name, f string) (string, error) {
	if f == "" {
		return "", errors.Errorf("xsprofile: you need to specify the %s file", name)
	}
	return os.ExpandEnv(f), nil
}

// checkOutputFile expands any environment variables in f and makes sure
// that the directory it will be written to exists.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", errors.New(`xsprofile: you need to specify an output file (for example: "profile.shp")`)
	}
	f = os.ExpandEnv(f)
	switch strings.ToLower(filepath.Ext(f)) {
	case ".shp", ".geojson", ".json":
	default:
		return f, errors.Errorf("xsprofile: output file %s must have a .shp, .geojson, or .json extension", f)
	}
	if IsBlob(f) {
		bucketName, _, err := splitBlob(f)
		if err != nil {
			return f, err
		}
		b, err := OpenBucket(context.TODO(), bucketName)
		if err != nil {
			return f, errors.Wrap(err, "xsprofile: error when checking output file location")
		}
		return f, b.Close()
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, errors.Wrap(err, "xsprofile: the output file directory doesn't exist")
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return os.ExpandEnv(logFile)
}

// checkSnapDistance converts s to a snap distance.
func checkSnapDistance(s interface{}) (float64, error) {
	d, err := cast.ToFloat64E(s)
	if err != nil {
		return math.NaN(), errors.Errorf("xsprofile: snap distance %v is not a number", s)
	}
	if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return d, errors.Errorf("xsprofile: snap distance must be a non-negative number, but is %v", s)
	}
	return d, nil
}

// ProfileConfig creates a profile configuration from the settings in cfg
// and the given snap distance.
func ProfileConfig(cfg *viper.Viper, snapDistance float64) (xsprofile.Config, error) {
	policy, err := xsprofile.ParseUnresolvedPolicy(cfg.GetString("Unresolved"))
	if err != nil {
		return xsprofile.Config{}, err
	}
	c := xsprofile.Config{
		SnapDistance: snapDistance,
		Tolerance:    cfg.GetFloat64("Tolerance"),
		Unresolved:   policy,
		Workers:      cfg.GetInt("Workers"),
	}
	return c, c.Validate()
}
