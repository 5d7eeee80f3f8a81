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

package xsprofile

import (
	"math"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// UnresolvedPolicy specifies what happens to candidate points that are
// not within the snap distance of any whisker.
type UnresolvedPolicy string

const (
	// Drop excludes unresolved points from the output and logs a warning.
	Drop UnresolvedPolicy = "drop"

	// Strict stops the run with an UnresolvedAssociationError.
	Strict UnresolvedPolicy = "strict"

	// Keep writes unresolved points to the output with NullWhiskerID,
	// NullDistance, and NullSortRank.
	Keep UnresolvedPolicy = "keep"
)

// ParseUnresolvedPolicy converts s to an UnresolvedPolicy.
func ParseUnresolvedPolicy(s string) (UnresolvedPolicy, error) {
	switch p := UnresolvedPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case Drop, Strict, Keep:
		return p, nil
	case "":
		return Drop, nil
	default:
		return "", errors.Errorf("xsprofile: invalid unresolved point policy %q; valid options are drop, strict, and keep", s)
	}
}

// DefaultTolerance is the default allowance, in linear units, for
// floating point error when checking whether a point is within the snap
// distance of a whisker.
const DefaultTolerance = 1.e-6

// Config holds the settings for a profiling run.
type Config struct {
	// SnapDistance is the maximum distance, in the linear units of the
	// whisker coordinate system, that a candidate point is moved when it
	// is snapped onto a whisker.
	SnapDistance float64

	// Tolerance is added to SnapDistance when deciding whether a point
	// is close enough to a whisker to be associated with it.
	// If zero, DefaultTolerance is used.
	Tolerance float64

	// Unresolved is the policy for points that cannot be associated
	// with a whisker. The default is Drop.
	Unresolved UnresolvedPolicy

	// Workers is the maximum number of whiskers processed at once.
	// If < 1, runtime.GOMAXPROCS(0) is used.
	Workers int

	// Log receives status messages. If nil, logrus.StandardLogger()
	// is used.
	Log logrus.FieldLogger
}

// DefaultConfig returns a configuration with the given snap distance
// and default values for everything else.
func DefaultConfig(snapDistance float64) Config {
	return Config{SnapDistance: snapDistance}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Tolerance == 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.Unresolved == "" {
		c.Unresolved = Drop
	}
	if c.Workers < 1 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Log == nil {
		c.Log = logrus.StandardLogger()
	}
	return c
}

// Validate returns an error if c holds invalid settings.
func (c Config) Validate() error {
	if math.IsNaN(c.SnapDistance) || math.IsInf(c.SnapDistance, 0) || c.SnapDistance < 0 {
		return errors.Errorf("xsprofile: snap distance must be a non-negative number, but is %g", c.SnapDistance)
	}
	if math.IsNaN(c.Tolerance) || c.Tolerance < 0 {
		return errors.Errorf("xsprofile: tolerance must be a non-negative number, but is %g", c.Tolerance)
	}
	if _, err := ParseUnresolvedPolicy(string(c.Unresolved)); err != nil {
		return err
	}
	return nil
}

// reach is the farthest a point may be from a whisker and still be
// associated with it.
func (c Config) reach() float64 { return c.SnapDistance + c.Tolerance }
