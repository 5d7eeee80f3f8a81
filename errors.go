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
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var errMissingEngine = errors.New("no geometry engine")

// GeometryEngineError is returned when the geometry engine rejects an
// operation, for example because of malformed geometry or an invalid
// spatial reference.
type GeometryEngineError struct {
	Stage   string // pipeline stage
	Op      string // engine operation
	Subject string // the input being operated on
	Err     error
}

func (e *GeometryEngineError) Error() string {
	return fmt.Sprintf("xsprofile: %s: %s %s: %v", e.Stage, e.Op, e.Subject, e.Err)
}

func (e *GeometryEngineError) Unwrap() error { return e.Err }

// UnresolvedAssociationError is returned under the Strict policy when
// candidate points cannot be associated with any whisker.
type UnresolvedAssociationError struct {
	PointIDs     []int
	SnapDistance float64
}

func (e *UnresolvedAssociationError) Error() string {
	ids := make([]string, 0, len(e.PointIDs))
	for i, id := range e.PointIDs {
		if i == 10 {
			ids = append(ids, fmt.Sprintf("and %d more", len(e.PointIDs)-i))
			break
		}
		ids = append(ids, fmt.Sprint(id))
	}
	return fmt.Sprintf("xsprofile: %d point(s) are not within snap distance %g of any whisker: %s",
		len(e.PointIDs), e.SnapDistance, strings.Join(ids, ", "))
}

// ConsistencyError indicates that an internal invariant was violated.
// It always indicates a bug rather than a problem with the input.
type ConsistencyError struct {
	Stage string
	Msg   string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("xsprofile: %s: consistency check failed: %s", e.Stage, e.Msg)
}

// GenericRuntimeError holds any other failure.
type GenericRuntimeError struct {
	Stage string
	Err   error
}

func (e *GenericRuntimeError) Error() string {
	return fmt.Sprintf("xsprofile: %s: %v", e.Stage, e.Err)
}

func (e *GenericRuntimeError) Unwrap() error { return e.Err }

// classify makes sure err is one of the error types above,
// attributed to stage.
func classify(stage string, err error) error {
	var (
		ge *GeometryEngineError
		ue *UnresolvedAssociationError
		ce *ConsistencyError
		re *GenericRuntimeError
	)
	switch {
	case errors.As(err, &ge):
		if ge.Stage == "" {
			ge.Stage = stage
		}
		return ge
	case errors.As(err, &ue):
		return ue
	case errors.As(err, &ce):
		if ce.Stage == "" {
			ce.Stage = stage
		}
		return ce
	case errors.As(err, &re):
		if re.Stage == "" {
			re.Stage = stage
		}
		return re
	}
	return &GenericRuntimeError{Stage: stage, Err: err}
}
