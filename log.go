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
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Logged wraps s so that its start and finish are logged to log under
// the given stage name. If s fails or panics, the failure is logged
// along with the size of the profile state, and the returned error is
// converted to one of GeometryEngineError, UnresolvedAssociationError,
// ConsistencyError, or GenericRuntimeError.
func Logged(name string, log logrus.FieldLogger, s Stage) Stage {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(ctx context.Context, p *Profile) (err error) {
		l := log.WithField("stage", name)
		start := time.Now()
		l.Debug("stage started")
		defer func() {
			if r := recover(); r != nil {
				err = &GenericRuntimeError{Stage: name, Err: errors.Errorf("panic: %v", r)}
			}
			if err != nil {
				err = classify(name, err)
				l.WithFields(p.fields()).WithError(err).Error("stage failed")
				return
			}
			l.WithField("elapsed", time.Since(start).Round(time.Microsecond)).Info("stage finished")
		}()
		return s(ctx, p)
	}
}

func stageName(prefix string, i int) string {
	return fmt.Sprintf("%s-%d", prefix, i+1)
}
