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
	"math"

	"github.com/dustin/go-humanize"
)

// Snap moves each candidate point onto the nearest whisker edge if it
// is within the snap distance. Points farther away are left where they
// are.
func Snap() Stage {
	return func(ctx context.Context, p *Profile) error {
		snapDist := p.cfg.SnapDistance
		var moved int
		for _, c := range p.candidates {
			s, ok := p.engine.Snap(c.Point, snapDist)
			if !ok {
				continue
			}
			if d := math.Hypot(s.X-c.Original.X, s.Y-c.Original.Y); d > p.cfg.reach() {
				return &ConsistencyError{Msg: fmt.Sprintf(
					"point %d moved %g by snapping, farther than the snap distance %g", c.ID, d, snapDist)}
			}
			if s != c.Point {
				moved++
			}
			c.Point = s
			c.Snapped = true
		}
		p.cfg.Log.WithField("stage", "snap").Debugf("%s of %s points moved",
			humanize.Comma(int64(moved)), humanize.Comma(int64(len(p.candidates))))
		return nil
	}
}

// Locate finds the nearest whisker to each candidate point and the
// projection of the point onto it. Points that are farther than the snap
// distance from every whisker are unresolved; what happens to them
// depends on the configured UnresolvedPolicy.
func Locate() Stage {
	return func(ctx context.Context, p *Profile) error {
		var unresolved []*CandidatePoint
		for _, c := range p.candidates {
			id, proj, d, ok := p.engine.Nearest(c.Point)
			if !ok || d > p.cfg.reach() {
				c.Resolved = false
				unresolved = append(unresolved, c)
				continue
			}
			if _, ok := p.whiskerIDs[id]; !ok {
				return &ConsistencyError{Msg: fmt.Sprintf(
					"point %d located on unknown whisker %d", c.ID, id)}
			}
			c.Resolved = true
			c.WhiskerID = id
			c.Projected = proj
			c.Offset = d
		}

		p.unresolved = nil
		if len(unresolved) == 0 {
			return nil
		}
		switch p.cfg.Unresolved {
		case Strict:
			ids := make([]int, len(unresolved))
			for i, c := range unresolved {
				ids[i] = c.ID
			}
			return &UnresolvedAssociationError{PointIDs: ids, SnapDistance: p.cfg.SnapDistance}
		case Keep:
			p.unresolved = unresolved
			p.cfg.Log.WithField("stage", "locate").Warnf(
				"%s point(s) are not within the snap distance of any whisker and will be output without a whisker",
				humanize.Comma(int64(len(unresolved))))
		default:
			p.cfg.Log.WithField("stage", "locate").Warnf(
				"%s point(s) are not within the snap distance of any whisker and will be dropped",
				humanize.Comma(int64(len(unresolved))))
		}
		return nil
	}
}
