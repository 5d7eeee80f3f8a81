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
	"sort"

	"golang.org/x/sync/errgroup"
)

// Measure calculates the distance along each whisker to each of the
// resolved candidate points located on it. Whiskers are measured
// concurrently; every point belongs to exactly one whisker.
func Measure() Stage {
	return func(ctx context.Context, p *Profile) error {
		groups := make(map[int][]*CandidatePoint)
		for _, c := range p.candidates {
			if c.Resolved {
				groups[c.WhiskerID] = append(groups[c.WhiskerID], c)
			}
		}

		p.measured = make([][]Measurement, len(p.whiskers))
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(p.cfg.Workers)
		for wi, w := range p.whiskers {
			wi, w := wi, w
			points := groups[w.ID]
			if len(points) == 0 {
				continue
			}
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				length := w.Geom.Length()
				m := make([]Measurement, len(points))
				for i, c := range points {
					d, err := p.engine.MeasureAlong(w.Geom, c.Projected)
					if err != nil {
						return &GeometryEngineError{Op: "measure",
							Subject: fmt.Sprintf("point %d on whisker %d", c.ID, w.ID), Err: err}
					}
					if math.IsNaN(d) {
						return &GeometryEngineError{Op: "measure",
							Subject: fmt.Sprintf("point %d on whisker %d", c.ID, w.ID), Err: fmt.Errorf("distance is NaN")}
					}
					d = math.Min(math.Max(d, 0), length)
					c.Distance = d
					m[i] = Measurement{PointID: c.ID, WhiskerID: w.ID, Distance: d}
				}
				p.measured[wi] = m
				return nil
			})
		}
		return g.Wait()
	}
}

// Rank orders the points on each whisker by distance and numbers them
// from 1. Points at the same distance are ordered by point ID. The
// ranked groups are concatenated in whisker order.
func Rank() Stage {
	return func(ctx context.Context, p *Profile) error {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(p.cfg.Workers)
		for _, group := range p.measured {
			group := group
			if len(group) == 0 {
				continue
			}
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				rankGroup(group)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		var n int
		for _, group := range p.measured {
			n += len(group)
		}
		p.ranked = make([]Measurement, 0, n)
		for _, group := range p.measured {
			p.ranked = append(p.ranked, group...)
		}
		return nil
	}
}

// rankGroup sorts the measurements on one whisker and assigns ranks.
func rankGroup(group []Measurement) {
	sort.SliceStable(group, func(i, j int) bool {
		if group[i].Distance != group[j].Distance {
			return group[i].Distance < group[j].Distance
		}
		return group[i].PointID < group[j].PointID
	})
	for i := range group {
		group[i].Rank = i + 1
	}
}
