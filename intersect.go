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
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"golang.org/x/sync/errgroup"
)

// IndexWhiskers checks that whisker IDs are unique and prepares the
// geometry engine to search the whiskers.
func IndexWhiskers() Stage {
	return func(ctx context.Context, p *Profile) error {
		p.whiskerIDs = make(map[int]*Whisker, len(p.whiskers))
		for _, w := range p.whiskers {
			if _, ok := p.whiskerIDs[w.ID]; ok {
				return &GeometryEngineError{Op: "index", Subject: fmt.Sprintf("whisker %d", w.ID),
					Err: fmt.Errorf("duplicate whisker ID")}
			}
			p.whiskerIDs[w.ID] = w
		}
		if err := p.engine.Index(p.whiskerCurves()); err != nil {
			return &GeometryEngineError{Op: "index", Subject: "whiskers", Err: err}
		}
		return nil
	}
}

// indexedRef holds a reference feature in an rtree.
type indexedRef struct {
	geom.Geom
	i int // position in Profile.references
}

// grow returns a copy of b expanded by d on every side. Horizontal and
// vertical whiskers have zero-area bounds, so features that only touch
// them within tolerance would otherwise be missed by the index search.
func grow(b *geom.Bounds, d float64) *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: b.Min.X - d, Y: b.Min.Y - d},
		Max: geom.Point{X: b.Max.X + d, Y: b.Max.Y + d},
	}
}

// Intersect finds the intersections between every whisker and every
// reference feature. Whiskers are processed concurrently and the
// results are kept in whisker order, then reference order.
func Intersect() Stage {
	return func(ctx context.Context, p *Profile) error {
		index := rtree.NewTree(25, 50)
		for i, r := range p.references {
			if r.Geom == nil {
				continue
			}
			index.Insert(&indexedRef{Geom: r.Geom, i: i})
		}

		perWhisker := make([][]*IntersectionPoint, len(p.whiskers))
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(p.cfg.Workers)
		for wi, w := range p.whiskers {
			wi, w := wi, w
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				var refs []int
				for _, item := range index.SearchIntersect(grow(w.Geom.Bounds(), p.cfg.reach())) {
					refs = append(refs, item.(*indexedRef).i)
				}
				sort.Ints(refs)
				for _, i := range refs {
					r := p.references[i]
					pts, err := p.engine.Intersect(w.Geom, r.Geom)
					if err != nil {
						return &GeometryEngineError{Op: "intersect",
							Subject: fmt.Sprintf("whisker %d and reference %d", w.ID, r.ID), Err: err}
					}
					if len(pts) == 0 {
						continue
					}
					perWhisker[wi] = append(perWhisker[wi], &IntersectionPoint{
						WhiskerID:   w.ID,
						ReferenceID: r.ID,
						Points:      pts,
					})
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		p.intersections = p.intersections[:0]
		for _, ips := range perWhisker {
			p.intersections = append(p.intersections, ips...)
		}
		return nil
	}
}

// Reduce replaces each intersection with the centroid of its points,
// creating one candidate point per intersection.
func Reduce() Stage {
	return func(ctx context.Context, p *Profile) error {
		p.candidates = make([]*CandidatePoint, 0, len(p.intersections))
		for _, ip := range p.intersections {
			if len(ip.Points) == 0 {
				continue
			}
			c, err := p.engine.Centroid(ip.Points)
			if err != nil {
				return &GeometryEngineError{Op: "centroid",
					Subject: fmt.Sprintf("whisker %d and reference %d", ip.WhiskerID, ip.ReferenceID), Err: err}
			}
			p.candidates = append(p.candidates, &CandidatePoint{
				ID:       len(p.candidates) + 1,
				Source:   ip,
				Original: c,
				Point:    c,
			})
		}
		return nil
	}
}
