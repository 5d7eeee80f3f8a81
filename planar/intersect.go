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

package planar

import (
	"math"
	"reflect"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
	orbplanar "github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
	gogeom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy/lineintersector"
)

// Intersect returns the points where feature touches or crosses c.
// Points are returned for point features that lie on c, for every
// crossing between c and a line feature, and for every crossing between
// c and the boundary of a polygon feature. Where a line or boundary runs
// along c, the ends of the shared stretch are returned. Coincident
// points are only returned once.
func (e *Engine) Intersect(c geom.MultiLineString, feature geom.Geom) (geom.MultiPoint, error) {
	if err := ValidateCurve(c); err != nil {
		return nil, err
	}
	var pts geom.MultiPoint
	switch f := feature.(type) {
	case geom.Point:
		pts = e.pointOn(c, f, pts)
	case geom.MultiPoint:
		for _, p := range f {
			pts = e.pointOn(c, p, pts)
		}
	case geom.LineString:
		pts = e.crossings(c, f, pts)
	case geom.MultiLineString:
		for _, l := range f {
			pts = e.crossings(c, l, pts)
		}
	case geom.Polygon:
		for _, ring := range f {
			pts = e.crossings(c, closeRing(ring), pts)
		}
	case geom.MultiPolygon:
		for _, poly := range f {
			for _, ring := range poly {
				pts = e.crossings(c, closeRing(ring), pts)
			}
		}
	default:
		return nil, UnsupportedGeometryError{Type: reflect.TypeOf(feature)}
	}
	return e.dedupe(pts), nil
}

// Centroid returns the average location of the points in mp.
func (e *Engine) Centroid(mp geom.MultiPoint) (geom.Point, error) {
	if len(mp) == 0 {
		return geom.Point{}, errors.New("planar: centroid of empty point set")
	}
	o := make(orb.MultiPoint, len(mp))
	for i, p := range mp {
		if !finite(p) {
			return geom.Point{}, errors.Errorf("planar: centroid of non-finite point (%g, %g)", p.X, p.Y)
		}
		o[i] = orb.Point{p.X, p.Y}
	}
	c, _ := orbplanar.CentroidArea(o)
	return geom.Point{X: c[0], Y: c[1]}, nil
}

// pointOn appends p to pts if p lies on c.
func (e *Engine) pointOn(c geom.MultiLineString, p geom.Point, pts geom.MultiPoint) geom.MultiPoint {
	if !finite(p) {
		return pts
	}
	if !overlaps(c.Bounds(), geom.NewBoundsPoint(p), e.Tolerance) {
		return pts
	}
	if loc := locate(c, p); loc.dist <= e.Tolerance {
		pts = append(pts, p)
	}
	return pts
}

// crossings appends to pts the locations where path intersects c.
func (e *Engine) crossings(c geom.MultiLineString, path geom.LineString, pts geom.MultiPoint) geom.MultiPoint {
	if len(path) < 2 {
		return pts
	}
	if !overlaps(c.Bounds(), path.Bounds(), e.Tolerance) {
		return pts
	}
	for _, part := range c {
		for i := 0; i < len(part)-1; i++ {
			a, b := part[i], part[i+1]
			ab := segmentBounds(a, b)
			for j := 0; j < len(path)-1; j++ {
				p, q := path[j], path[j+1]
				if !overlaps(ab, segmentBounds(p, q), e.Tolerance) {
					continue
				}
				res := lineintersector.LineIntersectsLine(e.strategy,
					gogeom.Coord{a.X, a.Y}, gogeom.Coord{b.X, b.Y},
					gogeom.Coord{p.X, p.Y}, gogeom.Coord{q.X, q.Y})
				if !res.HasIntersection() {
					continue
				}
				for _, x := range res.Intersection() {
					pts = append(pts, geom.Point{X: x[0], Y: x[1]})
				}
			}
		}
	}
	return pts
}

// dedupe removes points that are within the engine tolerance of an
// earlier point.
func (e *Engine) dedupe(pts geom.MultiPoint) geom.MultiPoint {
	if len(pts) < 2 {
		return pts
	}
	out := pts[:0:0]
	for _, p := range pts {
		dup := false
		for _, o := range out {
			if math.Hypot(p.X-o.X, p.Y-o.Y) <= e.Tolerance {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}

// closeRing returns ring as a closed path.
func closeRing(ring []geom.Point) geom.LineString {
	if len(ring) > 1 && !ring[0].Equals(ring[len(ring)-1]) {
		closed := make(geom.LineString, len(ring)+1)
		copy(closed, ring)
		closed[len(ring)] = ring[0]
		return closed
	}
	return geom.LineString(ring)
}

func segmentBounds(a, b geom.Point) *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y)},
		Max: geom.Point{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y)},
	}
}

// overlaps reports whether a and b are within tol of each other.
func overlaps(a, b *geom.Bounds, tol float64) bool {
	return !(b.Max.X+tol < a.Min.X || a.Max.X+tol < b.Min.X ||
		b.Max.Y+tol < a.Min.Y || a.Max.Y+tol < b.Min.Y)
}
