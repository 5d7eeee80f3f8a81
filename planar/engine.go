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

// Package planar implements the geometric operations that cross-section
// profiles are built on (intersection, centroid, snapping, nearest-curve
// location and measurement along a curve) for geometries in a projected,
// planar coordinate system.
package planar

import (
	"math"
	"reflect"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/pkg/errors"
	"github.com/twpayne/go-geom/xy/lineintersector"
)

// DefaultTolerance is the default distance below which two coordinates
// are considered to be the same location.
const DefaultTolerance = 1.e-9

// UnsupportedGeometryError is returned when a geometry type cannot be
// intersected with a curve.
type UnsupportedGeometryError struct {
	Type reflect.Type
}

func (e UnsupportedGeometryError) Error() string {
	if e.Type == nil {
		return "planar: missing geometry"
	}
	return "planar: unsupported geometry type " + e.Type.String()
}

// Engine performs geometric operations on planar geometries. The zero
// value is not ready for use; create an Engine with New.
type Engine struct {
	// Tolerance is the distance below which two coordinates
	// are considered coincident.
	Tolerance float64

	strategy lineintersector.Strategy

	tree   *rtree.Rtree
	curves map[int]*curve
	bounds *geom.Bounds
}

// curve is an indexed curve.
type curve struct {
	geom.MultiLineString
	id int
}

// New returns a new Engine with the default tolerance and no indexed curves.
func New() *Engine {
	return &Engine{
		Tolerance: DefaultTolerance,
		strategy:  &lineintersector.RobustLineIntersector{},
		tree:      rtree.NewTree(25, 50),
		curves:    make(map[int]*curve),
		bounds:    geom.NewBounds(),
	}
}

// ValidateCurve returns an error if c cannot be measured along:
// it must have at least one part, and every part must have at least
// two vertices and finite coordinates.
func ValidateCurve(c geom.MultiLineString) error {
	if len(c) == 0 {
		return errors.New("planar: curve has no parts")
	}
	for i, part := range c {
		if len(part) < 2 {
			return errors.Errorf("planar: curve part %d has %d vertices; at least 2 are required", i, len(part))
		}
		for _, p := range part {
			if !finite(p) {
				return errors.Errorf("planar: curve part %d has a non-finite vertex (%g, %g)", i, p.X, p.Y)
			}
		}
	}
	return nil
}

// Index replaces the set of curves that Snap and Nearest search with
// curves, which is keyed by curve ID. After Index returns, Snap and
// Nearest may be called concurrently.
func (e *Engine) Index(curves map[int]geom.MultiLineString) error {
	ids := make([]int, 0, len(curves))
	for id := range curves {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	e.tree = rtree.NewTree(25, 50)
	e.curves = make(map[int]*curve, len(curves))
	e.bounds = geom.NewBounds()
	for _, id := range ids {
		c := curves[id]
		if err := ValidateCurve(c); err != nil {
			return errors.Wrapf(err, "indexing curve %d", id)
		}
		ic := &curve{MultiLineString: c, id: id}
		e.tree.Insert(ic)
		e.curves[id] = ic
		e.bounds.Extend(c.Bounds())
	}
	return nil
}

// Snap moves p onto the nearest edge of the indexed curves if that edge
// is within tolerance of p. It returns the moved point and true, or p
// and false if no edge is close enough.
func (e *Engine) Snap(p geom.Point, tolerance float64) (geom.Point, bool) {
	if !finite(p) {
		return p, false
	}
	if tolerance < 0 || math.IsNaN(tolerance) {
		tolerance = 0
	}
	m, ok := e.closest(p, tolerance)
	if !ok || m.dist > tolerance {
		return p, false
	}
	return m.point, true
}

// Nearest returns the ID of the indexed curve closest to p, the
// projection of p onto that curve, and the distance between p and the
// projection. When curves are equidistant the lowest ID wins. ok is
// false if no curves are indexed.
func (e *Engine) Nearest(p geom.Point) (curveID int, projected geom.Point, dist float64, ok bool) {
	if len(e.curves) == 0 || !finite(p) {
		return 0, p, math.Inf(1), false
	}

	// Maximum search radius: the distance to the far corner of the
	// indexed extent.
	maxR := math.Max(
		math.Hypot(math.Max(math.Abs(p.X-e.bounds.Min.X), math.Abs(p.X-e.bounds.Max.X)),
			math.Max(math.Abs(p.Y-e.bounds.Min.Y), math.Abs(p.Y-e.bounds.Max.Y))),
		e.Tolerance)
	r := math.Hypot(e.bounds.Max.X-e.bounds.Min.X, e.bounds.Max.Y-e.bounds.Min.Y) / 64
	if r <= 0 {
		r = math.Max(e.Tolerance, 1)
	}
	for {
		m, found := e.closest(p, r)
		if found {
			if m.dist > r {
				// A curve outside the searched box may be closer than
				// this one, so search again out to the found distance.
				m, _ = e.closest(p, m.dist)
			}
			return m.id, m.point, m.dist, true
		}
		if r > maxR {
			return 0, p, math.Inf(1), false
		}
		r *= 2
	}
}

// match is the location on an indexed curve closest to a query point.
type match struct {
	location
	id int
}

// closest returns the location on the closest curve whose bounding box
// is within r of p.
func (e *Engine) closest(p geom.Point, r float64) (match, bool) {
	var best match
	found := false
	for _, g := range e.tree.SearchIntersect(rtree.ToRect(p, r)) {
		c := g.(*curve)
		loc := locate(c.MultiLineString, p)
		if !found || loc.dist < best.dist || (loc.dist == best.dist && c.id < best.id) {
			best = match{location: loc, id: c.id}
			found = true
		}
	}
	return best, found
}

func finite(p geom.Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}
