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

import "github.com/ctessum/geom"

// Engine provides the geometric operations that profiles are built from.
// The planar package holds an implementation for projected coordinates.
type Engine interface {
	// Index sets the curves, keyed by ID, that Snap and Nearest search.
	// Snap and Nearest must be safe for concurrent use once Index
	// has returned.
	Index(curves map[int]geom.MultiLineString) error

	// Intersect returns the points where feature touches or
	// crosses curve.
	Intersect(curve geom.MultiLineString, feature geom.Geom) (geom.MultiPoint, error)

	// Centroid reduces a set of points to a single point.
	Centroid(mp geom.MultiPoint) (geom.Point, error)

	// Snap moves p onto the nearest indexed curve if it is within
	// tolerance of it, returning false if no curve is close enough.
	Snap(p geom.Point, tolerance float64) (geom.Point, bool)

	// Nearest returns the ID of the indexed curve nearest to p, the
	// projection of p onto it, and the distance between p and the
	// projection. ok is false if there are no curves.
	Nearest(p geom.Point) (curveID int, projected geom.Point, dist float64, ok bool)

	// MeasureAlong returns the distance along curve from its start
	// to the location on curve nearest p.
	MeasureAlong(curve geom.MultiLineString, p geom.Point) (float64, error)
}
