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

	"github.com/ctessum/geom"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// MeasureAlong returns the distance along c, from the first vertex of its
// first part, to the location on c closest to p. Parts are measured in
// order with no distance counted between the end of one part and the
// start of the next. The result is always within [0, Length(c)].
func (e *Engine) MeasureAlong(c geom.MultiLineString, p geom.Point) (float64, error) {
	if err := ValidateCurve(c); err != nil {
		return math.NaN(), err
	}
	if !finite(p) {
		return math.NaN(), errors.Errorf("planar: cannot measure non-finite point (%g, %g)", p.X, p.Y)
	}
	loc := locate(c, p)
	return math.Min(math.Max(loc.measure, 0), Length(c)), nil
}

// Length returns the total length of all of the parts of c.
func Length(c geom.MultiLineString) float64 {
	var total float64
	for _, part := range c {
		cum := cumulativeLengths(part)
		if len(cum) > 0 {
			total += cum[len(cum)-1]
		}
	}
	return total
}

// location is a position on a curve.
type location struct {
	point   geom.Point // the position
	dist    float64    // distance from the query point to the position
	measure float64    // distance along the curve to the position
}

// locate finds the position on c closest to p. Where several positions
// are equally close, the one with the smallest measure is returned.
func locate(c geom.MultiLineString, p geom.Point) location {
	best := location{point: p, dist: math.Inf(1), measure: math.NaN()}
	var offset float64
	for _, part := range c {
		cum := cumulativeLengths(part)
		for i := 0; i < len(part)-1; i++ {
			q, t := project(p, part[i], part[i+1])
			d := math.Hypot(p.X-q.X, p.Y-q.Y)
			if d >= best.dist {
				continue
			}
			start := offset
			if i > 0 {
				start += cum[i-1]
			}
			var m float64
			switch t {
			case 0:
				m = start
			case 1:
				m = offset + cum[i]
			default:
				m = start + t*(cum[i]-prev(cum, i))
			}
			best = location{point: q, dist: d, measure: m}
		}
		if len(cum) > 0 {
			offset += cum[len(cum)-1]
		}
	}
	return best
}

func prev(cum []float64, i int) float64 {
	if i == 0 {
		return 0
	}
	return cum[i-1]
}

// cumulativeLengths returns the distance from the first vertex of part
// to each of the following vertices.
func cumulativeLengths(part geom.LineString) []float64 {
	if len(part) < 2 {
		return nil
	}
	seg := make([]float64, len(part)-1)
	for i := range seg {
		seg[i] = math.Hypot(part[i+1].X-part[i].X, part[i+1].Y-part[i].Y)
	}
	return floats.CumSum(make([]float64, len(seg)), seg)
}

// project returns the point on segment a-b closest to p, along with its
// position t on the segment, where 0 is a and 1 is b.
func project(p, a, b geom.Point) (geom.Point, float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return a, 0
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	if t <= 0 {
		return a, 0
	}
	if t >= 1 {
		return b, 1
	}
	return geom.Point{X: a.X + t*dx, Y: a.Y + t*dy}, t
}
