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
	"github.com/ctessum/geom"
	shp "github.com/jonas-p/go-shp"
)

// Whisker is a baseline curve along which positions are measured.
type Whisker struct {
	ID     int                  // unique identifier
	Geom   geom.MultiLineString // parts are measured in order
	Length float64              // total length of all parts
}

// NewWhisker returns a whisker with its length calculated from g.
func NewWhisker(id int, g geom.MultiLineString) *Whisker {
	return &Whisker{ID: id, Geom: g, Length: g.Length()}
}

// Attribute is a named attribute value of a reference feature.
type Attribute struct {
	Name, Value string
}

// Schema holds the attribute field definitions of a reference layer.
type Schema []shp.Field

// ReferenceFeature is a point, line, or polygon feature whose
// intersections with whiskers are located.
type ReferenceFeature struct {
	ID         int
	Geom       geom.Geom
	Attributes []Attribute
}

// IntersectionPoint holds the points where one whisker and one reference
// feature intersect.
type IntersectionPoint struct {
	WhiskerID   int
	ReferenceID int
	Points      geom.MultiPoint
}

// CandidatePoint is a single representative point of an intersection.
// It is refined in place by the Snap, Locate, and Measure stages.
type CandidatePoint struct {
	ID int // dense, 1-based

	// Source is the intersection this point was reduced from.
	Source *IntersectionPoint

	// Original is the location before snapping and Point is the
	// location after snapping.
	Original, Point geom.Point
	Snapped         bool

	// Resolved is true if a whisker was found within the snap distance.
	Resolved  bool
	WhiskerID int        // nearest whisker
	Projected geom.Point // projection of Point onto the nearest whisker
	Offset    float64    // distance between Point and Projected

	Distance float64 // distance along the nearest whisker
}

// Measurement is the distance along a whisker to a candidate point,
// and the rank of that distance among the other points on the whisker.
type Measurement struct {
	PointID   int
	WhiskerID int
	Distance  float64
	Rank      int
}

// ProfiledPoint is a reference intersection positioned along a whisker.
type ProfiledPoint struct {
	ID          int
	WhiskerID   int // NullWhiskerID if the point has no whisker
	ReferenceID int
	Distance    float64
	SortRank    int
	Geom        geom.Point
	Attributes  []Attribute
}

// Values written for points that are kept without a whisker association.
const (
	NullWhiskerID = -1
	NullDistance  = -1.
	NullSortRank  = 0
)
