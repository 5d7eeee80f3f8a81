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

	"github.com/spatialmodel/xsprofile/internal/hash"
)

// Assemble joins the ranked measurements back onto the candidate points
// by point ID, creating the profiled points.
func Assemble() Stage {
	return func(ctx context.Context, p *Profile) error {
		byID := make(map[int]*CandidatePoint, len(p.candidates))
		for _, c := range p.candidates {
			byID[c.ID] = c
		}
		refs := make(map[int]*ReferenceFeature, len(p.references))
		for _, r := range p.references {
			refs[r.ID] = r
		}
		attributes := func(refID int) []Attribute {
			if r, ok := refs[refID]; ok {
				return r.Attributes
			}
			return nil
		}

		results := make([]*ProfiledPoint, 0, len(p.ranked)+len(p.unresolved))
		seen := make(map[int]bool, len(p.ranked))
		for _, m := range p.ranked {
			c, ok := byID[m.PointID]
			if !ok {
				return &ConsistencyError{Msg: fmt.Sprintf("ranked point %d has no candidate point", m.PointID)}
			}
			if seen[m.PointID] {
				return &ConsistencyError{Msg: fmt.Sprintf("point %d was ranked more than once", m.PointID)}
			}
			seen[m.PointID] = true
			if c.WhiskerID != m.WhiskerID {
				return &ConsistencyError{Msg: fmt.Sprintf("point %d was located on whisker %d but ranked on whisker %d",
					c.ID, c.WhiskerID, m.WhiskerID)}
			}
			results = append(results, &ProfiledPoint{
				ID:          c.ID,
				WhiskerID:   m.WhiskerID,
				ReferenceID: c.Source.ReferenceID,
				Distance:    m.Distance,
				SortRank:    m.Rank,
				Geom:        c.Point,
				Attributes:  attributes(c.Source.ReferenceID),
			})
		}
		for _, c := range p.unresolved {
			results = append(results, &ProfiledPoint{
				ID:          c.ID,
				WhiskerID:   NullWhiskerID,
				ReferenceID: c.Source.ReferenceID,
				Distance:    NullDistance,
				SortRank:    NullSortRank,
				Geom:        c.Point,
				Attributes:  attributes(c.Source.ReferenceID),
			})
		}
		p.results = results
		return nil
	}
}

// Digest returns a hash of the profiled points. Two runs over the same
// inputs with the same configuration have the same digest.
func (p *Profile) Digest() string {
	type row struct {
		ID, WhiskerID, ReferenceID, SortRank int
		Distance, X, Y                       float64
	}
	rows := make([]row, len(p.results))
	for i, r := range p.results {
		rows[i] = row{
			ID: r.ID, WhiskerID: r.WhiskerID, ReferenceID: r.ReferenceID, SortRank: r.SortRank,
			Distance: r.Distance, X: r.Geom.X, Y: r.Geom.Y,
		}
	}
	return hash.Hash(rows)
}
