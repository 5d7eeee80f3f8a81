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
	"io/ioutil"
	"sort"
	"strings"

	"github.com/ctessum/geom"
	goshp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// GeoJSON coordinates are used as they are. They are expected to be
// in a projected coordinate system with the same units as the snap
// distance.

func readFeatureCollection(path string) (*geojson.FeatureCollection, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "xsprofile: reading %s", path)
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, errors.Wrapf(err, "xsprofile: parsing GeoJSON file %s", path)
	}
	return fc, nil
}

func readWhiskersGeoJSON(path, idField string) ([]*Whisker, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, err
	}
	whiskers := make([]*Whisker, 0, len(fc.Features))
	for row, f := range fc.Features {
		var idVal interface{}
		if idField != "" {
			var ok bool
			if idVal, ok = f.Properties[idField]; !ok {
				return nil, errors.Errorf("xsprofile: whisker file %s: feature %d does not have property %s",
					path, row, idField)
			}
		}
		w, err := newWhisker(row, idField, idVal, fromOrb(f.Geometry))
		if err != nil {
			return nil, errors.Wrapf(err, "xsprofile: whisker file %s", path)
		}
		whiskers = append(whiskers, w)
	}
	return whiskers, nil
}

func readReferencesGeoJSON(path string) ([]*ReferenceFeature, Schema, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, nil, err
	}

	// The schema is the union of the property names of all features.
	nameSet := make(map[string]bool)
	for _, f := range fc.Features {
		for k := range f.Properties {
			nameSet[k] = true
		}
	}
	names := make([]string, 0, len(nameSet))
	for k := range nameSet {
		names = append(names, k)
	}
	sort.Strings(names)
	schema := make(Schema, len(names))
	for i, n := range names {
		schema[i] = goshp.StringField(n, 254)
	}

	var refs []*ReferenceFeature
	for row, f := range fc.Features {
		g := fromOrb(f.Geometry)
		if g == nil {
			continue
		}
		attrs := make([]Attribute, len(names))
		for i, n := range names {
			attrs[i] = Attribute{Name: n, Value: propertyString(f.Properties[n])}
		}
		refs = append(refs, &ReferenceFeature{ID: row, Geom: g, Attributes: attrs})
	}
	return refs, schema, nil
}

func propertyString(v interface{}) string {
	if v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return s
}

// propertyNames renames reference attributes so that they do not
// collide with the output columns or with each other.
type propertyNames struct {
	used  map[string]bool
	names map[string]string
}

func newPropertyNames(schema Schema) *propertyNames {
	pn := &propertyNames{used: make(map[string]bool), names: make(map[string]string)}
	for _, f := range outputColumns {
		pn.used[strings.ToLower(fieldName(f))] = true
	}
	for _, f := range schema {
		pn.name(fieldName(f))
	}
	return pn
}

func (pn *propertyNames) name(attr string) string {
	if n, ok := pn.names[attr]; ok {
		return n
	}
	n := uniqueName(attr, 0, pn.used)
	pn.used[strings.ToLower(n)] = true
	pn.names[attr] = n
	return n
}

func (o *Outputter) writeGeoJSON(fname string, results []*ProfiledPoint) error {
	names := newPropertyNames(o.schema)
	fc := geojson.NewFeatureCollection()
	for _, r := range results {
		f := geojson.NewFeature(orb.Point{r.Geom.X, r.Geom.Y})
		for _, a := range r.Attributes {
			f.Properties[names.name(a.Name)] = a.Value
		}
		f.Properties["WhiskerID"] = r.WhiskerID
		f.Properties["Distance"] = r.Distance
		f.Properties["SortRank"] = r.SortRank
		f.Properties["RefID"] = r.ReferenceID
		f.Properties["PointID"] = r.ID
		fc.Append(f)
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "xsprofile: encoding GeoJSON output")
	}
	if err := ioutil.WriteFile(fname, b, 0644); err != nil {
		return errors.Wrap(err, "xsprofile: writing GeoJSON output")
	}
	return nil
}

// fromOrb converts an orb geometry to the equivalent geom geometry.
// It returns nil for empty or unsupported geometries.
func fromOrb(g orb.Geometry) geom.Geom {
	switch t := g.(type) {
	case orb.Point:
		return geom.Point{X: t[0], Y: t[1]}
	case orb.MultiPoint:
		return geom.MultiPoint(pointsFromOrb(t))
	case orb.LineString:
		return geom.LineString(pointsFromOrb(t))
	case orb.MultiLineString:
		o := make(geom.MultiLineString, len(t))
		for i, l := range t {
			o[i] = geom.LineString(pointsFromOrb(l))
		}
		return o
	case orb.Polygon:
		return polygonFromOrb(t)
	case orb.MultiPolygon:
		o := make(geom.MultiPolygon, len(t))
		for i, p := range t {
			o[i] = polygonFromOrb(p)
		}
		return o
	default:
		return nil
	}
}

func pointsFromOrb(pts []orb.Point) []geom.Point {
	o := make([]geom.Point, len(pts))
	for i, p := range pts {
		o[i] = geom.Point{X: p[0], Y: p[1]}
	}
	return o
}

func polygonFromOrb(p orb.Polygon) geom.Polygon {
	o := make(geom.Polygon, len(p))
	for i, r := range p {
		o[i] = pointsFromOrb(r)
	}
	return o
}
