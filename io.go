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
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	goshp "github.com/jonas-p/go-shp"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// SpatialReference is a parsed coordinate reference system along with
// the well-known text it was parsed from.
type SpatialReference struct {
	*proj.SR
	WKT string
}

// ParseSpatialReference parses a WKT or PROJ.4 coordinate system
// definition.
func ParseSpatialReference(def string) (*SpatialReference, error) {
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, errors.Wrap(err, "xsprofile: parsing spatial reference")
	}
	return &SpatialReference{SR: sr, WKT: def}, nil
}

// readPrj reads the .prj file that goes with the given shapefile.
// It returns nil if there is no .prj file.
func readPrj(shpPath string) (*SpatialReference, error) {
	b, err := ioutil.ReadFile(strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".prj")
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return ParseSpatialReference(string(b))
}

// ReadWhiskers reads whiskers from a shapefile (.shp) or GeoJSON
// (.geojson or .json) file. Whisker IDs are read from idField; if
// idField is empty, the zero-based record number is used instead.
// The returned spatial reference is nil if the file does not have one.
func ReadWhiskers(path, idField string) ([]*Whisker, *SpatialReference, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return readWhiskersShp(path, idField)
	case ".geojson", ".json":
		ws, err := readWhiskersGeoJSON(path, idField)
		return ws, nil, err
	default:
		return nil, nil, errors.Errorf("xsprofile: whisker file %s has unsupported type; "+
			"valid types are .shp, .geojson, and .json", path)
	}
}

func readWhiskersShp(path, idField string) ([]*Whisker, *SpatialReference, error) {
	f, err := shp.NewDecoder(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "xsprofile: opening whisker shapefile %s", path)
	}
	defer f.Close()
	sr, err := readPrj(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "xsprofile: reading projection of whisker shapefile %s", path)
	}

	var fields []string
	if idField != "" {
		fields = []string{idField}
	}
	var whiskers []*Whisker
	for row := 0; ; row++ {
		g, vals, more := f.DecodeRowFields(fields...)
		if err := f.Error(); err != nil {
			return nil, nil, errors.Wrapf(err, "xsprofile: reading whisker shapefile %s", path)
		}
		if !more {
			break
		}
		w, err := newWhisker(row, idField, attrValue(vals[idField]), g)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "xsprofile: whisker shapefile %s", path)
		}
		whiskers = append(whiskers, w)
	}
	return whiskers, sr, nil
}

// newWhisker creates a whisker from record number row of an input file.
func newWhisker(row int, idField string, idVal interface{}, g geom.Geom) (*Whisker, error) {
	id := row
	if idField != "" {
		var err error
		if id, err = parseID(idVal); err != nil {
			return nil, errors.Wrapf(err, "record %d: field %s", row, idField)
		}
	}
	var ml geom.MultiLineString
	switch t := g.(type) {
	case geom.MultiLineString:
		ml = t
	case geom.LineString:
		ml = geom.MultiLineString{t}
	case nil:
		return nil, &GeometryEngineError{Stage: "read", Op: "read", Subject: fmt.Sprintf("whisker %d", id),
			Err: errors.New("geometry is empty")}
	default:
		return nil, &GeometryEngineError{Stage: "read", Op: "read", Subject: fmt.Sprintf("whisker %d", id),
			Err: errors.Errorf("geometry type %T is not a line", g)}
	}
	return NewWhisker(id, ml), nil
}

// parseID converts an attribute value to an integer ID. Values such
// as "12.0" are accepted as long as they have no fractional part.
func parseID(v interface{}) (int, error) {
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, errors.Errorf("invalid ID %v", v)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, errors.Errorf("ID %v is not an integer", v)
	}
	return int(f), nil
}

// ReadReferences reads reference features from a shapefile (.shp) or
// GeoJSON (.geojson or .json) file. Feature IDs are the zero-based record
// numbers. Every attribute of each feature is kept and described by the
// returned schema. If both dst and the file have a spatial reference,
// the features are reprojected to dst. Records without geometry are
// skipped.
func ReadReferences(path string, dst *SpatialReference) ([]*ReferenceFeature, Schema, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return readReferencesShp(path, dst)
	case ".geojson", ".json":
		return readReferencesGeoJSON(path)
	default:
		return nil, nil, errors.Errorf("xsprofile: reference file %s has unsupported type; "+
			"valid types are .shp, .geojson, and .json", path)
	}
}

func readReferencesShp(path string, dst *SpatialReference) ([]*ReferenceFeature, Schema, error) {
	f, err := shp.NewDecoder(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "xsprofile: opening reference shapefile %s", path)
	}
	defer f.Close()

	src, err := readPrj(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "xsprofile: reading projection of reference shapefile %s", path)
	}
	var trans proj.Transformer
	if src != nil && dst != nil && !src.Equal(dst.SR, 4) {
		trans, err = src.NewTransform(dst.SR)
		if err != nil {
			return nil, nil, &GeometryEngineError{Stage: "read", Op: "reproject", Subject: path, Err: err}
		}
	}

	schema := Schema(f.Fields())
	names := make([]string, len(schema))
	for i, fld := range schema {
		names[i] = fieldName(fld)
	}

	var refs []*ReferenceFeature
	for row := 0; ; row++ {
		g, vals, more := f.DecodeRowFields(names...)
		if err := f.Error(); err != nil {
			return nil, nil, errors.Wrapf(err, "xsprofile: reading reference shapefile %s", path)
		}
		if !more {
			break
		}
		if g == nil {
			continue
		}
		if trans != nil {
			if g, err = g.Transform(trans); err != nil {
				return nil, nil, &GeometryEngineError{Stage: "read", Op: "reproject",
					Subject: fmt.Sprintf("reference %d", row), Err: err}
			}
		}
		attrs := make([]Attribute, len(names))
		for i, n := range names {
			attrs[i] = Attribute{Name: n, Value: attrValue(vals[n])}
		}
		refs = append(refs, &ReferenceFeature{ID: row, Geom: g, Attributes: attrs})
	}
	return refs, schema, nil
}

// fieldName returns the name of a shapefile field.
func fieldName(f goshp.Field) string {
	n := f.Name[:]
	if i := bytes.IndexByte(n, 0); i >= 0 {
		n = n[:i]
	}
	return strings.TrimSpace(string(n))
}

// attrValue removes the padding from a shapefile attribute value.
func attrValue(v string) string {
	return strings.TrimSpace(strings.Trim(v, "\x00"))
}

// Outputter writes profiled points to a file.
type Outputter struct {
	path      string
	overwrite bool
	sr        *SpatialReference
	schema    Schema
}

// NewOutputter prepares to write profiled points to path, which should
// end in .shp, .geojson, or .json. sr, which may be nil, is written to
// the .prj file of shapefile output. schema describes the reference
// attributes that are copied to the output. Unless overwrite is true, it
// is an error for the output file to already exist.
func NewOutputter(path string, overwrite bool, sr *SpatialReference, schema Schema) (*Outputter, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp", ".geojson", ".json":
	default:
		return nil, errors.Errorf("xsprofile: output file %s has unsupported type; "+
			"valid types are .shp, .geojson, and .json", path)
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return nil, errors.Errorf("xsprofile: output file %s already exists; "+
				"set overwrite to replace it", path)
		}
	}
	return &Outputter{path: path, overwrite: overwrite, sr: sr, schema: schema}, nil
}

// Output returns a stage that writes the profile results. The output is
// first written next to its destination and then moved into place, so
// a failed run does not leave a partial file behind.
func (o *Outputter) Output() Stage {
	return func(ctx context.Context, p *Profile) error {
		dir, err := ioutil.TempDir(filepath.Dir(o.path), ".xsprofile-")
		if err != nil {
			return errors.Wrap(err, "xsprofile: creating output staging directory")
		}
		defer os.RemoveAll(dir)

		staged := filepath.Join(dir, filepath.Base(o.path))
		if strings.ToLower(filepath.Ext(o.path)) == ".shp" {
			err = o.writeShp(staged, p.results)
		} else {
			err = o.writeGeoJSON(staged, p.results)
		}
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return o.commit(staged)
	}
}

// outputColumns are the attribute fields that every output file starts with.
var outputColumns = []goshp.Field{
	goshp.NumberField("WhiskerID", 12),
	goshp.FloatField("Distance", 24, 8),
	goshp.NumberField("SortRank", 12),
	goshp.NumberField("RefID", 12),
	goshp.NumberField("PointID", 12),
}

// passthroughFields returns the output field for each schema field,
// renamed where needed so that no two fields share a name.
func passthroughFields(schema Schema) []goshp.Field {
	used := make(map[string]bool)
	for _, f := range outputColumns {
		used[strings.ToLower(fieldName(f))] = true
	}
	o := make([]goshp.Field, len(schema))
	for i, f := range schema {
		name := uniqueFieldName(fieldName(f), used)
		used[strings.ToLower(name)] = true
		f.Name = [11]byte{}
		copy(f.Name[:10], name)
		o[i] = f
	}
	return o
}

// uniqueFieldName shortens name to fit in a shapefile field and adds a
// numeric suffix if it is already in use.
func uniqueFieldName(name string, used map[string]bool) string {
	return uniqueName(name, 10, used)
}

// uniqueName returns name, or name with a numeric suffix if it is already
// in use. Names are compared without regard to case. The result is at
// most maxLen bytes long unless maxLen is zero.
func uniqueName(name string, maxLen int, used map[string]bool) string {
	if maxLen > 0 && len(name) > maxLen {
		name = name[:maxLen]
	}
	if !used[strings.ToLower(name)] {
		return name
	}
	for i := 1; ; i++ {
		suffix := fmt.Sprintf("_%d", i)
		base := name
		if maxLen > 0 && len(base)+len(suffix) > maxLen {
			base = base[:maxLen-len(suffix)]
		}
		if n := base + suffix; !used[strings.ToLower(n)] {
			return n
		}
	}
}

func (o *Outputter) writeShp(fname string, results []*ProfiledPoint) error {
	pass := passthroughFields(o.schema)
	fields := append(append([]goshp.Field{}, outputColumns...), pass...)
	e, err := shp.NewEncoderFromFields(fname, goshp.POINT, fields...)
	if err != nil {
		return errors.Wrap(err, "xsprofile: creating output shapefile")
	}
	for _, r := range results {
		vals := make([]interface{}, 0, len(fields))
		vals = append(vals, r.WhiskerID, r.Distance, r.SortRank, r.ReferenceID, r.ID)
		for i := range pass {
			var v string
			if i < len(r.Attributes) {
				v = r.Attributes[i].Value
			}
			vals = append(vals, v)
		}
		if err := e.EncodeFields(r.Geom, vals...); err != nil {
			e.Close()
			return errors.Wrap(err, "xsprofile: writing output shapefile")
		}
	}
	e.Close()

	if o.sr == nil || o.sr.WKT == "" {
		return nil
	}
	prj := strings.TrimSuffix(fname, filepath.Ext(fname)) + ".prj"
	if err := ioutil.WriteFile(prj, []byte(o.sr.WKT), 0644); err != nil {
		return errors.Wrap(err, "xsprofile: writing output prj file")
	}
	return nil
}

// commit moves the staged output file and its companion files into place.
func (o *Outputter) commit(staged string) error {
	stagedBase := strings.TrimSuffix(staged, filepath.Ext(staged))
	destBase := strings.TrimSuffix(o.path, filepath.Ext(o.path))
	var exts []string
	if strings.ToLower(filepath.Ext(o.path)) == ".shp" {
		exts = []string{".shp", ".shx", ".dbf", ".prj"}
	} else {
		exts = []string{filepath.Ext(o.path)}
	}
	if !o.overwrite {
		if _, err := os.Stat(o.path); err == nil {
			return errors.Errorf("xsprofile: output file %s already exists; "+
				"set overwrite to replace it", o.path)
		}
	}
	for _, ext := range exts {
		src := stagedBase + ext
		if _, err := os.Stat(src); os.IsNotExist(err) {
			// A stale .prj from an earlier run would not match this output.
			os.Remove(destBase + ext)
			continue
		}
		if err := os.Rename(src, destBase+ext); err != nil {
			return errors.Wrap(err, "xsprofile: moving output into place")
		}
	}
	return nil
}
