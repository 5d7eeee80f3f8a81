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
	"math"
	"math/rand"
	"testing"

	"github.com/ctessum/geom"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spatialmodel/xsprofile/planar"
)

const testTolerance = 1.e-8

func line(pts ...float64) geom.LineString {
	l := make(geom.LineString, len(pts)/2)
	for i := range l {
		l[i] = geom.Point{X: pts[2*i], Y: pts[2*i+1]}
	}
	return l
}

func whisker(id int, pts ...float64) *Whisker {
	return NewWhisker(id, geom.MultiLineString{line(pts...)})
}

func point(id int, x, y float64) *ReferenceFeature {
	return &ReferenceFeature{ID: id, Geom: geom.Point{X: x, Y: y}}
}

func testConfig(snap float64) (Config, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	cfg := DefaultConfig(snap)
	cfg.Log = log
	return cfg, hook
}

func profile(t *testing.T, cfg Config, engine Engine, whiskers []*Whisker, refs []*ReferenceFeature) (*Profile, error) {
	t.Helper()
	p, err := New(cfg, engine, whiskers, refs)
	if err != nil {
		t.Fatal(err)
	}
	return p, p.Execute(context.Background())
}

type row struct {
	WhiskerID, RefID, SortRank int
	Distance                   float64
}

func rows(p *Profile) []row {
	o := make([]row, len(p.Results()))
	for i, r := range p.Results() {
		o[i] = row{WhiskerID: r.WhiskerID, RefID: r.ReferenceID, SortRank: r.SortRank, Distance: r.Distance}
	}
	return o
}

func TestPointsAlongWhisker(t *testing.T) {
	cfg, _ := testConfig(1)
	refs := []*ReferenceFeature{point(0, 90, 0), point(1, 10, 0), point(2, 50, 0)}
	p, err := profile(t, cfg, planar.New(), []*Whisker{whisker(1, 0, 0, 100, 0)}, refs)
	if err != nil {
		t.Fatal(err)
	}
	want := []row{
		{WhiskerID: 1, RefID: 1, SortRank: 1, Distance: 10},
		{WhiskerID: 1, RefID: 2, SortRank: 2, Distance: 50},
		{WhiskerID: 1, RefID: 0, SortRank: 3, Distance: 90},
	}
	if diff := cmp.Diff(want, rows(p), cmpopts.EquateApprox(0, testTolerance)); diff != "" {
		t.Errorf("results (-want +got):\n%s", diff)
	}
}

func TestLineCrossingTwoWhiskers(t *testing.T) {
	cfg, _ := testConfig(1)
	whiskers := []*Whisker{whisker(2, 0, 10, 100, 10), whisker(1, 0, 0, 100, 0)}
	refs := []*ReferenceFeature{{ID: 0, Geom: geom.MultiLineString{line(30, -5, 30, 15)}}}
	p, err := profile(t, cfg, planar.New(), whiskers, refs)
	if err != nil {
		t.Fatal(err)
	}
	want := []row{
		{WhiskerID: 1, RefID: 0, SortRank: 1, Distance: 30},
		{WhiskerID: 2, RefID: 0, SortRank: 1, Distance: 30},
	}
	if diff := cmp.Diff(want, rows(p), cmpopts.EquateApprox(0, testTolerance)); diff != "" {
		t.Errorf("results (-want +got):\n%s", diff)
	}
}

func TestPolygonCentroid(t *testing.T) {
	cfg, _ := testConfig(1)
	// The square crosses the whisker at x=40 and x=60.
	square := geom.Polygon{geom.Path(line(40, -10, 60, -10, 60, 10, 40, 10))}
	refs := []*ReferenceFeature{{ID: 5, Geom: square, Attributes: []Attribute{{Name: "Kind", Value: "lane"}}}}
	p, err := profile(t, cfg, planar.New(), []*Whisker{whisker(1, 0, 0, 100, 0)}, refs)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Results()) != 1 {
		t.Fatalf("got %d results, want 1", len(p.Results()))
	}
	r := p.Results()[0]
	if math.Abs(r.Distance-50) > testTolerance {
		t.Errorf("distance = %g, want 50", r.Distance)
	}
	if diff := cmp.Diff([]Attribute{{Name: "Kind", Value: "lane"}}, r.Attributes); diff != "" {
		t.Errorf("attributes (-want +got):\n%s", diff)
	}
}

func TestNearMissHorizontalWhisker(t *testing.T) {
	cfg, _ := testConfig(1)
	// Just above a whisker whose bounds have zero height.
	refs := []*ReferenceFeature{point(0, 10, 1e-12)}
	p, err := profile(t, cfg, planar.New(), []*Whisker{whisker(1, 0, 0, 100, 0)}, refs)
	if err != nil {
		t.Fatal(err)
	}
	want := []row{{WhiskerID: 1, RefID: 0, SortRank: 1, Distance: 10}}
	if diff := cmp.Diff(want, rows(p), cmpopts.EquateApprox(0, testTolerance)); diff != "" {
		t.Errorf("results (-want +got):\n%s", diff)
	}
}

func TestEqualDistances(t *testing.T) {
	cfg, _ := testConfig(1)
	refs := []*ReferenceFeature{point(0, 20, 0), point(1, 20, 0), point(2, 5, 0)}
	p, err := profile(t, cfg, planar.New(), []*Whisker{whisker(1, 0, 0, 100, 0)}, refs)
	if err != nil {
		t.Fatal(err)
	}
	want := []row{
		{WhiskerID: 1, RefID: 2, SortRank: 1, Distance: 5},
		{WhiskerID: 1, RefID: 0, SortRank: 2, Distance: 20},
		{WhiskerID: 1, RefID: 1, SortRank: 3, Distance: 20},
	}
	if diff := cmp.Diff(want, rows(p), cmpopts.EquateApprox(0, testTolerance)); diff != "" {
		t.Errorf("results (-want +got):\n%s", diff)
	}
}

func TestEmpty(t *testing.T) {
	for _, test := range []struct {
		name     string
		whiskers []*Whisker
		refs     []*ReferenceFeature
	}{
		{name: "nothing"},
		{name: "no references", whiskers: []*Whisker{whisker(1, 0, 0, 100, 0)}},
		{name: "no whiskers", refs: []*ReferenceFeature{point(0, 1, 1)}},
		{name: "no intersections", whiskers: []*Whisker{whisker(1, 0, 0, 100, 0)},
			refs: []*ReferenceFeature{point(0, 50, 50)}},
	} {
		t.Run(test.name, func(t *testing.T) {
			cfg, _ := testConfig(1)
			p, err := profile(t, cfg, planar.New(), test.whiskers, test.refs)
			if err != nil {
				t.Fatal(err)
			}
			if len(p.Results()) != 0 {
				t.Errorf("got %d results, want none", len(p.Results()))
			}
		})
	}
}

// randomInput creates a grid of parallel and bent whiskers crossed by
// random points, lines, and polygons.
func randomInput(seed int64) ([]*Whisker, []*ReferenceFeature) {
	r := rand.New(rand.NewSource(seed))
	var whiskers []*Whisker
	for i := 0; i < 8; i++ {
		y := float64(i) * 20
		whiskers = append(whiskers, whisker(100+i, 0, y, 50, y+5, 100, y))
	}
	var refs []*ReferenceFeature
	for i := 0; i < 60; i++ {
		x := r.Float64() * 100
		y := r.Float64() * 150
		switch i % 3 {
		case 0:
			refs = append(refs, &ReferenceFeature{ID: i, Geom: geom.MultiLineString{line(x, y-10, x+r.Float64()*4, y+10)}})
		case 1:
			refs = append(refs, &ReferenceFeature{ID: i, Geom: geom.Polygon{geom.Path(line(x, y, x+3, y, x+3, y+12, x, y+12))}})
		default:
			// A point on one of the whiskers.
			w := whiskers[r.Intn(len(whiskers))]
			a, b := w.Geom[0][0], w.Geom[0][1]
			f := r.Float64()
			refs = append(refs, point(i, a.X+f*(b.X-a.X), a.Y+f*(b.Y-a.Y)))
		}
	}
	return whiskers, refs
}

func TestProperties(t *testing.T) {
	const snap = 2.
	whiskers, refs := randomInput(1)
	cfg, _ := testConfig(snap)
	cfg.Unresolved = Drop
	p, err := profile(t, cfg, planar.New(), whiskers, refs)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Results()) == 0 {
		t.Fatal("no results")
	}

	lengths := make(map[int]float64)
	for _, w := range whiskers {
		lengths[w.ID] = w.Geom.Length()
	}
	byWhisker := make(map[int][]*ProfiledPoint)
	for _, r := range p.Results() {
		byWhisker[r.WhiskerID] = append(byWhisker[r.WhiskerID], r)
	}
	for id, pts := range byWhisker {
		for i, r := range pts {
			if r.SortRank != i+1 {
				t.Errorf("whisker %d: point %d has rank %d, want %d", id, r.ID, r.SortRank, i+1)
			}
			if i > 0 && r.Distance < pts[i-1].Distance {
				t.Errorf("whisker %d: rank %d is closer than rank %d", id, r.SortRank, pts[i-1].SortRank)
			}
			if r.Distance < 0 || r.Distance > lengths[id]+testTolerance {
				t.Errorf("whisker %d: distance %g is outside [0, %g]", id, r.Distance, lengths[id])
			}
		}
	}
	for _, c := range p.Candidates() {
		if d := math.Hypot(c.Point.X-c.Original.X, c.Point.Y-c.Original.Y); d > snap+p.Config().Tolerance {
			t.Errorf("point %d moved %g by snapping", c.ID, d)
		}
	}
}

func TestIdempotent(t *testing.T) {
	whiskers, refs := randomInput(2)
	var digests []string
	for _, workers := range []int{1, 3, 16, 16} {
		cfg, _ := testConfig(2)
		cfg.Workers = workers
		p, err := profile(t, cfg, planar.New(), whiskers, refs)
		if err != nil {
			t.Fatal(err)
		}
		digests = append(digests, p.Digest())
	}
	for i, d := range digests[1:] {
		if d != digests[0] {
			t.Errorf("run %d digest %s != %s", i+1, d, digests[0])
		}
	}
}

// vWhisker is an inverted V. A horizontal line at y=5 crosses it twice
// and the centroid of the crossings, (10, 5), is 5/√2 from the whisker.
func vWhisker() ([]*Whisker, []*ReferenceFeature) {
	return []*Whisker{whisker(1, 0, 0, 10, 10, 20, 0)},
		[]*ReferenceFeature{
			point(0, 2, 2),
			{ID: 1, Geom: geom.MultiLineString{line(-5, 5, 25, 5)}},
		}
}

func TestUnresolvedPolicy(t *testing.T) {
	t.Run("drop", func(t *testing.T) {
		cfg, hook := testConfig(1)
		whiskers, refs := vWhisker()
		p, err := profile(t, cfg, planar.New(), whiskers, refs)
		if err != nil {
			t.Fatal(err)
		}
		want := []row{{WhiskerID: 1, RefID: 0, SortRank: 1, Distance: 2 * math.Sqrt2}}
		if diff := cmp.Diff(want, rows(p), cmpopts.EquateApprox(0, testTolerance)); diff != "" {
			t.Errorf("results (-want +got):\n%s", diff)
		}
		var warned bool
		for _, e := range hook.AllEntries() {
			warned = warned || e.Level == logrus.WarnLevel
		}
		if !warned {
			t.Error("dropping a point should log a warning")
		}
	})
	t.Run("strict", func(t *testing.T) {
		cfg, _ := testConfig(1)
		cfg.Unresolved = Strict
		whiskers, refs := vWhisker()
		p, err := profile(t, cfg, planar.New(), whiskers, refs)
		var ue *UnresolvedAssociationError
		if !errors.As(err, &ue) {
			t.Fatalf("error %v should be an UnresolvedAssociationError", err)
		}
		if diff := cmp.Diff([]int{2}, ue.PointIDs); diff != "" {
			t.Errorf("unresolved point IDs (-want +got):\n%s", diff)
		}
		if len(p.Results()) != 0 {
			t.Error("a failed run should not have results")
		}
	})
	t.Run("keep", func(t *testing.T) {
		cfg, _ := testConfig(1)
		cfg.Unresolved = Keep
		whiskers, refs := vWhisker()
		p, err := profile(t, cfg, planar.New(), whiskers, refs)
		if err != nil {
			t.Fatal(err)
		}
		want := []row{
			{WhiskerID: 1, RefID: 0, SortRank: 1, Distance: 2 * math.Sqrt2},
			{WhiskerID: NullWhiskerID, RefID: 1, SortRank: NullSortRank, Distance: NullDistance},
		}
		if diff := cmp.Diff(want, rows(p), cmpopts.EquateApprox(0, testTolerance)); diff != "" {
			t.Errorf("results (-want +got):\n%s", diff)
		}
	})
	t.Run("snapped", func(t *testing.T) {
		// With a larger snap distance the centroid is moved onto the
		// first leg of the whisker.
		cfg, _ := testConfig(5)
		cfg.Unresolved = Strict
		whiskers, refs := vWhisker()
		p, err := profile(t, cfg, planar.New(), whiskers, refs)
		if err != nil {
			t.Fatal(err)
		}
		want := []row{
			{WhiskerID: 1, RefID: 0, SortRank: 1, Distance: 2 * math.Sqrt2},
			{WhiskerID: 1, RefID: 1, SortRank: 2, Distance: 7.5 * math.Sqrt2},
		}
		if diff := cmp.Diff(want, rows(p), cmpopts.EquateApprox(0, testTolerance)); diff != "" {
			t.Errorf("results (-want +got):\n%s", diff)
		}
	})
}

// lostEngine locates every point on a whisker that does not exist.
type lostEngine struct{ *planar.Engine }

func (e lostEngine) Nearest(p geom.Point) (int, geom.Point, float64, bool) {
	return 99, p, 0, true
}

// panicEngine fails while reducing intersections.
type panicEngine struct{ *planar.Engine }

func (e panicEngine) Centroid(mp geom.MultiPoint) (geom.Point, error) {
	panic("centroid of nothing")
}

func TestErrors(t *testing.T) {
	refs := []*ReferenceFeature{point(0, 10, 0)}
	ok := []*Whisker{whisker(1, 0, 0, 100, 0)}

	t.Run("consistency", func(t *testing.T) {
		cfg, hook := testConfig(1)
		_, err := profile(t, cfg, lostEngine{planar.New()}, ok, refs)
		var ce *ConsistencyError
		if !errors.As(err, &ce) {
			t.Fatalf("error %v should be a ConsistencyError", err)
		}
		if ce.Stage != "locate" {
			t.Errorf("stage = %q, want locate", ce.Stage)
		}
		if e := hook.LastEntry(); e == nil || e.Level != logrus.ErrorLevel {
			t.Error("failure should be logged")
		}
	})
	t.Run("panic", func(t *testing.T) {
		cfg, _ := testConfig(1)
		_, err := profile(t, cfg, panicEngine{planar.New()}, ok, refs)
		var re *GenericRuntimeError
		if !errors.As(err, &re) {
			t.Fatalf("error %v should be a GenericRuntimeError", err)
		}
		if re.Stage != "reduce" {
			t.Errorf("stage = %q, want reduce", re.Stage)
		}
	})
	t.Run("invalid whisker", func(t *testing.T) {
		cfg, _ := testConfig(1)
		_, err := profile(t, cfg, planar.New(), []*Whisker{whisker(1, 0, 0)}, refs)
		var ge *GeometryEngineError
		if !errors.As(err, &ge) {
			t.Fatalf("error %v should be a GeometryEngineError", err)
		}
		if ge.Stage != "index" {
			t.Errorf("stage = %q, want index", ge.Stage)
		}
	})
	t.Run("duplicate whisker", func(t *testing.T) {
		cfg, _ := testConfig(1)
		_, err := profile(t, cfg, planar.New(), []*Whisker{ok[0], whisker(1, 0, 5, 100, 5)}, refs)
		var ge *GeometryEngineError
		if !errors.As(err, &ge) {
			t.Fatalf("error %v should be a GeometryEngineError", err)
		}
	})
	t.Run("cancelled", func(t *testing.T) {
		cfg, _ := testConfig(1)
		p, err := New(cfg, planar.New(), ok, refs)
		if err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := p.Execute(ctx); err != context.Canceled {
			t.Errorf("error = %v, want %v", err, context.Canceled)
		}
	})
}

func TestNewInvalid(t *testing.T) {
	cfg, _ := testConfig(-1)
	if _, err := New(cfg, planar.New(), nil, nil); err == nil {
		t.Error("negative snap distance should be an error")
	}
	cfg, _ = testConfig(1)
	cfg.Unresolved = "ignore"
	if _, err := New(cfg, planar.New(), nil, nil); err == nil {
		t.Error("unknown policy should be an error")
	}
	cfg, _ = testConfig(1)
	var re *GenericRuntimeError
	if _, err := New(cfg, nil, nil, nil); !errors.As(err, &re) {
		t.Errorf("missing engine error = %v", err)
	}
}

func TestParseUnresolvedPolicy(t *testing.T) {
	for s, want := range map[string]UnresolvedPolicy{"": Drop, "DROP": Drop, " strict": Strict, "keep": Keep} {
		got, err := ParseUnresolvedPolicy(s)
		if err != nil {
			t.Errorf("%q: %v", s, err)
		}
		if got != want {
			t.Errorf("%q: got %s, want %s", s, got, want)
		}
	}
	if _, err := ParseUnresolvedPolicy("maybe"); err == nil {
		t.Error("invalid policy should be an error")
	}
}

func TestUnresolvedAssociationErrorMessage(t *testing.T) {
	ids := make([]int, 12)
	for i := range ids {
		ids[i] = i + 1
	}
	e := &UnresolvedAssociationError{PointIDs: ids, SnapDistance: 0.5}
	want := "xsprofile: 12 point(s) are not within snap distance 0.5 of any whisker: 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, and 2 more"
	if e.Error() != want {
		t.Errorf("got %q, want %q", e.Error(), want)
	}
}
