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

package xsprofileutil

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lnashier/viper"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spatialmodel/xsprofile"
)

const whiskersGeoJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"wid":1},"geometry":{"type":"LineString","coordinates":[[0,0],[100,0]]}},
{"type":"Feature","properties":{"wid":2},"geometry":{"type":"LineString","coordinates":[[0,10],[100,10]]}}
]}`

const refsGeoJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"name":"a"},"geometry":{"type":"Point","coordinates":[90,0]}},
{"type":"Feature","properties":{"name":"b"},"geometry":{"type":"Point","coordinates":[10,0]}},
{"type":"Feature","properties":{"name":"c"},"geometry":{"type":"LineString","coordinates":[[50,-5],[50,15]]}}
]}`

// writeInputs writes the test whiskers and references to dir.
func writeInputs(t *testing.T, dir string) (whiskers, refs string) {
	t.Helper()
	whiskers = filepath.Join(dir, "whiskers.geojson")
	refs = filepath.Join(dir, "refs.geojson")
	for f, s := range map[string]string{whiskers: whiskersGeoJSON, refs: refsGeoJSON} {
		if err := ioutil.WriteFile(f, []byte(s), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return whiskers, refs
}

// readOutput returns the WhiskerID, SortRank, and name of each output point.
func readOutput(t *testing.T, path string) []string {
	t.Helper()
	b, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		t.Fatal(err)
	}
	var o []string
	for _, f := range fc.Features {
		o = append(o, fmt.Sprintf("%d-%d-%s", f.Properties.MustInt("WhiskerID"),
			f.Properties.MustInt("SortRank"), f.Properties.MustString("name")))
	}
	return o
}

func helperLog(t *testing.T) logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func TestVersion(t *testing.T) {
	var buf bytes.Buffer
	Root.SetOut(&buf)
	defer Root.SetOut(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := "xsprofile v" + xsprofile.Version + "\n"; buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestProfileCmd(t *testing.T) {
	dir := t.TempDir()
	whiskers, refs := writeInputs(t, dir)
	out := filepath.Join(dir, "profile.geojson")

	var buf bytes.Buffer
	Root.SetOut(&buf)
	defer Root.SetOut(nil)
	Cfg.Set("WhiskerIDField", "wid")
	defer Cfg.Set("WhiskerIDField", "")
	Root.SetArgs([]string{"profile", whiskers, refs, "0.5", out})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	got := strings.Join(readOutput(t, out), " ")
	if want := "1-1-b 1-2-c 1-3-a 2-1-c"; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	log, err := ioutil.ReadFile(filepath.Join(dir, "profile.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(log), "xsprofile completed successfully") {
		t.Errorf("log file is missing completion message:\n%s", log)
	}
	if !strings.Contains(buf.String(), "digest=") {
		t.Errorf("command output is missing digest:\n%s", buf.String())
	}

	// Running again without overwrite fails.
	Root.SetArgs([]string{"profile", whiskers, refs, "0.5", out})
	if err := Root.Execute(); err == nil {
		t.Error("existing output should be an error")
	}
}

func TestProfileCmdArgs(t *testing.T) {
	Root.SetOut(ioutil.Discard)
	Root.SetErr(ioutil.Discard)
	defer Root.SetOut(nil)
	defer Root.SetErr(nil)
	for _, args := range [][]string{
		{"profile", "w.shp", "r.shp", "1"},
		{"profile", "w.shp", "r.shp", "far", filepath.Join(os.TempDir(), "o.shp")},
		{"profile", "w.shp", "r.shp", "-1", filepath.Join(os.TempDir(), "o.shp")},
		{"profile", "w.shp", "r.shp", "1", "/does/not/exist/o.shp"},
	} {
		Root.SetArgs(args)
		if err := Root.Execute(); err == nil {
			t.Errorf("%v: should be an error", args)
		}
	}
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	whiskers, refs := writeInputs(t, dir)
	jobs := fmt.Sprintf(`
[[Job]]
Whiskers = %q
References = %q
SnapDistance = 0.5
Output = %q
WhiskerIDField = "wid"

[[Job]]
Whiskers = %q
References = %q
SnapDistance = 1
Output = %q
Unresolved = "strict"
`, whiskers, refs, filepath.Join(dir, "a.geojson"),
		whiskers, refs, filepath.Join(dir, "b.geojson"))
	jobFile := filepath.Join(dir, "jobs.toml")
	if err := ioutil.WriteFile(jobFile, []byte(jobs), 0644); err != nil {
		t.Fatal(err)
	}

	Root.SetOut(ioutil.Discard)
	defer Root.SetOut(nil)
	Root.SetArgs([]string{"batch", jobFile})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(readOutput(t, filepath.Join(dir, "a.geojson")), " "); got != "1-1-b 1-2-c 1-3-a 2-1-c" {
		t.Errorf("job 1 output: %s", got)
	}
	// Without an ID field, whiskers are numbered from 0.
	if got := strings.Join(readOutput(t, filepath.Join(dir, "b.geojson")), " "); got != "0-1-b 0-2-c 0-3-a 1-1-c" {
		t.Errorf("job 2 output: %s", got)
	}
}

func TestReadJobsInvalid(t *testing.T) {
	dir := t.TempDir()
	for name, s := range map[string]string{
		"empty":       ``,
		"no distance": "[[Job]]\nWhiskers = \"w.shp\"\n",
		"bad toml":    "[[Job]\n",
		"negative":    "[[Job]]\nSnapDistance = -2\n",
		"not number":  "[[Job]]\nSnapDistance = \"far\"\n",
	} {
		f := filepath.Join(dir, "jobs.toml")
		if err := ioutil.WriteFile(f, []byte(s), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadJobs(f); err == nil {
			t.Errorf("%s: should be an error", name)
		}
	}
}

func TestReadJobsSnapDistance(t *testing.T) {
	f := filepath.Join(t.TempDir(), "jobs.toml")
	s := "[[Job]]\nSnapDistance = 2\n\n[[Job]]\nSnapDistance = 0.25\n\n[[Job]]\nSnapDistance = \"3\"\n"
	if err := ioutil.WriteFile(f, []byte(s), 0644); err != nil {
		t.Fatal(err)
	}
	jobs, err := ReadJobs(f)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{2, 0.25, 3} {
		got, err := checkSnapDistance(jobs[i].SnapDistance)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("job %d: snap distance %g, want %g", i+1, got, want)
		}
	}
}

func TestProfileConfig(t *testing.T) {
	cfg := viper.New()
	cfg.Set("Unresolved", "keep")
	cfg.Set("Workers", 3)
	c, err := ProfileConfig(cfg, 2.5)
	if err != nil {
		t.Fatal(err)
	}
	if c.SnapDistance != 2.5 || c.Unresolved != xsprofile.Keep || c.Workers != 3 {
		t.Errorf("unexpected configuration %+v", c)
	}
	cfg.Set("Unresolved", "sometimes")
	if _, err := ProfileConfig(cfg, 2.5); err == nil {
		t.Error("invalid policy should be an error")
	}
}

func TestCheckSnapDistance(t *testing.T) {
	for _, s := range []interface{}{"1.5", 1.5, "0"} {
		if _, err := checkSnapDistance(s); err != nil {
			t.Errorf("%v: %v", s, err)
		}
	}
	for _, s := range []interface{}{"", "x", "-2", math.Inf(1), "NaN"} {
		if _, err := checkSnapDistance(s); err == nil {
			t.Errorf("%v: should be an error", s)
		}
	}
}

func TestCheckLogFile(t *testing.T) {
	if got := checkLogFile("", "/data/out.shp"); got != "/data/out.log" {
		t.Errorf("got %s", got)
	}
	if got := checkLogFile("/logs/x.log", "/data/out.shp"); got != "/logs/x.log" {
		t.Errorf("got %s", got)
	}
}

func TestMaybeDownloadLocal(t *testing.T) {
	var d downloader
	if k, err := d.maybeDownload(context.Background(), "/dev/null", helperLog(t)); err != nil || k != "/dev/null" {
		t.Errorf("expected /dev/null, got %s (%v)", k, err)
	}
	if k, err := d.maybeDownload(context.Background(), "/blah/test/", helperLog(t)); err != nil || k != "/blah/test/" {
		t.Errorf("expected /blah/test/, got %s (%v)", k, err)
	}
	if len(d.dirs) != 0 {
		t.Errorf("local files should not create download directories: %v", d.dirs)
	}
}

func TestMaybeDownloadRemote(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"w.shp", "w.shx", "w.dbf"} {
		if err := ioutil.WriteFile(filepath.Join(dir, f), []byte(f), 0644); err != nil {
			t.Fatal(err)
		}
	}
	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()

	var d downloader
	k, err := d.maybeDownload(context.Background(), srv.URL+"/w.shp", helperLog(t))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(k, "w.shp") {
		t.Errorf("expected tempDir/w.shp, got %s", k)
	}
	b, err := ioutil.ReadFile(strings.TrimSuffix(k, ".shp") + ".dbf")
	if err != nil || string(b) != "w.dbf" {
		t.Errorf("companion file was not downloaded: %s (%v)", b, err)
	}
	if _, err := d.maybeDownload(context.Background(), srv.URL+"/missing.geojson", helperLog(t)); err == nil {
		t.Error("missing remote file should be an error")
	}
	if len(d.dirs) != 2 {
		t.Fatalf("got %d download directories, want 2", len(d.dirs))
	}
	dirs := d.dirs
	d.cleanup()
	for _, dir := range dirs {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("download directory %s was not removed", dir)
		}
	}
	if _, err := os.Stat(k); !os.IsNotExist(err) {
		t.Errorf("downloaded file %s was not removed", k)
	}
}

func TestBlobRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "refs.geojson")
	if err := ioutil.WriteFile(src, []byte(refsGeoJSON), 0644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	var d downloader
	defer d.cleanup()
	k, err := d.maybeDownload(ctx, "file://"+src, helperLog(t))
	if err != nil {
		t.Fatal(err)
	}
	if k == "file://"+src {
		t.Fatal("blob was not downloaded")
	}
	b, err := ioutil.ReadFile(k)
	if err != nil || string(b) != refsGeoJSON {
		t.Errorf("downloaded blob is wrong: %s (%v)", b, err)
	}

	var u uploader
	defer u.cleanup()
	dst := filepath.Join(dir, "uploaded", "out.geojson")
	local := u.maybeUpload("file://" + dst)
	if local == dst || local == "" {
		t.Fatalf("unexpected local path %s", local)
	}
	if err := ioutil.WriteFile(local, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := u.upload(ctx); err != nil {
		t.Fatal(err)
	}
	if b, err := ioutil.ReadFile(dst); err != nil || string(b) != "{}" {
		t.Errorf("uploaded blob is wrong: %s (%v)", b, err)
	}
}
