package main

import (
	"reflect"
	"testing"
)

func TestWithDefaultCommand(t *testing.T) {
	for _, test := range []struct {
		args, want []string
	}{
		{
			args: []string{"w.shp", "r.shp", "5", "o.shp"},
			want: []string{"profile", "w.shp", "r.shp", "5", "o.shp"},
		},
		{
			args: []string{"-u", "keep", "w.shp", "r.shp", "5", "o.shp"},
			want: []string{"profile", "-u", "keep", "w.shp", "r.shp", "5", "o.shp"},
		},
		{
			args: []string{"w.shp", "r.shp", "5"},
			want: []string{"profile", "w.shp", "r.shp", "5"},
		},
		{
			args: []string{"profile", "w.shp", "r.shp", "5", "o.shp"},
			want: []string{"profile", "w.shp", "r.shp", "5", "o.shp"},
		},
		{
			args: []string{"--config", "c.toml", "batch", "jobs.toml"},
			want: []string{"--config", "c.toml", "batch", "jobs.toml"},
		},
		{args: []string{"version"}, want: []string{"version"}},
		{args: []string{"--help"}, want: []string{"--help"}},
		{args: []string{}, want: []string{}},
	} {
		got := withDefaultCommand(test.args)
		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("%v: got %v, want %v", test.args, got, test.want)
		}
	}
}
