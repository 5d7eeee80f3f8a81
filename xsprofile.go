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

// Package xsprofile computes cross-sectional linear-reference profiles.
// Given a set of baseline curves ("whiskers") and a set of reference
// features that cross or touch them, it finds, for every whisker, the
// reference features that intersect it, ordered by their distance along
// the whisker from its start.
package xsprofile

import (
	"context"
	"sort"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
)

// Version gives the version number.
const Version = "1.2.0"

// Stage is a step in building a profile.
type Stage func(ctx context.Context, p *Profile) error

// Profile holds the state of a profiling run.
type Profile struct {
	// InitFuncs are run once by Init to prepare the inputs.
	InitFuncs []Stage

	// RunFuncs are run once by Run to compute the profile.
	RunFuncs []Stage

	// CleanupFuncs are run once by Cleanup, for example to
	// write out the results.
	CleanupFuncs []Stage

	cfg    Config
	engine Engine

	whiskers   []*Whisker
	whiskerIDs map[int]*Whisker
	references []*ReferenceFeature

	intersections []*IntersectionPoint
	candidates    []*CandidatePoint
	unresolved    []*CandidatePoint

	// measured holds one group of measurements per whisker,
	// in whisker order.
	measured [][]Measurement
	ranked   []Measurement

	results []*ProfiledPoint
}

// New prepares a profile of references along whiskers. The standard
// stages are each wrapped with Logged using cfg.Log; any extra stages
// are appended to CleanupFuncs and run after the profile is assembled.
func New(cfg Config, engine Engine, whiskers []*Whisker, references []*ReferenceFeature, extra ...Stage) (*Profile, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, &GenericRuntimeError{Stage: "new", Err: errMissingEngine}
	}
	ws := make([]*Whisker, len(whiskers))
	copy(ws, whiskers)
	sort.SliceStable(ws, func(i, j int) bool { return ws[i].ID < ws[j].ID })

	log := cfg.Log
	p := &Profile{
		cfg:        cfg,
		engine:     engine,
		whiskers:   ws,
		references: references,
		InitFuncs: []Stage{
			Logged("index", log, IndexWhiskers()),
		},
		RunFuncs: []Stage{
			Logged("intersect", log, Intersect()),
			Logged("reduce", log, Reduce()),
			Logged("snap", log, Snap()),
			Logged("locate", log, Locate()),
			Logged("measure", log, Measure()),
			Logged("rank", log, Rank()),
			Logged("assemble", log, Assemble()),
		},
	}
	for i, s := range extra {
		p.CleanupFuncs = append(p.CleanupFuncs, Logged(stageName("cleanup", i), log, s))
	}
	return p, nil
}

// Init runs the initialization stages.
func (p *Profile) Init(ctx context.Context) error { return p.runStages(ctx, p.InitFuncs) }

// Run runs the profiling stages.
func (p *Profile) Run(ctx context.Context) error { return p.runStages(ctx, p.RunFuncs) }

// Cleanup runs the cleanup stages.
func (p *Profile) Cleanup(ctx context.Context) error { return p.runStages(ctx, p.CleanupFuncs) }

// Execute runs Init, Run, and Cleanup in order, stopping at the
// first error.
func (p *Profile) Execute(ctx context.Context) error {
	for _, f := range []func(context.Context) error{p.Init, p.Run, p.Cleanup} {
		if err := f(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Profile) runStages(ctx context.Context, stages []Stage) error {
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Whiskers returns the whiskers being profiled, sorted by ID.
func (p *Profile) Whiskers() []*Whisker { return p.whiskers }

// Candidates returns the candidate points created by the Reduce stage.
func (p *Profile) Candidates() []*CandidatePoint { return p.candidates }

// Results returns the profiled points, ordered by whisker ID and rank.
// Points kept without a whisker association come last, ordered by ID.
// Results is empty until the Assemble stage has run.
func (p *Profile) Results() []*ProfiledPoint { return p.results }

// Config returns the configuration the profile was created with.
func (p *Profile) Config() Config { return p.cfg }

// fields describes the size of the profile state, for log messages.
func (p *Profile) fields() logrus.Fields {
	return logrus.Fields{
		"whiskers":      len(p.whiskers),
		"references":    len(p.references),
		"intersections": len(p.intersections),
		"candidates":    len(p.candidates),
		"ranked":        len(p.ranked),
	}
}

// whiskerCurves returns the whisker geometries keyed by ID.
func (p *Profile) whiskerCurves() map[int]geom.MultiLineString {
	o := make(map[int]geom.MultiLineString, len(p.whiskers))
	for _, w := range p.whiskers {
		o[w.ID] = w.Geom
	}
	return o
}
