// Package analysis orchestrates full detection runs for the CLI and
// for watch mode.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/pangraphs/invfind/internal/detect"
	"github.com/pangraphs/invfind/internal/gfa"
	"github.com/pangraphs/invfind/internal/graph"
	"github.com/pangraphs/invfind/internal/storage"
)

// ProgressFunc is called with phase name and progress (0.0-1.0).
type ProgressFunc func(phase string, progress float64)

// Request describes one full detection run.
type Request struct {
	// GFA is the graph file to analyze.
	GFA string

	// Reference is the reference path name or PanSN assembly prefix.
	Reference string

	// Options are the detection tunables.
	Options detect.Options

	// Store receives the finished run. Nil skips persistence.
	Store storage.Store

	// Progress, when set, is called around each phase.
	Progress ProgressFunc
}

// Result bundles everything one run produced.
type Result struct {
	Graph *graph.Graph
	Set   *detect.ResultSet
	Meta  storage.RunMeta
}

// Run parses the graph, calls inversions against the reference and,
// when the request carries a store, persists the finished run.
func Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()

	report(req.Progress, "Parsing graph", 0.0)
	g, err := gfa.ParseFile(req.GFA)
	if err != nil {
		return nil, err
	}
	report(req.Progress, "Parsing graph", 1.0)

	report(req.Progress, "Detecting inversions", 0.0)
	rs, err := detect.Run(ctx, g, req.Reference, req.Options)
	if err != nil {
		return nil, err
	}
	report(req.Progress, "Detecting inversions", 1.0)

	res := &Result{
		Graph: g,
		Set:   rs,
		Meta: storage.RunMeta{
			GFA:       req.GFA,
			Reference: rs.Reference,
			Queries:   rs.Queries,
			Options:   req.Options,
			Stats:     g.Stats(),
			Rows:      len(rs.Rows),
			CreatedAt: time.Now().UTC(),
			ElapsedMS: time.Since(started).Milliseconds(),
		},
	}

	if req.Store != nil {
		report(req.Progress, "Storing results", 0.0)
		if err := req.Store.SaveRun(ctx, res.Meta, rs); err != nil {
			return nil, fmt.Errorf("storing run: %w", err)
		}
		report(req.Progress, "Storing results", 1.0)
	}

	return res, nil
}

func report(progress ProgressFunc, phase string, fraction float64) {
	if progress != nil {
		progress(phase, fraction)
	}
}
