// Package detect implements inversion calling on a pangenome graph.
//
// Given a parsed graph and a designated reference path, it derives a
// signed-permutation view of every query path, scans each permutation for
// maximal reversed runs, resolves run boundaries with an exact or a
// memory-bounded dynamic program, maps the resulting blocks to 1-based
// reference coordinates and merges all queries' intervals into a single
// partition of the reference axis with per-assembly binary calls.
package detect

import (
	"fmt"
	"runtime"
)

// Options hold the detection tunables. Zero values are not usable
// directly; start from DefaultOptions and override.
type Options struct {
	// MaxRunLength is the hard upper bound on a candidate window, in
	// permutation entries and in spanned reference nodes. Windows above
	// it are abandoned with a diagnostic instead of searched.
	MaxRunLength int

	// HighMemLimit selects the boundary search: windows whose entry
	// count and reference span are both at or below the limit use the
	// exact quadratic table, larger windows fall back to the bounded
	// rolling-row search.
	HighMemLimit int

	// BoundedDrop is the off-diagonal band width of the bounded search.
	// Cells further than this from the diagonal restart scoring locally
	// rather than extending a chain.
	BoundedDrop int

	// GapTolerance is the number of consecutive non-conforming
	// permutation entries tolerated inside an open run before it closes.
	GapTolerance int

	// PositionSlack is the largest break of strict position decrease
	// that is still treated as jitter (a tolerated gap) rather than a
	// hard run boundary.
	PositionSlack int

	// OverlapFraction is the fraction of a partition segment that must
	// be covered by a query's intervals for the segment to be called
	// inverted in that query.
	OverlapFraction float64

	// MinSpan drops per-query intervals shorter than this many bases
	// before merging. Zero keeps everything.
	MinSpan int

	// Workers bounds the number of concurrent query pipelines. Zero
	// means one per available CPU.
	Workers int

	// Exclude lists path names or PanSN assembly prefixes to leave out
	// of the query set.
	Exclude []string
}

// DefaultOptions returns the standard tunables.
func DefaultOptions() Options {
	return Options{
		MaxRunLength:    50000,
		HighMemLimit:    5000,
		BoundedDrop:     1000,
		GapTolerance:    3,
		PositionSlack:   2,
		OverlapFraction: 0.5,
	}
}

// Validate rejects option combinations the pipeline cannot honor.
func (o Options) Validate() error {
	if o.MaxRunLength <= 0 {
		return fmt.Errorf("max run length must be positive, got %d", o.MaxRunLength)
	}
	if o.HighMemLimit < 0 {
		return fmt.Errorf("high-memory limit must be non-negative, got %d", o.HighMemLimit)
	}
	if o.BoundedDrop <= 0 {
		return fmt.Errorf("bounded drop must be positive, got %d", o.BoundedDrop)
	}
	if o.GapTolerance < 0 {
		return fmt.Errorf("gap tolerance must be non-negative, got %d", o.GapTolerance)
	}
	if o.PositionSlack < 0 {
		return fmt.Errorf("position slack must be non-negative, got %d", o.PositionSlack)
	}
	if o.OverlapFraction <= 0 || o.OverlapFraction > 1 {
		return fmt.Errorf("overlap fraction must be in (0,1], got %g", o.OverlapFraction)
	}
	if o.MinSpan < 0 {
		return fmt.Errorf("min span must be non-negative, got %d", o.MinSpan)
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", o.Workers)
	}
	return nil
}

// workerCount resolves the effective worker pool size.
func (o Options) workerCount() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}
