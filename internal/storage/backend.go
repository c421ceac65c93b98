// Package storage persists detection runs for invfind.
//
// It defines the Store protocol the CLI and the MCP server read through,
// along with the run metadata shared across implementations. A store
// holds exactly one run; saving a new run replaces the previous one.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pangraphs/invfind/internal/detect"
	"github.com/pangraphs/invfind/internal/graph"
)

// ErrNoRun is returned when a store is opened on a directory that has
// never had a run saved into it.
var ErrNoRun = errors.New("no stored run")

// ErrUnknownQuery is returned when a stored run has no record for the
// requested query path.
var ErrUnknownQuery = errors.New("unknown query path")

// RunMeta describes one stored detection run.
type RunMeta struct {
	// GFA is the graph file the run was computed from.
	GFA string `json:"gfa"`

	// Reference is the resolved reference path name.
	Reference string `json:"reference"`

	// Queries lists the analyzed query paths in call-column order.
	Queries []string `json:"queries"`

	// Options are the detection tunables the run used.
	Options detect.Options `json:"options"`

	// Stats summarizes the parsed graph.
	Stats graph.Stats `json:"stats"`

	// Rows is the number of output rows stored.
	Rows int `json:"rows"`

	// CreatedAt is when the run finished.
	CreatedAt time.Time `json:"created_at"`

	// ElapsedMS is the wall-clock duration of the run in milliseconds.
	ElapsedMS int64 `json:"elapsed_ms"`
}

// Store defines the persistence interface for detection runs.
//
// Implementations must be safe for concurrent readers.
type Store interface {
	// Initialize opens or creates the store at the given path. If
	// readOnly is true the store rejects writes and may be opened while
	// another process holds it read-only too.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the store.
	Close() error

	// SaveRun replaces the store contents with one run.
	SaveRun(ctx context.Context, meta RunMeta, rs *detect.ResultSet) error

	// Meta returns the stored run description, or ErrNoRun.
	Meta(ctx context.Context) (RunMeta, error)

	// RowRange returns stored output rows whose segments intersect
	// [start, end], in coordinate order. end <= 0 means unbounded.
	RowRange(ctx context.Context, start, end int64) ([]detect.Row, error)

	// Queries returns the stored per-query results in call-column order.
	Queries(ctx context.Context) ([]detect.QueryResult, error)

	// Query returns one query's stored result by path name, or
	// ErrUnknownQuery.
	Query(ctx context.Context, path string) (*detect.QueryResult, error)

	// Diagnostics returns stored diagnostics in emission order.
	Diagnostics(ctx context.Context) ([]detect.Diagnostic, error)
}
