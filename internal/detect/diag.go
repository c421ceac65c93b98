package detect

import (
	"errors"
	"fmt"
)

// ErrInvalidReference is returned when the reference path cannot be
// resolved or carries no analyzable nodes. It aborts the whole run;
// everything else the pipeline encounters is demoted to a Diagnostic.
var ErrInvalidReference = errors.New("invalid reference")

// DiagnosticKind classifies a recovered per-query condition.
type DiagnosticKind string

const (
	// DiagUnanalyzableQuery marks a query sharing fewer than two
	// reference-unique nodes; it gets no calls but does not stop the run.
	DiagUnanalyzableQuery DiagnosticKind = "unanalyzable-query"

	// DiagAbandonedBlock marks a candidate window that exceeded the hard
	// maximum run length and was dropped unsearched.
	DiagAbandonedBlock DiagnosticKind = "abandoned-block"
)

// Diagnostic is a recovered warning surfaced alongside the result table.
type Diagnostic struct {
	Kind   DiagnosticKind `json:"kind"`
	Path   string         `json:"path"`
	Detail string         `json:"detail"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Path, d.Kind, d.Detail)
}
