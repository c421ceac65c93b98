package detect

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/pangraphs/invfind/internal/graph"
)

// QueryResult carries one query's resolved intervals and the evidence
// behind them.
type QueryResult struct {
	// Path is the query path name.
	Path string `json:"path"`

	// Shared is the number of permutation entries the query contributed,
	// i.e. its steps on reference-unique nodes.
	Shared int `json:"shared"`

	// Intervals are the query's inversion calls in reference
	// coordinates, sorted and non-overlapping.
	Intervals []Interval `json:"intervals"`

	// Blocks are the node-space blocks the intervals were mapped from.
	Blocks []Block `json:"blocks,omitempty"`
}

// ResultSet is the complete outcome of one detection run.
type ResultSet struct {
	Reference   string        `json:"reference"`
	Queries     []string      `json:"queries"`
	Rows        []Row         `json:"rows"`
	PerQuery    []QueryResult `json:"per_query"`
	Diagnostics []Diagnostic  `json:"diagnostics,omitempty"`
}

// Run executes the full detection pipeline: resolve the reference, index
// it, derive and scan every query's signed permutation in parallel, map
// blocks to reference coordinates and merge all queries into one row
// partition.
//
// The graph and the reference index are read-only after construction, so
// query pipelines share them without locking. Query order, and with it
// the column order of the rows, follows the graph's path order. Only a
// bad reference is fatal; per-query conditions become Diagnostics.
func Run(ctx context.Context, g *graph.Graph, reference string, opts Options) (*ResultSet, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("detect options: %w", err)
	}

	ref, err := g.Resolve(reference)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReference, err)
	}
	idx, err := BuildRefIndex(g, ref)
	if err != nil {
		return nil, err
	}

	queries := g.QueryPaths(ref, opts.Exclude)
	results := make([]QueryResult, len(queries))
	diags := make([][]Diagnostic, len(queries))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.workerCount())
	for i, q := range queries {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i], diags[i] = analyzeQuery(idx, q, opts)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	rs := &ResultSet{
		Reference: ref.Name,
		Queries:   make([]string, len(queries)),
		PerQuery:  results,
	}
	perQuery := make([][]Interval, len(queries))
	for i, q := range queries {
		rs.Queries[i] = q.Name
		rs.Diagnostics = append(rs.Diagnostics, diags[i]...)
		perQuery[i] = results[i].Intervals
	}
	rs.Rows = mergeCalls(perQuery, opts)
	return rs, nil
}

// analyzeQuery runs the per-query pipeline: permutation, block scan,
// coordinate mapping.
func analyzeQuery(idx *RefIndex, q *graph.Path, opts Options) (QueryResult, []Diagnostic) {
	res := QueryResult{Path: q.Name}

	perm := BuildPermutation(idx, q)
	res.Shared = len(perm)
	if len(perm) < 2 {
		return res, []Diagnostic{{
			Kind:   DiagUnanalyzableQuery,
			Path:   q.Name,
			Detail: fmt.Sprintf("only %d of %d steps shared with %s", len(perm), len(q.Steps), idx.Reference().Name),
		}}
	}

	blocks, abandoned := detectBlocks(perm, idx, opts)
	sort.Slice(blocks, func(a, b int) bool {
		if blocks[a].PLo != blocks[b].PLo {
			return blocks[a].PLo < blocks[b].PLo
		}
		return blocks[a].PHi < blocks[b].PHi
	})
	res.Blocks = blocks
	res.Intervals = mapBlocks(blocks, idx, opts)

	var ds []Diagnostic
	for _, a := range abandoned {
		ds = append(ds, Diagnostic{
			Kind: DiagAbandonedBlock,
			Path: q.Name,
			Detail: fmt.Sprintf("candidate at %d-%d (%d entries over %d reference nodes) exceeds the maximum run length %d",
				idx.Start(a.pLo), idx.End(a.pHi), a.entries, a.span, opts.MaxRunLength),
		})
	}
	return res, ds
}
