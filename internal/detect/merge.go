package detect

import "sort"

// Row is one segment of the merged partition: a reference base range and
// one binary inversion call per query, in query order.
type Row struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
	Calls []int `json:"calls"`
}

// mergeCalls builds the shared partition across all queries and resolves
// per-segment calls. Partition boundaries are the union of every query's
// interval endpoints, so rows stay comparable even when assemblies
// disagree slightly about where an inversion starts. A query is called
// inverted on a segment when its intervals cover at least OverlapFraction
// of it; segments no query flags are dropped.
func mergeCalls(perQuery [][]Interval, opts Options) []Row {
	var bounds []int64
	for _, ivs := range perQuery {
		for _, iv := range ivs {
			bounds = append(bounds, iv.Start, iv.End+1)
		}
	}
	if len(bounds) == 0 {
		return nil
	}
	sort.Slice(bounds, func(a, b int) bool { return bounds[a] < bounds[b] })
	bounds = dedupSorted(bounds)

	var rows []Row
	cursors := make([]int, len(perQuery))
	for k := 0; k+1 < len(bounds); k++ {
		seg := Interval{Start: bounds[k], End: bounds[k+1] - 1}
		calls := make([]int, len(perQuery))
		flagged := false
		for q, ivs := range perQuery {
			covered := coveredBases(ivs, &cursors[q], seg)
			if float64(covered) >= opts.OverlapFraction*float64(seg.Span()) {
				calls[q] = 1
				flagged = true
			}
		}
		if flagged {
			rows = append(rows, Row{Start: seg.Start, End: seg.End, Calls: calls})
		}
	}
	return rows
}

// coveredBases sums how many bases of seg the query's intervals cover.
// Intervals are sorted and disjoint and segments arrive in order, so one
// cursor per query keeps the whole merge linear.
func coveredBases(ivs []Interval, cursor *int, seg Interval) int64 {
	for *cursor < len(ivs) && ivs[*cursor].End < seg.Start {
		*cursor++
	}
	var covered int64
	for i := *cursor; i < len(ivs) && ivs[i].Start <= seg.End; i++ {
		lo, hi := ivs[i].Start, ivs[i].End
		if lo < seg.Start {
			lo = seg.Start
		}
		if hi > seg.End {
			hi = seg.End
		}
		covered += hi - lo + 1
	}
	return covered
}

func dedupSorted(xs []int64) []int64 {
	out := xs[:1]
	for _, x := range xs[1:] {
		if x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}
