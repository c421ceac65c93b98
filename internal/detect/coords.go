package detect

import "sort"

// Interval is a 1-based inclusive base range on the reference sequence.
type Interval struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Span returns the number of bases the interval covers.
func (iv Interval) Span() int64 {
	return iv.End - iv.Start + 1
}

// mapBlocks projects node-space blocks onto reference base coordinates
// and canonicalizes the result for one query. Intervals under MinSpan are
// dropped after merging.
func mapBlocks(blocks []Block, idx *RefIndex, opts Options) []Interval {
	ivs := make([]Interval, 0, len(blocks))
	for _, b := range blocks {
		ivs = append(ivs, Interval{Start: idx.Start(b.PLo), End: idx.End(b.PHi)})
	}
	ivs = canonicalize(ivs)
	if opts.MinSpan > 0 {
		kept := ivs[:0]
		for _, iv := range ivs {
			if iv.Span() >= int64(opts.MinSpan) {
				kept = append(kept, iv)
			}
		}
		ivs = kept
	}
	return ivs
}

// canonicalize sorts intervals by start, then end, and merges overlapping
// ones. Adjacent intervals stay separate: blocks that merely touch are
// distinct events.
func canonicalize(ivs []Interval) []Interval {
	if len(ivs) < 2 {
		return ivs
	}
	sort.Slice(ivs, func(a, b int) bool {
		if ivs[a].Start != ivs[b].Start {
			return ivs[a].Start < ivs[b].Start
		}
		return ivs[a].End < ivs[b].End
	})
	out := ivs[:1]
	for _, iv := range ivs[1:] {
		last := &out[len(out)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}
