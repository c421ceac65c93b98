package detect

// Block is a resolved reversed run in node space: the inclusive range of
// reference positions it spans, plus the evidence backing it.
type Block struct {
	// PLo, PHi are the inclusive reference position bounds of the block.
	PLo int32 `json:"p_lo"`
	PHi int32 `json:"p_hi"`

	// Entries is the number of permutation entries matched in the block.
	Entries int `json:"entries"`

	// Bases is the total reference length of the matched nodes.
	Bases int64 `json:"bases"`
}

// run is a greedy maximal reversed run found by the scan. start and end
// are permutation indexes; end is the last accepted entry.
type run struct {
	start, end int
}

// window is a stretch of permutation entries refined as one unit.
type window struct {
	start, end int
}

// abandonedWindow reports a candidate dropped for exceeding the hard
// maximum run length.
type abandonedWindow struct {
	entries  int
	span     int
	pLo, pHi int32
}

// detectBlocks finds the blocks of one query permutation. Windows above
// the hard maximum run length are returned separately; the rest of the
// query is still searched.
func detectBlocks(perm []Entry, idx *RefIndex, opts Options) ([]Block, []abandonedWindow) {
	runs := scanRuns(perm, opts)
	wins := mergeWindows(perm, runs, opts)

	var blocks []Block
	var abandoned []abandonedWindow
	for _, w := range wins {
		entries := perm[w.start : w.end+1]
		pLo, pHi, negs := windowBounds(entries)
		if negs < 2 {
			continue
		}
		span := int(pHi-pLo) + 1
		if len(entries) > opts.MaxRunLength || span > opts.MaxRunLength {
			abandoned = append(abandoned, abandonedWindow{
				entries: len(entries),
				span:    span,
				pLo:     pLo,
				pHi:     pHi,
			})
			continue
		}
		blocks = append(blocks, refineWindow(entries, idx, opts)...)
	}
	return blocks, abandoned
}

// scanRuns is the linear watermark scan over a permutation. A run opens
// at a usable flipped entry and accepts subsequent entries while their
// positions strictly decrease. Non-conforming entries are tolerated as
// gaps, at most GapTolerance in a row: a co-oriented entry at any
// position, or a flipped entry whose positional break stays within
// PositionSlack. A larger break, a conflict entry, or an exhausted gap
// budget closes the run.
func scanRuns(perm []Entry, opts Options) []run {
	var runs []run
	for i := 0; i < len(perm); {
		if perm[i].Sign >= 0 || perm[i].Conflict {
			i++
			continue
		}
		r, next := scanOneRun(perm, i, opts)
		runs = append(runs, r)
		i = next
	}
	return runs
}

// scanOneRun extends the run anchored at perm[anchor] and returns it with
// the index scanning resumes from.
func scanOneRun(perm []Entry, anchor int, opts Options) (run, int) {
	last := anchor
	watermark := perm[anchor].Pos
	gapRun := 0

	i := anchor + 1
	for i < len(perm) {
		e := perm[i]
		if e.Conflict {
			// A conflicted node bounds the run and cannot anchor the
			// next one.
			return run{anchor, last}, i + 1
		}
		if e.Sign < 0 {
			if e.Pos < watermark {
				last = i
				watermark = e.Pos
				gapRun = 0
				i++
				continue
			}
			if int(e.Pos-watermark)+1 > opts.PositionSlack {
				// Beyond jitter: a hard boundary. The entry may anchor
				// the next run.
				return run{anchor, last}, i
			}
		}
		gapRun++
		if gapRun > opts.GapTolerance {
			return run{anchor, last}, i
		}
		i++
	}
	return run{anchor, last}, i
}

// mergeWindows fuses runs separated by at most GapTolerance entries into
// one refinement window, provided no conflict entry sits between them.
// The greedy scan splits eagerly on positional breaks; refining the fused
// window recovers the globally best boundaries across the split.
func mergeWindows(perm []Entry, runs []run, opts Options) []window {
	var wins []window
	for _, r := range runs {
		if len(wins) > 0 {
			w := &wins[len(wins)-1]
			if r.start-w.end-1 <= opts.GapTolerance && !conflictBetween(perm, w.end, r.start) {
				w.end = r.end
				continue
			}
		}
		wins = append(wins, window{r.start, r.end})
	}
	return wins
}

func conflictBetween(perm []Entry, lo, hi int) bool {
	for i := lo + 1; i < hi; i++ {
		if perm[i].Conflict {
			return true
		}
	}
	return false
}

// windowBounds returns the reference position range covered by usable
// (flipped, non-conflict) entries, and how many there are.
func windowBounds(entries []Entry) (pLo, pHi int32, negs int) {
	for _, e := range entries {
		if e.Sign >= 0 || e.Conflict {
			continue
		}
		if negs == 0 || e.Pos < pLo {
			pLo = e.Pos
		}
		if negs == 0 || e.Pos > pHi {
			pHi = e.Pos
		}
		negs++
	}
	return pLo, pHi, negs
}

// refineWindow resolves the maximal reversed runs inside one candidate
// window. The best-scoring chain is extracted first; the stretches to its
// left and right are refined recursively, so one window can yield several
// disjoint blocks.
func refineWindow(entries []Entry, idx *RefIndex, opts Options) []Block {
	pLo, pHi, negs := windowBounds(entries)
	if negs < 2 {
		return nil
	}
	span := int(pHi-pLo) + 1

	var (
		aln alignment
		ok  bool
	)
	if len(entries) <= opts.HighMemLimit && span <= opts.HighMemLimit {
		aln, ok = alignExact(entries, pLo, pHi, idx)
	} else {
		aln, ok = alignBounded(entries, pLo, pHi, idx, opts.BoundedDrop)
	}
	if !ok {
		return nil
	}

	var blocks []Block
	if aln.entries >= 2 {
		blocks = append(blocks, Block{PLo: aln.pLo, PHi: aln.pHi, Entries: aln.entries, Bases: aln.bases})
	}
	blocks = append(blocks, refineWindow(entries[:aln.qLo], idx, opts)...)
	blocks = append(blocks, refineWindow(entries[aln.qHi+1:], idx, opts)...)
	return blocks
}

// alignment is the outcome of one boundary search: the touched reference
// position range, the window-relative entry range it consumed, and the
// matched evidence.
type alignment struct {
	pLo, pHi int32
	qLo, qHi int
	entries  int
	bases    int64
}

// Traceback codes shared by both search modes.
const (
	moveStop int8 = iota
	moveDiag
	moveUp
	moveLeft
)

// reversedView returns the window's entries negated and reversed: the
// orientation in which a true inversion reads forward along the
// reference.
func reversedView(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = Entry{Pos: e.Pos, Sign: -e.Sign, Conflict: e.Conflict}
	}
	return out
}

// matchesAt reports whether a reversed-view entry corresponds to the
// reference node at pos.
func matchesAt(e Entry, pos int32) bool {
	return e.Sign > 0 && !e.Conflict && e.Pos == pos
}
