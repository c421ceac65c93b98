package detect

import "github.com/pangraphs/invfind/internal/graph"

// Entry is one element of a query's signed permutation: the reference
// position of a shared node in query-traversal order, with sign +1 when
// the query crosses it in the reference orientation and -1 when flipped.
type Entry struct {
	Pos  int32
	Sign int8

	// Conflict marks a node the query also traverses co-oriented with
	// the reference elsewhere. Such a node proves nothing about local
	// order, so it never matches during boundary refinement and never
	// anchors a run.
	Conflict bool
}

// BuildPermutation derives the signed permutation of one query path.
// Steps whose node is absent from the reference index, or repeated on the
// reference, are dropped; they neither start nor end a run.
//
// A second pass marks conflict entries: positions the query visits with
// both signs. The flipped visit of such a node cannot be trusted as
// inversion evidence when a co-oriented visit of the same node exists on
// the same query.
func BuildPermutation(idx *RefIndex, q *graph.Path) []Entry {
	perm := make([]Entry, 0, len(q.Steps))
	for _, st := range q.Steps {
		pos, refRev, ok := idx.Lookup(st.Node)
		if !ok {
			continue
		}
		sign := int8(1)
		if st.Reverse != refRev {
			sign = -1
		}
		perm = append(perm, Entry{Pos: pos, Sign: sign})
	}

	if len(perm) < 2 {
		return perm
	}
	markConflicts(perm)
	return perm
}

// markConflicts flags entries whose reference position occurs in the
// permutation with both signs.
func markConflicts(perm []Entry) {
	signsSeen := make(map[int32]uint8, len(perm))
	for _, e := range perm {
		signsSeen[e.Pos] |= signBit(e.Sign)
	}
	for i := range perm {
		if signsSeen[perm[i].Pos] == bothSigns {
			perm[i].Conflict = true
		}
	}
}

const bothSigns = 0b11

func signBit(sign int8) uint8 {
	if sign > 0 {
		return 0b01
	}
	return 0b10
}
