package detect

import (
	"fmt"

	"github.com/pangraphs/invfind/internal/graph"
)

// refEntry is the per-node record of the reference index. A node is
// usable for correspondence only while count stays at one; repeats break
// the one-to-one mapping the permutation view relies on.
type refEntry struct {
	pos     int32
	reverse bool
	count   uint8
}

// RefIndex maps node handles to their unique position and orientation on
// the reference path, and carries the cumulative base offsets needed to
// express positions as 1-based reference coordinates.
//
// Built once per run and read-only afterwards, so query pipelines share
// it without locking.
type RefIndex struct {
	ref     *graph.Path
	entries []refEntry // by node handle
	lenAt   []int32    // node length by reference position
	prefix  []int64    // cumulative bases before each position; len(steps)+1
	shared  int        // nodes with exactly one reference occurrence
}

// BuildRefIndex walks the reference path once, recording position and
// orientation per node and counting occurrences. Nodes seen more than
// once are disqualified after the walk. A reference with no usable node
// at all cannot anchor any query and fails with ErrInvalidReference.
func BuildRefIndex(g *graph.Graph, ref *graph.Path) (*RefIndex, error) {
	idx := &RefIndex{
		ref:     ref,
		entries: make([]refEntry, g.NumNodes()),
		lenAt:   make([]int32, len(ref.Steps)),
		prefix:  make([]int64, len(ref.Steps)+1),
	}

	for i, st := range ref.Steps {
		length := g.Node(st.Node).Length
		idx.lenAt[i] = int32(length)
		idx.prefix[i+1] = idx.prefix[i] + int64(length)

		e := &idx.entries[st.Node]
		if e.count < 2 {
			e.count++
		}
		e.pos = int32(i)
		e.reverse = st.Reverse
	}

	for i := range idx.entries {
		if idx.entries[i].count == 1 {
			idx.shared++
		}
	}
	if idx.shared == 0 {
		return nil, fmt.Errorf("%w: path %q has no uniquely placed nodes", ErrInvalidReference, ref.Name)
	}
	return idx, nil
}

// Lookup returns the reference position and orientation for a node, or
// ok=false when the node is absent from the reference or repeated on it.
func (x *RefIndex) Lookup(node int32) (pos int32, reverse bool, ok bool) {
	e := x.entries[node]
	if e.count != 1 {
		return 0, false, false
	}
	return e.pos, e.reverse, true
}

// Start returns the 1-based coordinate of the first base of the node at
// the given reference position.
func (x *RefIndex) Start(pos int32) int64 {
	return x.prefix[pos] + 1
}

// End returns the 1-based coordinate of the last base of the node at the
// given reference position.
func (x *RefIndex) End(pos int32) int64 {
	return x.prefix[pos+1]
}

// Shared returns the number of reference nodes eligible for
// correspondence.
func (x *RefIndex) Shared() int {
	return x.shared
}

// Len returns the number of steps on the reference path.
func (x *RefIndex) Len() int {
	return len(x.lenAt)
}

// Reference returns the indexed path.
func (x *RefIndex) Reference() *graph.Path {
	return x.ref
}
