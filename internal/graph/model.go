// Package graph provides the in-memory pangenome graph model for invfind.
//
// It defines the node and path types produced by the GFA parser: nodes are
// shared sequence segments, paths are signed traversals of those segments,
// one per assembly or haplotype. The model is an arena keyed by dense
// integer handles so that analysis code never touches segment names on the
// hot path.
package graph

import "strings"

// Node is a sequence segment shared between assemblies. Length is the
// segment length in bases; the sequence itself is never stored.
type Node struct {
	// Name is the segment identifier from the GFA S line.
	Name string

	// Length is the segment length in bases.
	Length int
}

// Step is one element of a path traversal: a node handle plus the
// orientation in which the path crosses it.
type Step struct {
	// Node is the dense handle of the visited node.
	Node int32

	// Reverse is true when the path traverses the node on the reverse strand.
	Reverse bool
}

// Path is one assembly's ordered, signed traversal of nodes.
type Path struct {
	// Name is the path name from the GFA P or W line, typically in PanSN
	// form: assembly#haplotype#contig.
	Name string

	// Steps is the traversal in order. Immutable after construction.
	Steps []Step
}

// Assembly returns the PanSN assembly component of the path name (the part
// before the first '#'), or the full name when it carries no separator.
func (p *Path) Assembly() string {
	if i := strings.IndexByte(p.Name, '#'); i >= 0 {
		return p.Name[:i]
	}
	return p.Name
}

// Matches reports whether token selects this path, either by exact name or
// by PanSN assembly component. Used for reference resolution and for
// exclusion lists.
func (p *Path) Matches(token string) bool {
	return p.Name == token || p.Assembly() == token
}
