// Package graph provides the in-memory pangenome graph for invfind.
//
// A Graph is built once by the parser and then treated as read-only: the
// detection pipeline shares it across worker goroutines without locking.
// Mutating methods must not be called after construction completes.
package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPathNotFound is returned by Resolve when no path matches the
	// requested name or assembly prefix.
	ErrPathNotFound = errors.New("path not found")

	// ErrAmbiguousPath is returned by Resolve when an assembly prefix
	// selects more than one path.
	ErrAmbiguousPath = errors.New("ambiguous path selector")

	// ErrDuplicateNode is returned by AddNode for a repeated segment name.
	ErrDuplicateNode = errors.New("duplicate segment name")

	// ErrDuplicatePath is returned by AddPath for a repeated path name.
	ErrDuplicatePath = errors.New("duplicate path name")
)

// Graph is the arena of nodes and paths parsed from one GFA file.
//
// Nodes are addressed by dense int32 handles assigned in insertion order;
// the ids map translates segment names to handles during parsing and for
// name-based lookups afterwards.
type Graph struct {
	nodes []Node
	ids   map[string]int32

	paths   []Path
	pathIdx map[string]int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		ids:     make(map[string]int32),
		pathIdx: make(map[string]int),
	}
}

// AddNode registers a segment and returns its handle.
func (g *Graph) AddNode(name string, length int) (int32, error) {
	if _, ok := g.ids[name]; ok {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateNode, name)
	}
	id := int32(len(g.nodes))
	g.nodes = append(g.nodes, Node{Name: name, Length: length})
	g.ids[name] = id
	return id, nil
}

// AddPath registers a traversal. Steps must reference handles already
// returned by AddNode.
func (g *Graph) AddPath(name string, steps []Step) error {
	if _, ok := g.pathIdx[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicatePath, name)
	}
	g.pathIdx[name] = len(g.paths)
	g.paths = append(g.paths, Path{Name: name, Steps: steps})
	return nil
}

// NodeID returns the handle for a segment name.
func (g *Graph) NodeID(name string) (int32, bool) {
	id, ok := g.ids[name]
	return id, ok
}

// Node returns the node for a handle. The handle must be valid.
func (g *Graph) Node(id int32) Node {
	return g.nodes[id]
}

// NumNodes returns the number of segments.
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// Paths returns all paths in file order. Callers must not mutate the
// returned slice or its elements.
func (g *Graph) Paths() []Path {
	return g.paths
}

// Path returns the path with the exact given name.
func (g *Graph) Path(name string) (*Path, bool) {
	i, ok := g.pathIdx[name]
	if !ok {
		return nil, false
	}
	return &g.paths[i], true
}

// Resolve selects one path by exact name, or failing that by unique PanSN
// assembly prefix. An assembly prefix matching several paths (for example
// two haplotypes of the same sample) is an error listing the candidates,
// so the caller can name one precisely.
func (g *Graph) Resolve(name string) (*Path, error) {
	if p, ok := g.Path(name); ok {
		return p, nil
	}

	var hits []*Path
	for i := range g.paths {
		if g.paths[i].Assembly() == name {
			hits = append(hits, &g.paths[i])
		}
	}
	switch len(hits) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrPathNotFound, name)
	case 1:
		return hits[0], nil
	default:
		names := make([]string, len(hits))
		for i, p := range hits {
			names[i] = p.Name
		}
		return nil, fmt.Errorf("%w: %q matches %s", ErrAmbiguousPath, name, strings.Join(names, ", "))
	}
}

// QueryPaths returns, in file order, every path except ref and those
// matched by an exclusion token (exact name or assembly prefix).
func (g *Graph) QueryPaths(ref *Path, exclude []string) []*Path {
	var out []*Path
	for i := range g.paths {
		p := &g.paths[i]
		if p.Name == ref.Name {
			continue
		}
		excluded := false
		for _, tok := range exclude {
			if p.Matches(tok) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, p)
		}
	}
	return out
}

// Stats summarizes graph size.
type Stats struct {
	Nodes int   `json:"nodes"`
	Paths int   `json:"paths"`
	Steps int   `json:"steps"`
	Bases int64 `json:"bases"`
}

// Stats returns node, path, step and base counts.
func (g *Graph) Stats() Stats {
	s := Stats{Nodes: len(g.nodes), Paths: len(g.paths)}
	for i := range g.paths {
		s.Steps += len(g.paths[i].Steps)
	}
	for i := range g.nodes {
		s.Bases += int64(g.nodes[i].Length)
	}
	return s
}
