package detect

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pangraphs/invfind/internal/graph"
)

// testPath declares a path as comma-separated oriented node names, the
// way a GFA P line spells them: "n1+,n2-,n3+".
type testPath struct {
	name  string
	steps string
}

func buildTestGraph(t *testing.T, nodeLens map[string]int, paths []testPath) *graph.Graph {
	t.Helper()
	g := graph.New()
	names := make([]string, 0, len(nodeLens))
	for name := range nodeLens {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, err := g.AddNode(name, nodeLens[name])
		require.NoError(t, err)
	}
	for _, p := range paths {
		require.NoError(t, g.AddPath(p.name, parseSteps(t, g, p.steps)))
	}
	return g
}

func parseSteps(t *testing.T, g *graph.Graph, spec string) []graph.Step {
	t.Helper()
	if spec == "" {
		return nil
	}
	var steps []graph.Step
	for _, tok := range strings.Split(spec, ",") {
		name, orient := tok[:len(tok)-1], tok[len(tok)-1]
		id, ok := g.NodeID(name)
		require.True(t, ok, "unknown node %q", name)
		steps = append(steps, graph.Step{Node: id, Reverse: orient == '-'})
	}
	return steps
}

func mustID(t *testing.T, g *graph.Graph, name string) int32 {
	t.Helper()
	id, ok := g.NodeID(name)
	require.True(t, ok, "unknown node %q", name)
	return id
}

// refIndexFor builds a graph whose reference walks nodes n1..nK forward
// with the given lengths and returns its index.
func refIndexFor(t *testing.T, lengths ...int) *RefIndex {
	t.Helper()
	g := graph.New()
	steps := make([]graph.Step, 0, len(lengths))
	for i, l := range lengths {
		id, err := g.AddNode(fmt.Sprintf("n%d", i+1), l)
		require.NoError(t, err)
		steps = append(steps, graph.Step{Node: id})
	}
	require.NoError(t, g.AddPath("ref", steps))
	ref, ok := g.Path("ref")
	require.True(t, ok)
	idx, err := BuildRefIndex(g, ref)
	require.NoError(t, err)
	return idx
}

// permOf builds a permutation from signed positions: -7 is position 7
// flipped, 7 is position 7 co-oriented. Position zero can only be
// spelled co-oriented; tests needing a flipped zero use literals.
func permOf(signed ...int) []Entry {
	out := make([]Entry, len(signed))
	for i, s := range signed {
		e := Entry{Pos: int32(s), Sign: 1}
		if s < 0 {
			e.Pos, e.Sign = int32(-s), -1
		}
		out[i] = e
	}
	return out
}
