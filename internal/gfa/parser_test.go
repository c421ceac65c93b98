package gfa

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pangraphs/invfind/internal/graph"
)

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("SegmentsAndPaths", func(t *testing.T) {
		t.Parallel()
		in := strings.Join([]string{
			"H\tVN:Z:1.0",
			"S\t1\tACGT",
			"S\t2\tGG",
			"S\t3\tTTTTT",
			"L\t1\t+\t2\t+\t0M",
			"P\tref#0#chr1\t1+,2+,3+\t*",
			"P\talt#1#chr1\t1+,3-,2-\t*",
		}, "\n")

		g, err := Parse(strings.NewReader(in))
		require.NoError(t, err)

		assert.Equal(t, 3, g.NumNodes())
		id2, ok := g.NodeID("2")
		require.True(t, ok)
		assert.Equal(t, 2, g.Node(id2).Length)

		alt, ok := g.Path("alt#1#chr1")
		require.True(t, ok)
		require.Len(t, alt.Steps, 3)
		assert.False(t, alt.Steps[0].Reverse)
		assert.True(t, alt.Steps[1].Reverse)
		assert.True(t, alt.Steps[2].Reverse)
	})

	t.Run("StarSequenceUsesLNTag", func(t *testing.T) {
		t.Parallel()
		g, err := Parse(strings.NewReader("S\ts1\t*\tLN:i:512\tSN:Z:chr1"))
		require.NoError(t, err)

		id, ok := g.NodeID("s1")
		require.True(t, ok)
		assert.Equal(t, 512, g.Node(id).Length)
	})

	t.Run("StarSequenceWithoutLNFails", func(t *testing.T) {
		t.Parallel()
		_, err := Parse(strings.NewReader("S\ts1\t*"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no LN tag")
		assert.Contains(t, err.Error(), "line 1")
	})

	t.Run("DuplicateSegmentFails", func(t *testing.T) {
		t.Parallel()
		_, err := Parse(strings.NewReader("S\ts1\tAC\nS\ts1\tGT"))
		require.Error(t, err)
		assert.ErrorIs(t, err, graph.ErrDuplicateNode)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("PathBeforeSegmentResolves", func(t *testing.T) {
		t.Parallel()
		in := "P\tp1\t9+\t*\nS\t9\tACGTA"

		g, err := Parse(strings.NewReader(in))
		require.NoError(t, err)

		p, ok := g.Path("p1")
		require.True(t, ok)
		require.Len(t, p.Steps, 1)
		assert.Equal(t, 5, g.Node(p.Steps[0].Node).Length)
	})

	t.Run("UnknownSegmentInPathFails", func(t *testing.T) {
		t.Parallel()
		_, err := Parse(strings.NewReader("S\t1\tAC\nP\tp1\t1+,2-\t*"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown segment "2"`)
	})

	t.Run("MalformedStepFails", func(t *testing.T) {
		t.Parallel()
		_, err := Parse(strings.NewReader("S\t1\tAC\nP\tp1\t1x\t*"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed step")
	})

	t.Run("WalkLine", func(t *testing.T) {
		t.Parallel()
		in := strings.Join([]string{
			"S\ta\tAAAA",
			"S\tb\tCC",
			"W\tHG002\t1\tchr1\t0\t6\t>a<b",
		}, "\n")

		g, err := Parse(strings.NewReader(in))
		require.NoError(t, err)

		p, ok := g.Path("HG002#1#chr1")
		require.True(t, ok)
		require.Len(t, p.Steps, 2)
		assert.False(t, p.Steps[0].Reverse)
		assert.True(t, p.Steps[1].Reverse)
	})

	t.Run("MalformedWalkFails", func(t *testing.T) {
		t.Parallel()
		_, err := Parse(strings.NewReader("S\ta\tAC\nW\tHG002\t1\tchr1\t0\t2\ta>b"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed walk")
	})

	t.Run("EmptyPathAllowed", func(t *testing.T) {
		t.Parallel()
		g, err := Parse(strings.NewReader("S\t1\tAC\nP\tempty\t*\t*"))
		require.NoError(t, err)

		p, ok := g.Path("empty")
		require.True(t, ok)
		assert.Empty(t, p.Steps)
	})

	t.Run("CommentsAndBlanksSkipped", func(t *testing.T) {
		t.Parallel()
		in := "# produced by pggb\n\nS\t1\tAC\n"

		g, err := Parse(strings.NewReader(in))
		require.NoError(t, err)
		assert.Equal(t, 1, g.NumNodes())
	})
}

func TestParseFile(t *testing.T) {
	t.Parallel()

	t.Run("ReadsFromDisk", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "tiny.gfa")
		content := "S\t1\tACGT\nP\tref\t1+\t*\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		g, err := ParseFile(path)
		require.NoError(t, err)
		assert.Equal(t, 1, g.NumNodes())
		assert.Len(t, g.Paths(), 1)
	})

	t.Run("MissingFile", func(t *testing.T) {
		t.Parallel()
		_, err := ParseFile(filepath.Join(t.TempDir(), "nope.gfa"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "opening GFA")
	})
}
