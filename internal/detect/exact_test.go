package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignExact(t *testing.T) {
	t.Parallel()

	t.Run("ResolvesFullChain", func(t *testing.T) {
		idx := refIndexFor(t, 1, 1, 1, 1, 1)
		entries := permOf(-3, -2, -1)

		aln, ok := alignExact(entries, 1, 3, idx)

		require.True(t, ok)
		assert.Equal(t, int32(1), aln.pLo)
		assert.Equal(t, int32(3), aln.pHi)
		assert.Equal(t, 3, aln.entries)
		assert.Equal(t, int64(3), aln.bases)
		assert.Equal(t, 0, aln.qLo)
		assert.Equal(t, 2, aln.qHi)
	})

	t.Run("WeighsChainsByBases", func(t *testing.T) {
		// Two incompatible chains in one window: two long nodes beat
		// three short ones.
		idx := refIndexFor(t, 1, 1, 1, 1, 1, 10, 10)
		entries := permOf(-2, -1, -6, -5)

		aln, ok := alignExact(entries, 1, 6, idx)

		require.True(t, ok)
		assert.Equal(t, int32(5), aln.pLo)
		assert.Equal(t, int32(6), aln.pHi)
		assert.Equal(t, 2, aln.entries)
		assert.Equal(t, int64(20), aln.bases)
		assert.Equal(t, 2, aln.qLo)
		assert.Equal(t, 3, aln.qHi)
	})

	t.Run("BridgesAffordableGap", func(t *testing.T) {
		idx := refIndexFor(t, 1, 1, 1, 1, 1, 1)
		entries := permOf(-4, -3, 2, -1)

		aln, ok := alignExact(entries, 1, 4, idx)

		require.True(t, ok)
		assert.Equal(t, int32(1), aln.pLo)
		assert.Equal(t, int32(4), aln.pHi)
		assert.Equal(t, 3, aln.entries, "the co-oriented gap entry is not evidence")
		assert.Equal(t, int64(3), aln.bases)
	})

	t.Run("NoMatchesNoAlignment", func(t *testing.T) {
		idx := refIndexFor(t, 1, 1, 1, 1)
		// All flipped entries conflicted: nothing may match.
		entries := []Entry{
			{Pos: 2, Sign: -1, Conflict: true},
			{Pos: 1, Sign: -1, Conflict: true},
		}

		_, ok := alignExact(entries, 1, 2, idx)
		assert.False(t, ok)
	})
}

func TestRefineWindow(t *testing.T) {
	t.Parallel()

	t.Run("EmitsBothSidesOfBestChain", func(t *testing.T) {
		idx := refIndexFor(t, 1, 1, 1, 1, 1, 1, 10, 10)
		entries := permOf(-2, -1, -7, -6)

		blocks := refineWindow(entries, idx, DefaultOptions())

		assert.ElementsMatch(t, []Block{
			{PLo: 6, PHi: 7, Entries: 2, Bases: 20},
			{PLo: 1, PHi: 2, Entries: 2, Bases: 2},
		}, blocks)
	})

	t.Run("SingleEntryChainsDropped", func(t *testing.T) {
		idx := refIndexFor(t, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1)
		// Two flipped nodes too far apart to read in either order as one
		// reversed stretch.
		entries := permOf(-1, -9)

		blocks := refineWindow(entries, idx, DefaultOptions())
		assert.Empty(t, blocks)
	})

	t.Run("ThresholdBoundaryUsesExact", func(t *testing.T) {
		idx := refIndexFor(t, 1, 1, 1, 1, 1)
		entries := permOf(-3, -2, -1)

		exact := DefaultOptions()
		atBoundary := DefaultOptions()
		atBoundary.HighMemLimit = 3

		assert.Equal(t,
			refineWindow(entries, idx, exact),
			refineWindow(entries, idx, atBoundary),
			"a window exactly at the threshold must take the exact path")
	})
}
