package bif

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIndexKnownScenario(t *testing.T) {
	// Three images of 1000, 2000 and 1500 bytes at a 10s interval.
	ix := BuildIndex([]int{1000, 2000, 1500}, 10000)

	assert.Equal(t, uint32(0), ix.Header.Version)
	assert.Equal(t, uint32(3), ix.Header.FrameCount)
	assert.Equal(t, uint32(10000), ix.Header.IntervalMS)

	// Index starts at 64 + 8*(3+1) = 96; offsets are prefix sums from there.
	require.Len(t, ix.Entries, 4)
	assert.Equal(t, IndexEntry{Ordinal: 0, Offset: 96}, ix.Entries[0])
	assert.Equal(t, IndexEntry{Ordinal: 1, Offset: 1096}, ix.Entries[1])
	assert.Equal(t, IndexEntry{Ordinal: 2, Offset: 3096}, ix.Entries[2])
	assert.Equal(t, IndexEntry{Ordinal: SentinelOrdinal, Offset: 4596}, ix.Entries[3])

	assert.Equal(t, uint32(4596), ix.TotalSize())
	assert.Equal(t, 3, ix.FrameCount())
}

func TestBuildIndexEmpty(t *testing.T) {
	ix := BuildIndex(nil, 10000)

	assert.Equal(t, uint32(0), ix.Header.FrameCount)
	require.Len(t, ix.Entries, 1)
	assert.Equal(t, IndexEntry{Ordinal: SentinelOrdinal, Offset: 72}, ix.Entries[0])
	assert.Equal(t, uint32(72), ix.TotalSize())
	assert.Equal(t, 0, ix.FrameCount())
}

func TestBuildIndexInvariants(t *testing.T) {
	cases := [][]int{
		{},
		{1},
		{0, 0, 0},
		{5000},
		{17, 23000, 1, 999, 42, 1024 * 1024},
	}

	for _, lengths := range cases {
		ix := BuildIndex(lengths, 5000)
		n := len(lengths)

		// N+1 entries, first payload byte right after the index table.
		require.Len(t, ix.Entries, n+1)
		assert.Equal(t, uint32(HeaderSize+IndexEntrySize*(n+1)), ix.Entries[0].Offset)

		// Contiguity: every frame region ends where the next begins.
		total := uint32(HeaderSize + IndexEntrySize*(n+1))
		for i, l := range lengths {
			assert.Equal(t, uint32(i), ix.Entries[i].Ordinal)
			assert.Equal(t, uint32(l), ix.FrameLength(i))
			total += uint32(l)
		}
		assert.Equal(t, total, ix.TotalSize())
		assert.Equal(t, uint32(SentinelOrdinal), ix.Entries[n].Ordinal)
	}
}
