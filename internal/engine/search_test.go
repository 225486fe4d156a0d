package engine

import (
	"testing"

	"github.com/lazypower/strata/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRank(t *testing.T) {
	e := testEngine(t)
	for _, w := range []struct {
		tags string
		iter uint64
	}{
		{"old", 1},
		{"thinking_notes", 20},
		{"summary", 19},
	} {
		_, err := e.Write(memory.Working, w.tags, []byte("v"), w.iter)
		require.NoError(t, err)
	}
	_, err := e.Mem.Insert(memory.Entry{Key: "junk", Value: []byte("v"), Tier: memory.Working})
	require.NoError(t, err)

	got := e.Rank(RankOpts{Tier: memory.Working})
	require.Len(t, got, 3)
	assert.Equal(t, "thinking_notes,iteration_20", got[0].Entry.Key)
	assert.Equal(t, 100, got[0].Score)
	assert.Equal(t, "old,iteration_1", got[2].Entry.Key)

	assert.Len(t, e.Rank(RankOpts{Tier: memory.Working, Limit: 1}), 1)
	assert.Empty(t, e.Rank(RankOpts{Tier: memory.Disk}))
}
