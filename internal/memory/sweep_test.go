package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 0.0, Similarity("a", ""))
	assert.Equal(t, 1.0, Similarity("abc", "abc"))
	assert.Equal(t, 0.8, Similarity("abc", "xabcx"))
	assert.Equal(t, 0.5, Similarity("abcd", "abxy"))
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
}

func TestSweepExpired(t *testing.T) {
	s := NewStore()
	write(t, s, Working, "fresh", "v", 95)
	write(t, s, Disk, "stale", "v", 10)
	write(t, s, Archived, "vital", "v", 10)
	s.SetImportance("vital,iteration_10", 80)
	write(t, s, Disk, "edge", "v", 70)

	removed := s.SweepExpired(100, 30)
	assert.Equal(t, []string{"stale,iteration_10"}, removed)
	assert.Equal(t, 1, s.Len(Working))
	assert.Equal(t, 1, s.Len(Disk), "age exactly maxAge survives")
	assert.Equal(t, 1, s.Len(Archived))
}

func TestSweepDuplicatesKeepsImportant(t *testing.T) {
	s := NewStore()
	write(t, s, Working, "build,errors", "linker failed on arm64", 1)
	write(t, s, Disk, "build,errors,ci", "linker failed on arm64", 2)
	s.SetImportance("build,errors,ci,iteration_2", 70)
	write(t, s, Disk, "unrelated", "something else", 3)

	dups := s.SweepDuplicates(0.8)
	require.Len(t, dups, 1)
	assert.Equal(t, "build,errors,iteration_1", dups[0].Removed)
	assert.Equal(t, "build,errors,ci,iteration_2", dups[0].Kept)
	assert.Zero(t, s.Len(Working))
	assert.Equal(t, 2, s.Len(Disk))
}

func TestSweepDuplicatesTieBreaksOnAccess(t *testing.T) {
	s := NewStore()
	write(t, s, Disk, "notes", "same text", 1)
	write(t, s, Archived, "notes", "same text", 4)

	dups := s.SweepDuplicates(0.95)
	require.Len(t, dups, 1)
	assert.Equal(t, "notes,iteration_1", dups[0].Removed)
	assert.Equal(t, []string{"notes,iteration_4"}, s.Keys(Archived))
}

func TestSweepDuplicatesNeedsBoth(t *testing.T) {
	s := NewStore()
	write(t, s, Disk, "notes", "first value", 1)
	write(t, s, Archived, "notes", "totally different", 2)
	assert.Empty(t, s.SweepDuplicates(0.9))
	assert.Equal(t, 1, s.Len(Disk))
}
