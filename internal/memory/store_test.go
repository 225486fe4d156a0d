package memory

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, s *Store, tier Tier, tags, value string, iteration uint64) EntryRef {
	t.Helper()
	ref, err := s.Write(tier, tags, []byte(value), iteration)
	require.NoError(t, err, "Write(%s, %q)", tier, tags)
	return ref
}

func TestWriteAppendsInOrder(t *testing.T) {
	s := NewStore()
	write(t, s, Working, "gamma", "3", 1)
	write(t, s, Working, "alpha", "1", 2)
	write(t, s, Working, "beta", "2", 3)

	want := []string{"gamma,iteration_1", "alpha,iteration_2", "beta,iteration_3"}
	if diff := cmp.Diff(want, s.Keys(Working)); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteReplacesSameTags(t *testing.T) {
	s := NewStore()
	write(t, s, Working, "x,y", "first", 1)
	write(t, s, Working, "other", "o", 2)
	write(t, s, Working, "y, x", "second", 5)

	entries := s.Entries(Working)
	require.Len(t, entries, 2)
	assert.Equal(t, "other,iteration_2", entries[0].Key)
	assert.Equal(t, "x,y,iteration_5", entries[1].Key)
	assert.Equal(t, "second", string(entries[1].Value))
}

func TestWriteReplaceIsPerTier(t *testing.T) {
	s := NewStore()
	write(t, s, Working, "x", "w", 1)
	write(t, s, Disk, "x", "d", 2)
	assert.Equal(t, 1, s.Len(Working))
	assert.Equal(t, 1, s.Len(Disk))
}

func TestWriteRejectsEmpty(t *testing.T) {
	s := NewStore()
	_, err := s.Write(Working, "", []byte("v"), 1)
	assert.ErrorIs(t, err, ErrEmptyTags)
	_, err = s.Write(Working, "a", nil, 1)
	assert.ErrorIs(t, err, ErrEmptyValue)
	_, err = s.Write(Tier(9), "a", []byte("v"), 1)
	assert.ErrorIs(t, err, ErrInvalidTier)
	assert.Zero(t, s.Len(Working))
}

func TestWriteCapacity(t *testing.T) {
	s := NewStore(WithMaxEntries(2))
	write(t, s, Working, "a", "1", 1)
	write(t, s, Working, "b", "2", 1)

	_, err := s.Write(Working, "c", []byte("3"), 1)
	require.ErrorIs(t, err, ErrCapacity)
	assert.Equal(t, []string{"a,iteration_1", "b,iteration_1"}, s.Keys(Working))

	// Replacing does not grow the tier.
	write(t, s, Working, "a", "1b", 2)
	assert.Equal(t, []string{"b,iteration_1", "a,iteration_2"}, s.Keys(Working))
}

func TestGetInvalidatedByReplace(t *testing.T) {
	s := NewStore()
	old := write(t, s, Working, "a", "1", 1)
	_, ok := s.Get(old)
	require.True(t, ok)

	cur := write(t, s, Working, "a", "2", 2)
	_, ok = s.Get(old)
	assert.False(t, ok, "stale ref should not resolve")

	e, ok := s.Get(cur)
	require.True(t, ok)
	assert.Equal(t, "2", string(e.Value))
}

func TestReadExactAndPrefix(t *testing.T) {
	s := NewStore()
	write(t, s, Working, "alpha,beta", "ab", 1)
	write(t, s, Working, "alpha", "a", 2)

	e, ok := s.Read(Working, "alpha,iteration_2")
	require.True(t, ok)
	assert.Equal(t, "a", string(e.Value))

	e, ok = s.Read(Working, "alpha")
	require.True(t, ok)
	assert.Equal(t, "ab", string(e.Value), "first in insertion order")

	_, ok = s.Read(Working, "alph")
	assert.False(t, ok)

	_, ok = s.Read(Disk, "alpha")
	assert.False(t, ok)
}

func TestLookupAcrossTiers(t *testing.T) {
	s := NewStore()
	write(t, s, Archived, "deep", "v", 1)
	e, ok := s.Lookup("deep")
	require.True(t, ok)
	assert.Equal(t, Archived, e.Tier)
}

func TestRemoveCommaBoundary(t *testing.T) {
	s := NewStore()
	write(t, s, Working, "alpha,beta", "1", 1)
	write(t, s, Working, "alpha", "2", 2)
	write(t, s, Working, "alphabet", "3", 3)
	write(t, s, Working, "beta", "4", 4)

	n, err := s.Remove(Working, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"alphabet,iteration_3", "beta,iteration_4"}, s.Keys(Working))

	n, err = s.Remove(Working, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.Remove(Working, " ")
	assert.ErrorIs(t, err, ErrEmptyTags)
}

func TestMoveTierPreservesFields(t *testing.T) {
	s := NewStore()
	ref := write(t, s, Working, "a", "v", 3)
	require.True(t, s.SetImportance("a,iteration_3", 90))
	require.True(t, s.Touch("a,iteration_3", 7))

	moved, ok, err := s.MoveTier("a,iteration_3", Archived)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ref.ID, moved.ID)

	e, ok := s.Get(moved)
	require.True(t, ok)
	assert.Equal(t, Archived, e.Tier)
	assert.Equal(t, 90, e.Importance)
	assert.Equal(t, uint64(7), e.LastAccessed)
	assert.Zero(t, s.Len(Working))

	_, ok, err = s.MoveTier("nope,iteration_1", Disk)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetImportanceClamps(t *testing.T) {
	s := NewStore()
	write(t, s, Working, "a", "v", 1)
	s.SetImportance("a,iteration_1", 250)
	e, _ := s.Read(Working, "a")
	assert.Equal(t, 100, e.Importance)
	s.SetImportance("a,iteration_1", -3)
	e, _ = s.Read(Working, "a")
	assert.Equal(t, 0, e.Importance)
}

func TestInsertKeepsMalformed(t *testing.T) {
	s := NewStore()
	_, err := s.Insert(Entry{Key: "no-marker", Value: []byte("v"), Tier: Disk})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len(Disk))
}

func TestEntriesAreCopies(t *testing.T) {
	s := NewStore()
	write(t, s, Working, "a", "value", 1)
	entries := s.Entries(Working)
	entries[0].Value[0] = 'X'
	e, _ := s.Read(Working, "a")
	assert.Equal(t, "value", string(e.Value))
}

func TestSizeOf(t *testing.T) {
	s := NewStore()
	assert.Zero(t, s.SizeOf(Working))
	write(t, s, Working, "a", "12345", 1) // "a,iteration_1" = 13
	assert.Equal(t, uint64(18), s.SizeOf(Working))
	write(t, s, Working, "a", "1", 2)
	assert.Equal(t, uint64(14), s.SizeOf(Working), "size recomputed after replace")
	assert.Equal(t, uint64(3), EstimateTokens(14))

	stats := s.Stats()
	require.Len(t, stats, 3)
	assert.Equal(t, "working", stats[0].Name)
	assert.Equal(t, 1, stats[0].Entries)
}

func TestParseTier(t *testing.T) {
	for in, want := range map[string]Tier{"working": Working, "Disk": Disk, "storage": Disk, "archived": Archived} {
		got, err := ParseTier(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTier("tape")
	assert.ErrorIs(t, err, ErrInvalidTier)
}
