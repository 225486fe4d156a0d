package memory

import (
	"fmt"
)

// Store holds an ordered sequence of entries per tier. It is not safe for
// concurrent use; callers serialize access.
type Store struct {
	tiers      [3][]Entry
	nextID     uint64
	maxEntries int
}

// Option configures a Store.
type Option func(*Store)

// WithMaxEntries caps the number of entries any single tier may hold.
// Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Write builds the composite key for tags at iteration and appends a new
// entry to tier, first removing any entry in that tier with the same tags.
func (s *Store) Write(tier Tier, tags string, value []byte, iteration uint64) (EntryRef, error) {
	return s.write(tier, tags, value, iteration, DefaultImportance)
}

func (s *Store) write(tier Tier, tags string, value []byte, iteration uint64, importance int) (EntryRef, error) {
	if !tier.Valid() {
		return EntryRef{}, fmt.Errorf("write: %w", ErrInvalidTier)
	}
	if len(value) == 0 {
		return EntryRef{}, fmt.Errorf("write %q: %w", tags, ErrEmptyValue)
	}
	key, err := BuildKey(tags, iteration)
	if err != nil {
		return EntryRef{}, fmt.Errorf("write: %w", err)
	}
	return s.put(tier, Entry{
		Key:          key,
		Value:        append([]byte(nil), value...),
		Importance:   ClampImportance(importance),
		LastAccessed: iteration,
	})
}

// put appends e to tier, replacing an entry with the same tag prefix.
// A zero e.ID gets a fresh one.
func (s *Store) put(tier Tier, e Entry) (EntryRef, error) {
	entries := s.tiers[tier]

	replace := -1
	if tags, ok := TagPrefix(e.Key); ok {
		for i := range entries {
			if t, ok := TagPrefix(entries[i].Key); ok && t == tags {
				replace = i
				break
			}
		}
	}

	n := len(entries) + 1
	if replace >= 0 {
		n--
	}
	if s.maxEntries > 0 && n > s.maxEntries {
		return EntryRef{}, fmt.Errorf("put %s into %s: %w", e.Key, tier, ErrCapacity)
	}

	if replace >= 0 {
		entries = append(entries[:replace], entries[replace+1:]...)
	}
	if e.ID == 0 {
		s.nextID++
		e.ID = s.nextID
	}
	e.Tier = tier
	s.tiers[tier] = append(entries, e)
	return e.Ref(), nil
}

// Insert appends e to its tier as-is, without replace semantics. It is used
// to hydrate a store from a persisted mirror, so malformed keys are kept.
func (s *Store) Insert(e Entry) (EntryRef, error) {
	if !e.Tier.Valid() {
		return EntryRef{}, fmt.Errorf("insert %s: %w", e.Key, ErrInvalidTier)
	}
	if s.maxEntries > 0 && len(s.tiers[e.Tier])+1 > s.maxEntries {
		return EntryRef{}, fmt.Errorf("insert %s into %s: %w", e.Key, e.Tier, ErrCapacity)
	}
	s.nextID++
	e.ID = s.nextID
	e.Importance = ClampImportance(e.Importance)
	e = e.clone()
	s.tiers[e.Tier] = append(s.tiers[e.Tier], e)
	return e.Ref(), nil
}

// Get resolves a handle. It fails once the entry is gone from that tier.
func (s *Store) Get(ref EntryRef) (Entry, bool) {
	if !ref.Tier.Valid() {
		return Entry{}, false
	}
	for _, e := range s.tiers[ref.Tier] {
		if e.ID == ref.ID {
			return e.clone(), true
		}
	}
	return Entry{}, false
}

// Read returns the entry in tier whose key equals k, or else the first
// entry whose key starts with the tags in k on a comma boundary.
func (s *Store) Read(tier Tier, k string) (Entry, bool) {
	if !tier.Valid() {
		return Entry{}, false
	}
	i := s.find(tier, k)
	if i < 0 {
		return Entry{}, false
	}
	return s.tiers[tier][i].clone(), true
}

// Lookup is Read across Working, Disk and Archived, in that order.
func (s *Store) Lookup(k string) (Entry, bool) {
	for _, t := range Tiers {
		if e, ok := s.Read(t, k); ok {
			return e, true
		}
	}
	return Entry{}, false
}

func (s *Store) find(tier Tier, k string) int {
	entries := s.tiers[tier]
	for i := range entries {
		if entries[i].Key == k {
			return i
		}
	}
	prefix := NormalizeTags(k)
	if prefix == "" {
		return -1
	}
	for i := range entries {
		if hasTagPrefix(entries[i].Key, prefix) {
			return i
		}
	}
	return -1
}

func (s *Store) indexOf(key string) (Tier, int) {
	for _, t := range Tiers {
		for i := range s.tiers[t] {
			if s.tiers[t][i].Key == key {
				return t, i
			}
		}
	}
	return 0, -1
}

// Remove deletes every entry in tier whose key begins with the normalized
// prefix followed by a comma or the end of the key. It returns the number
// of entries removed.
func (s *Store) Remove(tier Tier, prefix string) (int, error) {
	if !tier.Valid() {
		return 0, fmt.Errorf("remove: %w", ErrInvalidTier)
	}
	norm := NormalizeTags(prefix)
	if norm == "" {
		return 0, fmt.Errorf("remove: %w", ErrEmptyTags)
	}

	entries := s.tiers[tier]
	kept := entries[:0]
	removed := 0
	for _, e := range entries {
		if hasTagPrefix(e.Key, norm) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	clear(entries[len(kept):])
	s.tiers[tier] = kept
	return removed, nil
}

// Delete removes the entry with exactly this key from whichever tier holds it.
func (s *Store) Delete(key string) bool {
	t, i := s.indexOf(key)
	if i < 0 {
		return false
	}
	s.deleteAt(t, i)
	return true
}

func (s *Store) deleteAt(t Tier, i int) {
	s.tiers[t] = append(s.tiers[t][:i], s.tiers[t][i+1:]...)
}

// MoveTier relocates the entry with this key to target, keeping its id,
// importance and access time. An entry in target with the same tags is
// superseded. It reports false if no entry has the key.
func (s *Store) MoveTier(key string, target Tier) (EntryRef, bool, error) {
	if !target.Valid() {
		return EntryRef{}, false, fmt.Errorf("move %s: %w", key, ErrInvalidTier)
	}
	from, i := s.indexOf(key)
	if i < 0 {
		return EntryRef{}, false, nil
	}
	ref, err := s.relocate(from, i, target)
	if err != nil {
		return EntryRef{}, false, err
	}
	return ref, true, nil
}

// relocate stores a copy of entry i of from in to, then deletes the original.
func (s *Store) relocate(from Tier, i int, to Tier) (EntryRef, error) {
	e := s.tiers[from][i]
	if from == to {
		return e.Ref(), nil
	}
	ref, err := s.put(to, e)
	if err != nil {
		return EntryRef{}, err
	}
	s.deleteAt(from, i)
	return ref, nil
}

// Touch sets the last-accessed time of the entry with this key.
func (s *Store) Touch(key string, iteration uint64) bool {
	t, i := s.indexOf(key)
	if i < 0 {
		return false
	}
	s.tiers[t][i].LastAccessed = iteration
	return true
}

// SetImportance updates the importance of the entry with this key, clamped
// to [0,100].
func (s *Store) SetImportance(key string, importance int) bool {
	t, i := s.indexOf(key)
	if i < 0 {
		return false
	}
	s.tiers[t][i].Importance = ClampImportance(importance)
	return true
}

// Entries returns a copy of tier's entries in insertion order.
func (s *Store) Entries(tier Tier) []Entry {
	if !tier.Valid() {
		return nil
	}
	out := make([]Entry, len(s.tiers[tier]))
	for i, e := range s.tiers[tier] {
		out[i] = e.clone()
	}
	return out
}

// All returns every entry, Working first, then Disk, then Archived.
func (s *Store) All() []Entry {
	var out []Entry
	for _, t := range Tiers {
		out = append(out, s.Entries(t)...)
	}
	return out
}

// Len returns the number of entries in tier.
func (s *Store) Len(tier Tier) int {
	if !tier.Valid() {
		return 0
	}
	return len(s.tiers[tier])
}

// Keys returns the keys of tier in insertion order.
func (s *Store) Keys(tier Tier) []string {
	if !tier.Valid() {
		return nil
	}
	keys := make([]string, len(s.tiers[tier]))
	for i := range s.tiers[tier] {
		keys[i] = s.tiers[tier][i].Key
	}
	return keys
}
