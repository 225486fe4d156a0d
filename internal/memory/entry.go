package memory

import (
	"fmt"
	"strings"
)

// Tier is a storage level. Lower tiers have lower access priority.
type Tier int

const (
	Working Tier = iota
	Disk
	Archived
)

// Tiers lists every tier from highest to lowest.
var Tiers = []Tier{Working, Disk, Archived}

func (t Tier) String() string {
	switch t {
	case Working:
		return "working"
	case Disk:
		return "disk"
	case Archived:
		return "archived"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t >= Working && t <= Archived
}

// Lower returns the next tier down, or false for Archived.
func (t Tier) Lower() (Tier, bool) {
	if t >= Archived || !t.Valid() {
		return t, false
	}
	return t + 1, true
}

// ParseTier parses a tier name as printed by String.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "working", "working_memory":
		return Working, nil
	case "disk", "storage":
		return Disk, nil
	case "archived", "archive":
		return Archived, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTier, s)
}

const (
	MinImportance     = 0
	MaxImportance     = 100
	DefaultImportance = 50
)

// ClampImportance bounds n to [0,100].
func ClampImportance(n int) int {
	if n < MinImportance {
		return MinImportance
	}
	if n > MaxImportance {
		return MaxImportance
	}
	return n
}

// Entry is one stored record.
type Entry struct {
	ID           uint64 `json:"id"`
	Key          string `json:"key"`
	Value        []byte `json:"value"`
	Tier         Tier   `json:"tier"`
	Importance   int    `json:"importance"`
	LastAccessed uint64 `json:"last_accessed"`
}

// EntryRef is a generational handle to an entry. It stays valid until the
// entry is removed, replaced, or moved to another tier.
type EntryRef struct {
	Tier Tier
	ID   uint64
}

// Size is the byte length of the value.
func (e *Entry) Size() int {
	return len(e.Value)
}

// Footprint is what the entry contributes to its tier's serialized size.
func (e *Entry) Footprint() int {
	return len(e.Key) + len(e.Value)
}

// Tags returns the tag prefix of the key, or false if the key is malformed.
func (e *Entry) Tags() (string, bool) {
	return TagPrefix(e.Key)
}

// Iteration returns the iteration marker of the key.
func (e *Entry) Iteration() (uint64, bool) {
	_, n, err := ParseKey(e.Key)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Ref returns the handle for e.
func (e *Entry) Ref() EntryRef {
	return EntryRef{Tier: e.Tier, ID: e.ID}
}

func (e Entry) clone() Entry {
	e.Value = append([]byte(nil), e.Value...)
	return e
}
