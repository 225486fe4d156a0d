package memory

import (
	"strings"
)

// ExpiryImportance is the importance at or above which entries survive the
// expiry sweep regardless of age.
const ExpiryImportance = 80

// SweepExpired removes entries in every tier last accessed more than maxAge
// iterations before current, unless their importance is at least 80. It
// returns the removed keys.
func (s *Store) SweepExpired(current, maxAge uint64) []string {
	var removed []string
	for _, t := range Tiers {
		entries := s.tiers[t]
		kept := entries[:0]
		for _, e := range entries {
			if e.Importance < ExpiryImportance && current > e.LastAccessed && current-e.LastAccessed > maxAge {
				removed = append(removed, e.Key)
				continue
			}
			kept = append(kept, e)
		}
		clear(entries[len(kept):])
		s.tiers[t] = kept
	}
	return removed
}

// Similarity is a coarse string similarity in [0,1]: 1 for equal strings,
// 0.8 when one contains the other, otherwise the shared prefix length over
// the longer length. It overrates short strings.
func Similarity(a, b string) float64 {
	switch {
	case a == "" && b == "":
		return 1
	case a == "" || b == "":
		return 0
	case a == b:
		return 1
	case strings.Contains(a, b) || strings.Contains(b, a):
		return 0.8
	}
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return float64(n) / float64(max(len(a), len(b)))
}

// Duplicate pairs a removed entry with the entry that was kept.
type Duplicate struct {
	Removed string `json:"removed"`
	Kept    string `json:"kept"`
}

type located struct {
	e    Entry
	tags string
}

// SweepDuplicates compares every pair of entries across tiers. When both the
// tag prefixes and the values are at least threshold similar, the entry with
// lower importance is removed; equal importance keeps the more recently
// accessed one, then the earlier one.
func (s *Store) SweepDuplicates(threshold float64) []Duplicate {
	var all []located
	for _, t := range Tiers {
		for _, e := range s.tiers[t] {
			tags, ok := e.Tags()
			if !ok {
				tags = e.Key
			}
			all = append(all, located{e: e, tags: tags})
		}
	}

	dead := make(map[uint64]bool)
	var dups []Duplicate
	for i := range all {
		if dead[all[i].e.ID] {
			continue
		}
		for j := i + 1; j < len(all); j++ {
			if dead[all[j].e.ID] {
				continue
			}
			a, b := &all[i], &all[j]
			if Similarity(a.tags, b.tags) < threshold {
				continue
			}
			if Similarity(string(a.e.Value), string(b.e.Value)) < threshold {
				continue
			}
			loser, winner := b, a
			if keepSecond(&a.e, &b.e) {
				loser, winner = a, b
			}
			dead[loser.e.ID] = true
			dups = append(dups, Duplicate{Removed: loser.e.Key, Kept: winner.e.Key})
			if loser == a {
				break
			}
		}
	}

	if len(dead) == 0 {
		return nil
	}
	for _, t := range Tiers {
		entries := s.tiers[t]
		kept := entries[:0]
		for _, e := range entries {
			if !dead[e.ID] {
				kept = append(kept, e)
			}
		}
		clear(entries[len(kept):])
		s.tiers[t] = kept
	}
	return dups
}

func keepSecond(a, b *Entry) bool {
	if a.Importance != b.Importance {
		return b.Importance > a.Importance
	}
	return b.LastAccessed > a.LastAccessed
}
