package memory

import (
	"fmt"
	"sort"
)

// PagingState is the migrator's position in a cycle.
type PagingState int

const (
	Idle PagingState = iota
	Paging
)

func (p PagingState) String() string {
	if p == Paging {
		return "paging"
	}
	return "idle"
}

// PagingOutcome reports one paging check. Rethink is set when anything
// moved; the caller should re-enter its thinking phase with the reduced
// working set.
type PagingOutcome struct {
	Migrated      int      `json:"migrated_count"`
	ReachedTarget bool     `json:"reached_target"`
	Rethink       bool     `json:"rethink"`
	Skipped       bool     `json:"skipped"`
	Threshold     uint64   `json:"threshold"`
	Target        uint64   `json:"target"`
	StartSize     uint64   `json:"start_size"`
	EndSize       uint64   `json:"end_size"`
	Keys          []string `json:"keys,omitempty"`
}

// Migrator moves low-priority Working entries to Disk when Working grows
// past a threshold.
type Migrator struct {
	Enabled bool
	state   PagingState
}

// NewMigrator returns an idle migrator.
func NewMigrator(enabled bool) *Migrator {
	return &Migrator{Enabled: enabled}
}

// State returns Paging only while Run is migrating.
func (m *Migrator) State() PagingState {
	return m.state
}

// TargetSize is floor(threshold * 0.8).
func TargetSize(threshold uint64) uint64 {
	return threshold/5*4 + threshold%5*4/5
}

type candidate struct {
	key   string
	score int
}

// Run checks Working against threshold and, if it is over, demotes entries
// lowest score first until Working fits in the target size or no candidates
// remain. Running out of candidates is not an error.
func (m *Migrator) Run(s *Store, threshold, iteration uint64) (PagingOutcome, error) {
	out := PagingOutcome{Threshold: threshold}
	if !m.Enabled {
		out.Skipped = true
		return out, nil
	}

	current := s.SizeOf(Working)
	out.StartSize, out.EndSize = current, current
	if current <= threshold {
		out.ReachedTarget = true
		return out, nil
	}

	m.state = Paging
	defer func() { m.state = Idle }()

	out.Target = TargetSize(threshold)
	to, _ := Working.Lower()
	candidates := pagingCandidates(s, iteration)

	for _, c := range candidates {
		if current <= out.Target {
			break
		}
		i := s.find(Working, c.key)
		if i < 0 || s.tiers[Working][i].Key != c.key {
			continue
		}
		if _, err := s.relocate(Working, i, to); err != nil {
			out.EndSize = current
			out.Rethink = out.Migrated > 0
			return out, fmt.Errorf("page out %s: %w", c.key, err)
		}
		out.Migrated++
		out.Keys = append(out.Keys, c.key)
		current = s.SizeOf(Working)
	}

	out.EndSize = current
	out.ReachedTarget = current <= out.Target
	out.Rethink = out.Migrated > 0
	return out, nil
}

// pagingCandidates lists valid Working entries ordered by ascending score,
// keeping insertion order among equal scores.
func pagingCandidates(s *Store, iteration uint64) []candidate {
	entries := s.tiers[Working]
	candidates := make([]candidate, 0, len(entries))
	for i := range entries {
		if _, ok := entries[i].Iteration(); !ok {
			continue
		}
		candidates = append(candidates, candidate{
			key:   entries[i].Key,
			score: Score(&entries[i], iteration),
		})
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score < candidates[b].score
	})
	return candidates
}
