package engine

import (
	"sort"

	"github.com/lazypower/strata/internal/memory"
)

// RankedEntry is an entry with its priority score.
type RankedEntry struct {
	Entry memory.Entry `json:"entry"`
	Score int          `json:"score"`
}

// RankOpts controls Rank.
type RankOpts struct {
	Tier  memory.Tier
	Limit int // max results (default 10)
	// Iteration to score against; zero uses the engine's current iteration.
	Iteration uint64
}

func (o RankOpts) limit() int {
	if o.Limit <= 0 {
		return 10
	}
	return o.Limit
}

// Rank lists the entries of a tier by descending priority score, the order
// in which paging would keep them. Malformed keys are left out.
func (e *Engine) Rank(opts RankOpts) []RankedEntry {
	e.mu.Lock()
	entries := e.Mem.Entries(opts.Tier)
	current := opts.Iteration
	if current == 0 {
		current = e.iteration
	}
	e.mu.Unlock()

	results := make([]RankedEntry, 0, len(entries))
	for i := range entries {
		if _, ok := entries[i].Iteration(); !ok {
			continue
		}
		results = append(results, RankedEntry{
			Entry: entries[i],
			Score: memory.Score(&entries[i], current),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > opts.limit() {
		results = results[:opts.limit()]
	}
	return results
}
