package memory

import (
	"fmt"
)

// OptimizePolicy controls Optimize. Ages are in iterations.
type OptimizePolicy struct {
	PromoteImportance int
	PromoteWindow     uint64
	DemoteImportance  int
	DemoteAge         uint64
	ArchiveImportance int
	ArchiveAge        uint64
	ExpiryAge         uint64
	Similarity        float64
}

// DefaultOptimizePolicy returns the standard policy, or a tighter one when
// aggressive is set.
func DefaultOptimizePolicy(aggressive bool) OptimizePolicy {
	p := OptimizePolicy{
		PromoteImportance: 80,
		PromoteWindow:     1,
		DemoteImportance:  40,
		DemoteAge:         5,
		ArchiveImportance: 20,
		ArchiveAge:        15,
		ExpiryAge:         30,
		Similarity:        0.95,
	}
	if aggressive {
		p.ExpiryAge = 7
		p.Similarity = 0.8
	}
	return p
}

// OptimizeReport lists what Optimize changed.
type OptimizeReport struct {
	Promoted   []string    `json:"promoted,omitempty"`
	Demoted    []string    `json:"demoted,omitempty"`
	Archived   []string    `json:"archived,omitempty"`
	Expired    []string    `json:"expired,omitempty"`
	Duplicates []Duplicate `json:"duplicates,omitempty"`
}

// Changed reports whether the store was modified.
func (r *OptimizeReport) Changed() bool {
	return len(r.Promoted)+len(r.Demoted)+len(r.Archived)+len(r.Expired)+len(r.Duplicates) > 0
}

// Optimize rebalances tiers by importance and age, then runs the expiry and
// duplicate sweeps:
//   - important, recently used entries move up to Working
//   - unimportant Working entries past DemoteAge move to Disk
//   - near-worthless Disk entries past ArchiveAge move to Archived
func (s *Store) Optimize(current uint64, p OptimizePolicy) (OptimizeReport, error) {
	var r OptimizeReport
	age := func(e *Entry) uint64 {
		if current > e.LastAccessed {
			return current - e.LastAccessed
		}
		return 0
	}

	type move struct {
		key string
		to  Tier
	}
	var moves []move
	for _, t := range Tiers {
		for i := range s.tiers[t] {
			e := &s.tiers[t][i]
			switch {
			case t != Working && e.Importance >= p.PromoteImportance && age(e) <= p.PromoteWindow:
				moves = append(moves, move{e.Key, Working})
			case t == Working && e.Importance <= p.DemoteImportance && age(e) > p.DemoteAge:
				moves = append(moves, move{e.Key, Disk})
			case t == Disk && e.Importance <= p.ArchiveImportance && age(e) > p.ArchiveAge:
				moves = append(moves, move{e.Key, Archived})
			}
		}
	}

	for _, m := range moves {
		_, ok, err := s.MoveTier(m.key, m.to)
		if err != nil {
			return r, fmt.Errorf("optimize: %w", err)
		}
		if !ok {
			continue
		}
		switch m.to {
		case Working:
			r.Promoted = append(r.Promoted, m.key)
		case Disk:
			r.Demoted = append(r.Demoted, m.key)
		case Archived:
			r.Archived = append(r.Archived, m.key)
		}
	}

	r.Expired = s.SweepExpired(current, p.ExpiryAge)
	r.Duplicates = s.SweepDuplicates(p.Similarity)
	return r, nil
}

// UsageReport describes how entries are spread across tiers.
type UsageReport struct {
	Tiers             []TierStats `json:"tiers"`
	Total             int         `json:"total"`
	AverageImportance float64     `json:"average_importance"`
	LowImportance     int         `json:"low_importance"`
	Recommendations   []string    `json:"recommendations,omitempty"`
}

// Analyze summarizes the store against the Working budget threshold.
func (s *Store) Analyze(threshold uint64) UsageReport {
	r := UsageReport{Tiers: s.Stats()}

	var sum int
	for _, t := range Tiers {
		for i := range s.tiers[t] {
			imp := s.tiers[t][i].Importance
			sum += imp
			if imp <= 20 {
				r.LowImportance++
			}
			r.Total++
		}
	}
	if r.Total > 0 {
		r.AverageImportance = float64(sum) / float64(r.Total)
	}

	working := s.SizeOf(Working)
	if threshold > 0 && working*10 > threshold*7 {
		r.Recommendations = append(r.Recommendations,
			fmt.Sprintf("working memory at %d of %d bytes; consider paging", working, threshold))
	}
	if r.Total > 0 && r.LowImportance*4 > r.Total {
		r.Recommendations = append(r.Recommendations,
			fmt.Sprintf("%d of %d entries have importance <= 20; consider an expiry sweep", r.LowImportance, r.Total))
	}
	if s.Len(Archived) == 0 && s.Len(Disk) > 100 {
		r.Recommendations = append(r.Recommendations,
			"disk tier is large and nothing is archived; consider optimizing")
	}
	return r
}
