package memory

import (
	"bytes"
	"fmt"
)

// SummaryTags tags the summary record every search writes.
const SummaryTags = "search_results,summary"

// Query selects entries by tag subset and value substring.
type Query struct {
	Tags      string
	Value     string
	Iteration uint64
	// Tiers to scan. Defaults to Disk and Archived.
	Tiers []Tier
}

// SearchOutcome holds the matched entries as they were found, and the
// summary entry written to Working.
type SearchOutcome struct {
	Matches []Entry
	Summary Entry
	// Materialized counts matches copied into Working.
	Materialized int
}

func (q *Query) tiers() []Tier {
	if len(q.Tiers) == 0 {
		return []Tier{Disk, Archived}
	}
	return q.Tiers
}

// matches reports whether e satisfies q. Malformed keys never match.
func (q *Query) matches(e *Entry) bool {
	tags, ok := e.Tags()
	if !ok {
		return false
	}
	if q.Tags != "" && !Matches(q.Tags, tags) {
		return false
	}
	if q.Value != "" && !bytes.Contains(bytes.ToLower(e.Value), bytes.ToLower([]byte(q.Value))) {
		return false
	}
	return true
}

// Search scans the query tiers and writes every match into Working under
// its own tags at the query iteration. A summary entry describing the
// result is always appended to Working. Matches with empty values are
// reported but not copied. If any write fails, Working is left as it was.
func (s *Store) Search(q Query) (SearchOutcome, error) {
	var (
		out   SearchOutcome
		total int
	)
	for _, t := range q.tiers() {
		if !t.Valid() {
			return SearchOutcome{}, fmt.Errorf("search: %w", ErrInvalidTier)
		}
		total += s.Len(t)
		for _, e := range s.Entries(t) {
			if q.matches(&e) {
				out.Matches = append(out.Matches, e)
			}
		}
	}

	var summary string
	switch {
	case total == 0:
		summary = "found 0 matches — no storage"
	case len(out.Matches) > 0:
		summary = fmt.Sprintf("found %d matches for tags:[%s] value:[%s]",
			len(out.Matches), orAny(q.Tags), orAny(q.Value))
	default:
		summary = fmt.Sprintf("no matches found for tags:[%s] value:[%s]",
			orAny(q.Tags), orAny(q.Value))
	}

	saved := s.snapshot(Working)
	for i := range out.Matches {
		m := &out.Matches[i]
		tags, _ := m.Tags()
		if tags == "" || len(m.Value) == 0 {
			continue
		}
		if _, err := s.write(Working, tags, m.Value, q.Iteration, m.Importance); err != nil {
			s.tiers[Working] = saved
			return SearchOutcome{}, fmt.Errorf("materialize %s: %w", m.Key, err)
		}
		out.Materialized++
	}

	ref, err := s.write(Working, SummaryTags, []byte(summary), q.Iteration, DefaultImportance)
	if err != nil {
		s.tiers[Working] = saved
		return SearchOutcome{}, fmt.Errorf("write search summary: %w", err)
	}
	out.Summary, _ = s.Get(ref)
	return out, nil
}

func orAny(s string) string {
	if s == "" {
		return "any"
	}
	return s
}

// Load copies every Disk or Archived entry whose tags include all of tags
// into Working at iteration, without a summary. It returns the number of
// entries loaded. Like Search, it changes nothing on failure.
func (s *Store) Load(tags string, iteration uint64) (int, error) {
	if NormalizeTags(tags) == "" {
		return 0, fmt.Errorf("load: %w", ErrEmptyTags)
	}
	q := Query{Tags: tags}
	var hits []Entry
	for _, t := range q.tiers() {
		for _, e := range s.Entries(t) {
			if q.matches(&e) {
				hits = append(hits, e)
			}
		}
	}
	saved := s.snapshot(Working)
	loaded := 0
	for i := range hits {
		etags, _ := hits[i].Tags()
		if etags == "" || len(hits[i].Value) == 0 {
			continue
		}
		if _, err := s.write(Working, etags, hits[i].Value, iteration, hits[i].Importance); err != nil {
			s.tiers[Working] = saved
			return 0, fmt.Errorf("load %s: %w", hits[i].Key, err)
		}
		loaded++
	}
	return loaded, nil
}

// snapshot copies tier's slice so a failed multi-entry write can restore it.
// put rewrites the backing array in place, so the copy must not share it.
func (s *Store) snapshot(tier Tier) []Entry {
	return append([]Entry(nil), s.tiers[tier]...)
}
