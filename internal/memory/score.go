package memory

// Score weights. Recency contributes up to 50, category up to 30 and size up
// to 20; the sum is clamped to 100.
const (
	recencyUnknown = 25

	categoryHigh    = 30
	categoryMedium  = 15
	categoryDefault = 10

	sizeSmall  = 200
	sizeMedium = 800
)

var (
	highSalienceTags   = []string{"thinking_notes", "evaluation_notes"}
	mediumSalienceTags = []string{"search_results", "summary"}
)

// Score rates how worth keeping e is at iteration current. Lower scores are
// evicted first.
func Score(e *Entry, current uint64) int {
	tags, iteration, err := ParseKey(e.Key)

	total := recencyUnknown
	if err == nil {
		total = RecencyScore(iteration, current)
	} else {
		// Malformed keys still carry their comma separated tokens.
		tags = e.Key
	}
	total += CategoryScore(tags)
	total += SizeScore(e.Size())

	if total > MaxImportance {
		total = MaxImportance
	}
	return total
}

// RecencyScore returns the recency component for an entry written at
// iteration. Entries from the future count as current.
func RecencyScore(iteration, current uint64) int {
	var age uint64
	if current > iteration {
		age = current - iteration
	}
	switch {
	case age <= 1:
		return 50
	case age <= 5:
		return 30
	case age <= 15:
		return 15
	}
	return 5
}

// CategoryScore returns the salience component for a tag set.
func CategoryScore(tags string) int {
	for _, t := range highSalienceTags {
		if hasTag(tags, t) {
			return categoryHigh
		}
	}
	for _, t := range mediumSalienceTags {
		if hasTag(tags, t) {
			return categoryMedium
		}
	}
	return categoryDefault
}

// SizeScore favors small values.
func SizeScore(n int) int {
	switch {
	case n < sizeSmall:
		return 20
	case n < sizeMedium:
		return 10
	}
	return 0
}
