package memory

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const iterationMarker = "iteration_"

// NormalizeTags splits a comma-separated tag list, trims each token, drops
// empties, and returns the sorted, de-duplicated tokens joined by commas.
func NormalizeTags(tags string) string {
	tokens := splitTags(tags)
	if len(tokens) == 0 {
		return ""
	}
	sort.Strings(tokens)
	out := tokens[:1]
	for _, t := range tokens[1:] {
		if t != out[len(out)-1] {
			out = append(out, t)
		}
	}
	return strings.Join(out, ",")
}

func splitTags(tags string) []string {
	var tokens []string
	for _, t := range strings.Split(tags, ",") {
		t = strings.Trim(t, " \t\r\n")
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// Matches reports whether every tag in search appears in entry.
// An empty search matches anything; a non-empty search never matches
// empty entry tags. Comparison is byte-exact after trimming.
func Matches(search, entry string) bool {
	if strings.TrimSpace(search) == "" {
		return true
	}
	if strings.TrimSpace(entry) == "" {
		return false
	}
	if search == entry {
		return true
	}

	have := make(map[string]struct{})
	for _, t := range splitTags(entry) {
		have[t] = struct{}{}
	}
	for _, t := range splitTags(search) {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}

// BuildKey returns the composite key "<normalized tags>,iteration_<N>".
func BuildKey(tags string, iteration uint64) (string, error) {
	norm := NormalizeTags(tags)
	if norm == "" {
		return "", ErrEmptyTags
	}
	return norm + "," + iterationMarker + strconv.FormatUint(iteration, 10), nil
}

// ParseKey splits a composite key into its tag prefix and iteration.
func ParseKey(key string) (tags string, iteration uint64, err error) {
	marker := key
	if i := strings.LastIndexByte(key, ','); i >= 0 {
		tags, marker = key[:i], key[i+1:]
	}
	digits, ok := strings.CutPrefix(marker, iterationMarker)
	if !ok || digits == "" {
		return "", 0, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	n, perr := strconv.ParseUint(digits, 10, 64)
	if perr != nil {
		return "", 0, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	return tags, n, nil
}

// TagPrefix returns the tag portion of key, or false if key is malformed.
func TagPrefix(key string) (string, bool) {
	tags, _, err := ParseKey(key)
	if err != nil {
		return "", false
	}
	return tags, true
}

// hasTagPrefix reports whether key starts with prefix and the prefix ends
// on a comma boundary.
func hasTagPrefix(key, prefix string) bool {
	if !strings.HasPrefix(key, prefix) {
		return false
	}
	return len(key) == len(prefix) || key[len(prefix)] == ','
}

// hasTag reports whether tag is one of the comma tokens of tags.
func hasTag(tags, tag string) bool {
	for _, t := range splitTags(tags) {
		if t == tag {
			return true
		}
	}
	return false
}
