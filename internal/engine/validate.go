package engine

import (
	"errors"
	"fmt"
	"strings"
)

// reservedTagPrefix is the iteration marker; a tag that looks like one
// would be mistaken for the key's iteration.
const reservedTagPrefix = "iteration_"

// ErrValueTooLarge is returned when a value exceeds memory.max_value_bytes.
var ErrValueTooLarge = errors.New("engine: value exceeds max_value_bytes")

// validateTags rejects tag lists that would produce ambiguous keys.
func validateTags(tags string) error {
	for _, t := range strings.Split(tags, ",") {
		t = strings.TrimSpace(t)
		if strings.HasPrefix(t, reservedTagPrefix) {
			return fmt.Errorf("tag %q uses reserved prefix %q", t, reservedTagPrefix)
		}
	}
	return nil
}

// checkValue enforces the configured value size limit. Values are opaque and
// are never rewritten; zero means unbounded.
func (e *Engine) checkValue(tags string, value []byte) error {
	limit := e.cfg.MaxValueBytes
	if limit <= 0 || len(value) <= limit {
		return nil
	}
	return fmt.Errorf("write %q: %w (%d > %d bytes)", tags, ErrValueTooLarge, len(value), limit)
}
