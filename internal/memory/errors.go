package memory

import "errors"

var (
	// ErrMalformedKey marks a key with no iteration marker. Scans skip such
	// entries instead of failing.
	ErrMalformedKey = errors.New("memory: malformed key")

	// ErrCapacity is returned when a tier cannot take another entry. The
	// store is left unchanged.
	ErrCapacity = errors.New("memory: tier capacity exceeded")

	ErrNotFound    = errors.New("memory: entry not found")
	ErrEmptyTags   = errors.New("memory: empty tags")
	ErrEmptyValue  = errors.New("memory: empty value")
	ErrInvalidTier = errors.New("memory: invalid tier")
)
