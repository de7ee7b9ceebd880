package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrNotFound       = errors.New("not found")
	ErrNotImplemented = errors.New("not implemented")
	ErrEmptyReply     = errors.New("empty reply")

	// ErrInvalidInformation marks a value that failed a type or domain
	// check before being stored in a profile. Callers log and continue.
	ErrInvalidInformation = errors.New("invalid information")

	// ErrMalformedNumeric marks a numeric voice field whose captured text
	// does not parse as a float.
	ErrMalformedNumeric = errors.New("malformed numeric field")
)
