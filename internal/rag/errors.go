package rag

import "errors"

// Sentinel errors for index construction and retrieval. Callers match them
// with errors.Is to distinguish a broken index from an empty result set.
var (
	// ErrIndexUnavailable means no usable index could be opened under any
	// embedding scheme. Fatal to retrieval; surfaced to the caller as a
	// "search unavailable" state, never as empty results.
	ErrIndexUnavailable = errors.New("rag: index unavailable")

	// ErrIndexLoad means the persisted index files are missing or corrupt.
	// Unrecoverable without rebuilding the index externally.
	ErrIndexLoad = errors.New("rag: index load failed")

	// ErrSchemeMismatch means the query embedding scheme does not match the
	// scheme the index was built with. Recovered once via the resolver's
	// fallback probe before escalating to ErrIndexUnavailable.
	ErrSchemeMismatch = errors.New("rag: embedding scheme mismatch")
)
