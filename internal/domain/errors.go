package domain

import "errors"

var (
	// ErrNotFound is returned when a section or session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoSections is returned when ingestion finds nothing to index.
	ErrNoSections = errors.New("no statute sections found")

	// ErrNotPrepared is returned by embedders used before Prepare or Load.
	ErrNotPrepared = errors.New("embedder not prepared")

	// ErrDimensionMismatch is returned when a vector does not match the store dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
