package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrNotFound means the referenced memory id is absent.
	ErrNotFound = goerr.New("memory not found")

	// ErrConflict is an optimistic-concurrency write collision.
	ErrConflict = goerr.New("memory version conflict")

	// ErrRetryExhausted means the bounded read-modify-write retry budget
	// was spent without a successful commit.
	ErrRetryExhausted = goerr.New("retry budget exhausted")

	// ErrInvariant marks a record with corrupt metadata (negative counters,
	// unknown tier). The record is left unchanged pending manual review.
	ErrInvariant = goerr.New("memory invariant violation")
)
