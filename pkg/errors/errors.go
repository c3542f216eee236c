// Package errors holds the sentinels shared by the result stores, the round
// archive and the status API. Every backend wraps these, so callers match
// them with errors.Is whatever store is configured.
package errors

import "errors"

var (
	// ErrNotFound reports a missing round record, report or archived model.
	ErrNotFound = errors.New("record not found")

	ErrEmptyKey     = errors.New("empty record id")
	ErrEntityExists = errors.New("record already exists")

	// ErrInvalidData marks a request that decoded into the wrong type.
	ErrInvalidData = errors.New("invalid request data")
)
