// Package errors holds the sentinel errors shared across packages. Callers
// tag a concrete failure with Mark and branch on the sentinel with Is.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput reports an empty query, fact field or bad argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch reports a vector whose length differs from the
	// store's established dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	ErrEmbedderUnavailable  = errors.New("embedder unavailable")
	ErrCompleterUnavailable = errors.New("completer unavailable")

	// ErrPersistence reports a snapshot that could not be read, decoded or
	// written. In-memory state is left unchanged.
	ErrPersistence = errors.New("persistence failure")

	ErrLuaExecution     = errors.New("lua script execution error")
	ErrFunctionNotFound = errors.New("lua function not found")
)

// Mark tags err with a sentinel. Both the sentinel and the original cause
// stay reachable through Is and As.
func Mark(err, sentinel error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// Is is errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
