package types

import "errors"

// Error taxonomy. Callers match with errors.Is; producers wrap with %w.
var (
	// ErrFatalConfig marks missing credentials or invalid configuration.
	// The run aborts before any write.
	ErrFatalConfig = errors.New("fatal configuration error")

	// ErrTransient marks a network or service failure on a single read or
	// write. The item is skipped and the batch continues.
	ErrTransient = errors.New("transient external error")

	// ErrMalformedInput marks unparseable decomposition output or a
	// structurally invalid document.
	ErrMalformedInput = errors.New("malformed input")

	// ErrInvariantViolation marks a condition that would require
	// overwriting existing tracker content. The item is skipped.
	ErrInvariantViolation = errors.New("invariant violation")
)

// Entity errors.
var (
	ErrNotFound      = errors.New("issue not found")
	ErrInvalidState  = errors.New("invalid state value")
	ErrInvalidTitle  = errors.New("invalid title")
	ErrInvalidNumber = errors.New("invalid issue number")
	ErrUnmergeable   = errors.New("document cannot be merged")
	ErrDetached      = errors.New("backend is detached")
	ErrAttached      = errors.New("backend is already attached")
)
