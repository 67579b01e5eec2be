package analyses

import "errors"

var (
	// ErrValidation indicates malformed input to CreateAnalysis. It is always
	// detected before any mutation; the store is left untouched.
	ErrValidation = errors.New("invalid analysis input")

	// ErrNotFound indicates the requested analysis id does not exist.
	ErrNotFound = errors.New("analysis not found")

	// ErrInvalidState indicates an ImportState payload with missing or
	// malformed fields.
	ErrInvalidState = errors.New("invalid store state")

	// ErrStorage indicates a failure of the underlying medium. It is
	// propagated as-is; retry policy belongs to the caller.
	ErrStorage = errors.New("storage failure")
)
