package domain

import "errors"

var (
	// ErrInvalidInput marks a blank or malformed identifier. It is rejected before
	// any state is touched and is never broadcast.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable marks a backend failure. The failed operation has not
	// been applied.
	ErrStoreUnavailable = errors.New("store unavailable")
)
