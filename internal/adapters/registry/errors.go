package registry

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidRef      = errors.New("invalid artifact reference")
	ErrUnknownRegistry = errors.New("unknown registry kind")
	ErrNotFound        = errors.New("artifact not found")
	ErrFetch           = errors.New("artifact fetch failed")
	ErrTooLarge        = errors.New("artifact too large")
)
