package features

import "errors"

// Sentinel error kinds for this package.
var (
	ErrOutOfDomain = errors.New("value out of domain")
)
