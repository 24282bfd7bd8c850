package prediction

import "errors"

// Sentinel error kinds for this package.
var (
	ErrUnknownClass       = errors.New("unknown class")
	ErrInvalidProbability = errors.New("invalid probability pair")
)
