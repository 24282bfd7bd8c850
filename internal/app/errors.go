package service

import "errors"

// Sentinel error kinds for the service layer.
var (
	// ErrModelUnavailable reports that the classifier could not be fetched
	// or decoded. No prediction is produced when it is returned.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrUnsupportedModel reports an artifact whose classes are not the
	// stay/leave pair.
	ErrUnsupportedModel = errors.New("unsupported model")
)
