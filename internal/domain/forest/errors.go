package forest

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidArtifact = errors.New("invalid model artifact")
	ErrFeatureCount    = errors.New("feature count mismatch")
)
