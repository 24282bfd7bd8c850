package smoketest

import "time"

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
	progressInterval        = time.Second
)

// Verification constants.
const (
	PercentageMultiplier = 100
	probabilityTolerance = 1e-6
	maxBodyBytes         = 1 << 20
)

// Outcomes of a single prediction request.
const (
	outcomeSuccess     = "success"
	outcomeUnavailable = "unavailable"
	outcomeFailed      = "failed"
)
