// Package smoketest drives a running turnover service over HTTP and checks
// that every prediction it returns is well formed and repeatable.
package smoketest

import "time"

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL     string        // Base URL of the service
	NumRequests int           // Number of random vectors to score
	Workers     int           // Number of concurrent workers
	Timeout     time.Duration // HTTP request timeout
	Seed        uint64        // Seed for the vector generator; 0 picks one
	Repeat      int           // Number of vectors re-scored to check determinism
	OutputFile  string        // Output file for results, empty to skip
	LogFile     string        // Log file for run output
	LogFormat   string        // text or json
	Verbose     bool          // Enable per-request logging
}

// Request is the POST /predict body.
type Request struct {
	SatisfactionLevel   float64 `json:"satisfaction_level"`
	TimeSpendCompany    int     `json:"time_spend_company"`
	AverageMonthlyHours int     `json:"average_monthly_hours"`
	NumberProject       int     `json:"number_project"`
	LastEvaluation      float64 `json:"last_evaluation"`
}

// Probabilities mirrors the response probability pair.
type Probabilities struct {
	Stay  float64 `json:"stay"`
	Leave float64 `json:"leave"`
}

// Display mirrors the response percentage strings.
type Display struct {
	Stay  string `json:"stay"`
	Leave string `json:"leave"`
}

// Response is the POST /predict success body.
type Response struct {
	ID            string        `json:"id"`
	Label         string        `json:"label"`
	Class         int           `json:"class"`
	Probabilities Probabilities `json:"probabilities"`
	Display       Display       `json:"display"`
}

// Result pairs a request with what the service answered.
type Result struct {
	Request  Request   `json:"request"`
	Response *Response `json:"response,omitempty"`
	Status   int       `json:"status"`
	Error    string    `json:"error,omitempty"`
}

// Stats holds run statistics.
type Stats struct {
	Generated   int
	Submitted   int
	Successful  int
	Unavailable int
	Failed      int
	Stay        int
	Leave       int
	Repeated    int
	Violations  int
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}
