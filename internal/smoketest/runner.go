package smoketest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/turnover/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run executes the complete smoke run against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting turnover smoke test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("requests", cfg.NumRequests),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
		logger.Int("repeat", cfg.Repeat),
		logger.Bool("verbose", cfg.Verbose),
	)

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	if err := checkServiceReady(ctx, cfg); err != nil {
		return stats, fmt.Errorf("service readiness check failed: %w", err)
	}

	reqs := generateRequests(ctx, cfg, stats)
	results := submitRequests(ctx, cfg, reqs, stats)
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("submission interrupted: %w", err)
	}

	if cfg.OutputFile != "" {
		if err := saveResults(ctx, cfg.OutputFile, results); err != nil {
			logger.Get().Warn(ctx, "failed to save results to file", logger.Error(err))
		}
	}

	checks := []func() error{
		func() error { return verifyResults(ctx, results, stats) },
		func() error { return verifyDeterminism(ctx, cfg, results, stats) },
		func() error { return verifyValidation(ctx, cfg, stats) },
	}
	var firstErr error
	for _, check := range checks {
		if err := check(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	if firstErr != nil {
		return stats, firstErr
	}
	if stats.Failed > 0 || stats.Unavailable > 0 {
		return stats, fmt.Errorf("%w: %d failed and %d unavailable of %d requests",
			ErrVerification, stats.Failed, stats.Unavailable, stats.Submitted)
	}
	logger.Get().Info(ctx, "smoke test completed successfully")
	return stats, nil
}

// checkServiceReady verifies the service has a model loaded.
func checkServiceReady(ctx context.Context, cfg *Config) error {
	logger.Get().Info(ctx, "checking service readiness")

	resp, err := newHTTPClient(cfg.Timeout).Get(ctx, cfg.BaseURL+"/readyz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	body, _ := readResponseBody(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service not ready: status %d: %s", resp.StatusCode, body)
	}

	logger.Get().Info(ctx, "service is ready")
	return nil
}

// saveResults writes results as an indented JSON array.
func saveResults(ctx context.Context, filename string, results []Result) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "results saved to file", logger.String("filename", filename))
	return nil
}

func displayFinalStats(stats *Stats) {
	var successRate, perSecond float64
	if stats.Submitted > 0 {
		successRate = float64(stats.Successful) / float64(stats.Submitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("successful", stats.Successful),
		logger.Int("unavailable", stats.Unavailable),
		logger.Int("failed", stats.Failed),
		logger.Int("stay", stats.Stay),
		logger.Int("leave", stats.Leave),
		logger.Int("repeated", stats.Repeated),
		logger.Int("violations", stats.Violations),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("requestsPerSecond", perSecond),
	)
}
