package smoketest

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/turnover/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging sends log output to both stdout and a file. If logFile is
// empty, a timestamped filename is generated. The returned closer flushes
// the file.
func SetupLogging(logFile, format string, verbose bool) (io.Closer, error) {
	if logFile == "" {
		logFile = "smoke_log_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.InitWith(io.MultiWriter(os.Stdout, file), format); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return file, nil
}

// ShowHelp prints usage information for the smoke tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Turnover Smoke Test
===================

Scores random employee profiles against a running turnover service and
checks that every answer is a well-formed, repeatable prediction.

Usage:
  go run ./cmd/smoke [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -requests int
        Number of profiles to score (default 1000)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -seed uint
        Generator seed, 0 for random (default 0)
  -repeat int
        Number of profiles re-scored to check determinism (default 50)
  -output string
        Output file for request/response pairs (default: none)
  -log string
        Log file for run output (default: smoke_log_TIMESTAMP.log)
  -log-format string
        text or json (default "text")
  -verbose
        Log every request
  -help
        Show this help message

Examples:
  # Smoke test a local service
  go run ./cmd/smoke

  # Reproducible run with more load
  go run ./cmd/smoke -requests 20000 -workers 32 -seed 42
`)
}
