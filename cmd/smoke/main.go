package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/turnover/internal/smoketest"
)

// Default configuration constants.
const (
	defaultNumRequests = 1000
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultRepeat      = 50
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numRequests = flag.Int("requests", defaultNumRequests, "Number of profiles to score")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed        = flag.Uint64("seed", 0, "Generator seed, 0 for random")
		repeat      = flag.Int("repeat", defaultRepeat, "Number of profiles re-scored to check determinism")
		outputFile  = flag.String("output", "", "Output file for request/response pairs")
		logFile     = flag.String("log", "", "Log file for run output (default: smoke_log_TIMESTAMP.log)")
		logFormat   = flag.String("log-format", "text", "Log format: text or json")
		verbose     = flag.Bool("verbose", false, "Log every request")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		smoketest.ShowHelp()
		return
	}

	closer, err := smoketest.SetupLogging(*logFile, *logFormat, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &smoketest.Config{
		BaseURL:     *baseURL,
		NumRequests: *numRequests,
		Workers:     *workers,
		Timeout:     *timeout,
		Seed:        *seed,
		Repeat:      *repeat,
		OutputFile:  *outputFile,
		LogFile:     *logFile,
		LogFormat:   *logFormat,
		Verbose:     *verbose,
	}

	if _, err := smoketest.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Smoke test failed: " + err.Error() + "\n")
		cancel()
		_ = closer.Close()
		os.Exit(1)
	}
}
