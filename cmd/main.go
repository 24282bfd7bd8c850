package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/turnover/internal/adapters/http/api"
	"github.com/okian/turnover/internal/adapters/http/site"
	"github.com/okian/turnover/internal/adapters/http/swagger"
	"github.com/okian/turnover/internal/adapters/registry"
	service "github.com/okian/turnover/internal/app"
	"github.com/okian/turnover/internal/config"
	"github.com/okian/turnover/pkg/logger"
	"github.com/okian/turnover/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load()
	if err != nil {
		// Logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWith(os.Stdout, cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	src, err := openRegistry(ctx, cfg)
	if err != nil {
		loggerInstance.Error(ctx, "failed to open model registry", logger.Error(err))
		return
	}
	defer func() {
		if err := registry.Close(src); err != nil {
			loggerInstance.Warn(context.Background(), "failed to close model registry", logger.Error(err))
		}
	}()

	svc := newService(cfg, src, loggerInstance)
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	manager := metrics.Configure(metricsSettings(cfg).Options()...)

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx, manager.RefreshInterval())

	// Keep retrying the model in the background until it is loaded
	go startModelWarmer(ctx, svc, cfg.Model.WarmInterval)

	srv := newHTTPServer(cfg, newMux(ctx, svc, loggerInstance))

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// openRegistry builds the artifact source selected by the model config.
func openRegistry(ctx context.Context, cfg *config.Config) (registry.Source, error) {
	m := cfg.Model
	settings := registry.Settings{
		Kind:            m.Registry,
		Endpoint:        m.HubEndpoint,
		Token:           m.Token,
		Bucket:          m.Bucket,
		Region:          m.Region,
		AccessKeyID:     m.AccessKeyID,
		SecretAccessKey: m.SecretAccessKey,
		CredentialsFile: m.CredentialsFile,
		LocalDir:        m.LocalDir,
		CacheDir:        m.CacheDir,
	}
	if m.Registry != registry.KindHub {
		settings.Endpoint = m.Endpoint
	}
	return registry.Open(ctx, settings,
		registry.WithTimeout(m.FetchTimeout),
		registry.WithLogger(logger.Named("registry")),
	)
}

func newService(cfg *config.Config, src registry.Source, l logger.Logger) *service.Service {
	ref := registry.Ref{
		RepoID:   cfg.Model.RepoID,
		Filename: cfg.Model.Filename,
		Revision: cfg.Model.Revision,
	}
	p := service.NewProvider(src, ref,
		service.WithFetchTimeout(cfg.Model.FetchTimeout),
		service.WithProviderLogger(l),
	)
	return service.New(p,
		service.WithLogger(l),
		service.WithEagerLoad(cfg.Model.EagerLoad),
		service.WithRequestLoadTimeout(cfg.Model.RequestLoadTimeout),
	)
}

func metricsSettings(cfg *config.Config) metrics.Settings {
	m := cfg.Metrics
	return metrics.Settings{
		Enabled:         m.Enabled,
		Namespace:       m.Namespace,
		Subsystem:       m.Subsystem,
		Prefix:          m.Prefix,
		Buckets:         m.Buckets,
		Labels:          m.Labels,
		RefreshInterval: m.RefreshInterval,
	}
}

// newHTTPServer applies the configured write timeout. Requests waiting on a
// model load give up after request_load_timeout, which config validation
// keeps below it.
func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// newMux mounts the JSON API, the API docs and the form site.
func newMux(ctx context.Context, svc *service.Service, l logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	// Register API docs under /api-docs
	swagger.Register(ctx, mux)

	// Register business API routes with the service dependency.
	api.NewServer(svc, svc, api.WithLogger(l)).Register(mux)

	// The form owns "/".
	site.Register(ctx, mux, svc, l)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startModelWarmer retries the model load every interval until it succeeds.
func startModelWarmer(ctx context.Context, svc *service.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for !svc.Ready() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.Warm(ctx); err != nil {
				logger.Get().Warn(ctx, "model still unavailable", logger.Error(err))
			}
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		// Average GC pause
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
