// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables on top of New().
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// WriteTimeout is the HTTP server write timeout. A request that waits
	// for the model must give up before it.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// Model locates the classifier artifact.
	Model Model `koanf:"model"`

	Metrics Metrics `koanf:"metrics"`
}

// Metrics configures the Prometheus manager.
type Metrics struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
	Prefix    string `koanf:"prefix"`

	// Buckets overrides the latency histogram buckets.
	Buckets []float64         `koanf:"buckets"`
	Labels  map[string]string `koanf:"labels"`

	// RefreshInterval paces the system gauges.
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

// Model configures where the forest artifact is fetched from.
type Model struct {
	// Registry is one of hub, gcs, s3, file.
	Registry string `koanf:"registry"`

	HubEndpoint string `koanf:"hub_endpoint"`
	RepoID      string `koanf:"repo_id"`
	Filename    string `koanf:"filename"`
	Revision    string `koanf:"revision"`
	Token       string `koanf:"token"`

	// Bucket, Region and Endpoint address gcs and s3 registries. Endpoint
	// may point at an emulator or MinIO.
	Bucket          string `koanf:"bucket"`
	Region          string `koanf:"region"`
	Endpoint        string `koanf:"endpoint"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	CredentialsFile string `koanf:"credentials_file"`

	// LocalDir is the root for the file registry.
	LocalDir string `koanf:"local_dir"`

	// CacheDir enables the on-disk artifact cache when set.
	CacheDir string `koanf:"cache_dir"`

	// FetchTimeout bounds one artifact download.
	FetchTimeout time.Duration `koanf:"fetch_timeout"`

	// RequestLoadTimeout bounds how long a request waits for a model that
	// is still loading.
	RequestLoadTimeout time.Duration `koanf:"request_load_timeout"`

	// WarmInterval paces background load retries until the model is loaded.
	WarmInterval time.Duration `koanf:"warm_interval"`

	// EagerLoad loads the model during start-up instead of on first use.
	EagerLoad bool `koanf:"eager_load"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		ShutdownTimeout: 10 * time.Second,
		WriteTimeout:    10 * time.Second,
		Model: Model{
			Registry:           "hub",
			HubEndpoint:        "https://huggingface.co",
			RepoID:             "IamPradeep/Employee-Churn-Predictor",
			Filename:           "final_random_forest_model.json",
			Revision:           "main",
			FetchTimeout:       60 * time.Second,
			RequestLoadTimeout: 5 * time.Second,
			WarmInterval:       30 * time.Second,
			EagerLoad:          true,
		},
		Metrics: Metrics{
			Enabled:         true,
			Namespace:       "turnover",
			Subsystem:       "predictor",
			RefreshInterval: 10 * time.Second,
		},
	}
}
