package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "TURNOVER_"
	envFile   = "TURNOVER_CONFIG"
)

var registries = map[string]bool{"hub": true, "gcs": true, "s3": true, "file": true}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if TURNOVER_CONFIG is set
//  3. env (prefix TURNOVER_, "__" separates nested keys)
func Load() (*Config, error) {
	cfg := New()

	k := koanf.New(".")

	if path := os.Getenv(envFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// TURNOVER_MODEL__REPO_ID -> model.repo_id
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}
	// The file path itself is not a setting.
	k.Delete("config")

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}

	m := &c.Model
	m.Registry = strings.ToLower(strings.TrimSpace(m.Registry))
	if !registries[m.Registry] {
		return fmt.Errorf("%w: model.registry %q", ErrInvalidConfig, m.Registry)
	}
	if m.RepoID == "" || m.Filename == "" {
		return fmt.Errorf("%w: model.repo_id and model.filename are required", ErrInvalidConfig)
	}
	if m.FetchTimeout <= 0 {
		return fmt.Errorf("%w: model.fetch_timeout must be positive", ErrInvalidConfig)
	}
	switch m.Registry {
	case "gcs":
		if m.Bucket == "" {
			return fmt.Errorf("%w: model.bucket is required for gcs", ErrInvalidConfig)
		}
	case "s3":
		if m.Bucket == "" || m.Region == "" {
			return fmt.Errorf("%w: model.bucket and model.region are required for s3", ErrInvalidConfig)
		}
	case "file":
		if m.LocalDir == "" {
			return fmt.Errorf("%w: model.local_dir is required for file", ErrInvalidConfig)
		}
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown_timeout must be positive", ErrInvalidConfig)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: write_timeout must be positive", ErrInvalidConfig)
	}
	if m.RequestLoadTimeout <= 0 || m.RequestLoadTimeout >= c.WriteTimeout {
		return fmt.Errorf("%w: model.request_load_timeout %s must be positive and below write_timeout %s",
			ErrInvalidConfig, m.RequestLoadTimeout, c.WriteTimeout)
	}
	if m.WarmInterval <= 0 {
		return fmt.Errorf("%w: model.warm_interval must be positive", ErrInvalidConfig)
	}
	if c.Metrics.RefreshInterval <= 0 {
		return fmt.Errorf("%w: metrics.refresh_interval must be positive", ErrInvalidConfig)
	}
	return nil
}
