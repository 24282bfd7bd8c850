package registry

import (
	"net/http"
	"time"

	"github.com/okian/turnover/pkg/logger"
)

// Option applies a configuration option to a source.
type Option func(*options)

type options struct {
	token   string
	client  *http.Client
	timeout time.Duration
	logger  logger.Logger
}

// WithToken sets the bearer token sent to the hub.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithHTTPClient overrides the hub HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.client = c
		}
	}
}

// WithTimeout bounds a single hub download.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the logger used for cache and download events.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: o.timeout}
	}
	return o
}
