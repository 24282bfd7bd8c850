package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/turnover/pkg/logger"
)

// DefaultHubEndpoint is the public Hugging Face hub.
const DefaultHubEndpoint = "https://huggingface.co"

const (
	defaultTimeout = 60 * time.Second
	userAgent      = "turnover/1 (model-fetch)"
)

// HubSource downloads artifacts from a model hub that serves files at
// {endpoint}/{repo}/resolve/{revision}/{filename}.
type HubSource struct {
	endpoint string
	opts     options
}

// NewHubSource creates a hub source. An empty endpoint selects
// DefaultHubEndpoint.
func NewHubSource(endpoint string, opts ...Option) *HubSource {
	if endpoint == "" {
		endpoint = DefaultHubEndpoint
	}
	return &HubSource{
		endpoint: strings.TrimRight(endpoint, "/"),
		opts:     applyOptions(opts),
	}
}

// Name implements Source.
func (h *HubSource) Name() string { return KindHub }

// URL returns the download URL for ref.
func (h *HubSource) URL(ref Ref) string {
	return h.endpoint + "/" + escapePath(ref.RepoID) + "/resolve/" + url.PathEscape(ref.Rev()) + "/" + escapePath(ref.Filename)
}

// Fetch implements Source.
func (h *HubSource) Fetch(ctx context.Context, ref Ref) ([]byte, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	u := h.URL(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if h.opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.opts.token)
	}

	start := time.Now()
	resp, err := h.opts.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, ref, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s: access denied (%d)", ErrFetch, ref, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s: unexpected status %d", ErrFetch, ref, resp.StatusCode)
	}

	data, err := readAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, ref, err)
	}
	if h.opts.logger != nil {
		h.opts.logger.Debug(ctx, "downloaded artifact",
			logger.String("url", u),
			logger.Int("bytes", len(data)),
			logger.Duration("elapsed", time.Since(start)),
		)
	}
	return data, nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
