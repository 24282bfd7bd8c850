package smoketest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/turnover/pkg/logger"
)

// HTTPClient wraps http.Client with a per-request timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.PostRaw(ctx, url, data)
}

// PostRaw sends data unchanged as a JSON request body.
func (c *HTTPClient) PostRaw(ctx context.Context, url string, data []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

func readResponseBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

// submitRequests scores every request concurrently and returns the results
// in request order.
func submitRequests(ctx context.Context, cfg *Config, reqs []Request, stats *Stats) []Result {
	log := logger.Get()
	log.Info(ctx, "submitting prediction requests",
		logger.Int("count", len(reqs)),
		logger.Int("workers", cfg.Workers),
	)

	client := newHTTPClient(cfg.Timeout)
	url := cfg.BaseURL + "/predict"
	results := make([]Result, len(reqs))

	var (
		submitted   atomic.Int64
		successful  atomic.Int64
		unavailable atomic.Int64
		failed      atomic.Int64
		lastReport  atomic.Int64
	)

	jobs := make(chan int, cfg.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					return
				}
				res := submitSingle(ctx, client, url, reqs[idx])
				results[idx] = res

				submitted.Add(1)
				switch outcome(res) {
				case outcomeSuccess:
					successful.Add(1)
				case outcomeUnavailable:
					unavailable.Add(1)
				default:
					failed.Add(1)
				}
				if cfg.Verbose {
					log.Debug(ctx, "prediction",
						logger.Int("index", idx),
						logger.Int("status", res.Status),
						logger.String("error", res.Error),
					)
				}

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if now-last >= int64(progressInterval) && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "progress",
						logger.Int64("submitted", submitted.Load()),
						logger.Int("total", len(reqs)),
						logger.Int64("successful", successful.Load()),
						logger.Int64("unavailable", unavailable.Load()),
						logger.Int64("failed", failed.Load()),
					)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range reqs {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	wg.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Successful = int(successful.Load())
	stats.Unavailable = int(unavailable.Load())
	stats.Failed = int(failed.Load())

	log.Info(ctx, "prediction requests completed",
		logger.Int("successful", stats.Successful),
		logger.Int("unavailable", stats.Unavailable),
		logger.Int("failed", stats.Failed),
	)
	return results
}

func submitSingle(ctx context.Context, client *HTTPClient, url string, r Request) Result {
	res := Result{Request: r}
	resp, err := client.Post(ctx, url, r)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	body, err := readResponseBody(resp)
	res.Status = resp.StatusCode
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if resp.StatusCode != http.StatusOK {
		res.Error = string(bytes.TrimSpace(body))
		return res
	}
	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		res.Error = fmt.Sprintf("decode response: %v", err)
		return res
	}
	res.Response = &out
	return res
}

func outcome(r Result) string {
	switch {
	case r.Response != nil:
		return outcomeSuccess
	case r.Status == http.StatusServiceUnavailable:
		return outcomeUnavailable
	default:
		return outcomeFailed
	}
}
