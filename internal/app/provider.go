package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/turnover/internal/adapters/registry"
	"github.com/okian/turnover/internal/domain/features"
	"github.com/okian/turnover/internal/domain/forest"
	"github.com/okian/turnover/internal/domain/prediction"
	"github.com/okian/turnover/pkg/logger"
	"github.com/okian/turnover/pkg/metrics"
)

const defaultFetchTimeout = 60 * time.Second

// Model is a loaded classifier together with where it came from.
type Model struct {
	forest   *forest.Forest
	size     int
	loadedAt time.Time
}

// Predict scores x and returns the predicted class and the
// [P(stay), P(leave)] pair.
func (m *Model) Predict(x []float64) (int, [2]float64, error) {
	class, proba, err := m.forest.Predict(x)
	if err != nil {
		return 0, [2]float64{}, err
	}
	return class, [2]float64{proba[prediction.ClassStay], proba[prediction.ClassLeave]}, nil
}

// NumTrees is the number of estimators in the loaded forest.
func (m *Model) NumTrees() int { return m.forest.NumTrees() }

// Size is the artifact size in bytes as fetched.
func (m *Model) Size() int { return m.size }

// LoadedAt is when the model finished loading.
func (m *Model) LoadedAt() time.Time { return m.loadedAt }

// Provider fetches the artifact once and hands out the decoded model for
// the lifetime of the process. A failed load is not remembered; the next
// caller tries again.
type Provider struct {
	source  registry.Source
	ref     registry.Ref
	timeout time.Duration
	logger  logger.Logger

	mu       sync.Mutex
	inflight *loadCall
	model    atomic.Pointer[Model]
	attempts atomic.Int64
	lastErr  atomic.Value // string
}

// loadCall is one fetch-and-decode shared by every caller that arrives
// while it runs.
type loadCall struct {
	done  chan struct{}
	model *Model
	err   error
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithFetchTimeout bounds each artifact fetch.
func WithFetchTimeout(d time.Duration) ProviderOption {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithProviderLogger sets the logger used for load events.
func WithProviderLogger(l logger.Logger) ProviderOption {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProvider returns a Provider that loads ref from src on first use.
func NewProvider(src registry.Source, ref registry.Ref, opts ...ProviderOption) *Provider {
	p := &Provider{
		source:  src,
		ref:     ref,
		timeout: defaultFetchTimeout,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ref is the artifact this provider serves.
func (p *Provider) Ref() registry.Ref { return p.ref }

// SourceName is the registry kind behind the provider.
func (p *Provider) SourceName() string { return p.source.Name() }

// Loaded returns the model if a load has already succeeded.
func (p *Provider) Loaded() (*Model, bool) {
	m := p.model.Load()
	return m, m != nil
}

// Attempts is the number of loads started so far.
func (p *Provider) Attempts() int64 { return p.attempts.Load() }

// LastError is the message of the most recent failed load, if any.
func (p *Provider) LastError() string {
	s, _ := p.lastErr.Load().(string)
	return s
}

// Load returns the model, fetching and decoding it if no earlier call
// succeeded. Concurrent callers share one load. The load itself runs to
// the fetch timeout regardless of ctx; ctx only bounds how long this
// caller waits for it, and giving up yields ErrModelUnavailable.
func (p *Provider) Load(ctx context.Context) (*Model, error) {
	if m := p.model.Load(); m != nil {
		return m, nil
	}

	call := p.start(ctx)
	select {
	case <-call.done:
		return call.model, call.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: still loading: %v", ErrModelUnavailable, ctx.Err())
	}
}

// start joins the load in flight or begins a new one.
func (p *Provider) start(ctx context.Context) *loadCall {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inflight != nil {
		return p.inflight
	}
	call := &loadCall{done: make(chan struct{})}
	if m := p.model.Load(); m != nil {
		call.model = m
		close(call.done)
		return call
	}
	p.inflight = call

	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	go func() {
		defer cancel()
		call.model, call.err = p.loadOnce(loadCtx)

		p.mu.Lock()
		p.inflight = nil
		p.mu.Unlock()
		close(call.done)
	}()
	return call
}

func (p *Provider) loadOnce(ctx context.Context) (*Model, error) {
	p.attempts.Add(1)
	metrics.RecordModelLoadAttempt()
	start := time.Now()

	m, reason, err := p.load(ctx)
	if err != nil {
		metrics.RecordModelLoadFailure(reason)
		metrics.RecordErrorByComponent("provider", reason)
		p.lastErr.Store(err.Error())
		p.logger.Error(ctx, "model load failed",
			logger.String("artifact", p.ref.String()),
			logger.String("registry", p.source.Name()),
			logger.String("reason", reason),
			logger.Duration("took", time.Since(start)),
			logger.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	took := time.Since(start)
	m.loadedAt = time.Now()
	p.model.Store(m)
	p.lastErr.Store("")
	metrics.RecordModelLoaded(took, m.size, m.NumTrees())
	p.logger.Info(ctx, "model loaded",
		logger.String("artifact", p.ref.String()),
		logger.String("registry", p.source.Name()),
		logger.Int("bytes", m.size),
		logger.Int("trees", m.NumTrees()),
		logger.Duration("took", took),
	)
	return m, nil
}

// load fetches and decodes the artifact. With a Committer source the blob
// is committed only once it decodes; a stored copy that does not decode
// is evicted and fetched again from the backend.
func (p *Provider) load(ctx context.Context) (*Model, string, error) {
	if err := p.ref.Validate(); err != nil {
		return nil, "invalid_ref", err
	}
	committer, staged := p.source.(registry.Committer)

	for {
		data, err := p.source.Fetch(ctx, p.ref)
		if err != nil {
			reason := "fetch"
			if errors.Is(err, registry.ErrNotFound) {
				reason = "not_found"
			}
			return nil, reason, err
		}

		f, reason, err := decodeModel(data)
		if err == nil {
			if staged {
				if err := committer.Commit(p.ref); err != nil {
					// The model is usable; only the stored copy is lost.
					p.logger.Warn(ctx, "artifact not cached", logger.Error(err))
				}
			}
			return &Model{forest: f, size: len(data)}, "", nil
		}
		if !staged {
			return nil, reason, err
		}
		stale, derr := committer.Discard(p.ref)
		if derr != nil {
			p.logger.Warn(ctx, "unusable artifact not evicted", logger.Error(derr))
		}
		if !stale || derr != nil {
			return nil, reason, err
		}
		p.logger.Warn(ctx, "stored artifact unusable; refetching",
			logger.String("artifact", p.ref.String()),
			logger.Error(err),
		)
	}
}

func decodeModel(data []byte) (*forest.Forest, string, error) {
	f, err := forest.Decode(data, forest.WithFeatureNames(features.Names()))
	if err != nil {
		return nil, "decode", err
	}
	classes := f.Classes()
	if len(classes) != 2 || classes[0] != prediction.ClassStay || classes[1] != prediction.ClassLeave {
		return nil, "classes", fmt.Errorf("%w: classes %v, want [0 1]", ErrUnsupportedModel, classes)
	}
	return f, "", nil
}
