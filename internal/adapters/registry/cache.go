package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/okian/turnover/pkg/logger"
)

const (
	cacheDirPermission  = 0o755
	cacheFilePermission = 0o644
)

// CachedSource keeps a copy of fetched artifacts on disk at
// {dir}/{source}/{repo}/{revision}/{filename} and serves later fetches of
// the same ref from there. A blob fetched from the backend is only staged
// in memory; it reaches the disk when the caller commits it.
type CachedSource struct {
	src  Source
	dir  string
	opts options

	mu     sync.Mutex
	staged map[string][]byte
	hits   map[string]bool
}

// NewCachedSource wraps src with a disk cache rooted at dir.
func NewCachedSource(src Source, dir string, opts ...Option) *CachedSource {
	return &CachedSource{
		src:    src,
		dir:    dir,
		opts:   applyOptions(opts),
		staged: make(map[string][]byte),
		hits:   make(map[string]bool),
	}
}

// Name implements Source.
func (c *CachedSource) Name() string { return c.src.Name() }

// Path returns where ref is cached.
func (c *CachedSource) Path(ref Ref) string {
	return filepath.Join(c.dir, c.src.Name(), filepath.FromSlash(ref.RepoID), ref.Rev(), filepath.FromSlash(ref.Filename))
}

// Fetch implements Source.
func (c *CachedSource) Fetch(ctx context.Context, ref Ref) ([]byte, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	p := c.Path(ref)

	data, err := os.ReadFile(p)
	switch {
	case err == nil:
		c.debug(ctx, "artifact cache hit", logger.String("path", p))
		c.record(p, nil, true)
		return data, nil
	case !errors.Is(err, fs.ErrNotExist):
		c.warn(ctx, "artifact cache unreadable; fetching", logger.String("path", p), logger.Error(err))
	}

	data, err = c.src.Fetch(ctx, ref)
	if err != nil {
		c.record(p, nil, false)
		return nil, err
	}
	c.record(p, data, false)
	return data, nil
}

// Commit implements Committer. It writes the blob staged by the last
// Fetch of ref; after a cache hit there is nothing to write.
func (c *CachedSource) Commit(ref Ref) error {
	p := c.Path(ref)
	c.mu.Lock()
	data, ok := c.staged[p]
	delete(c.staged, p)
	delete(c.hits, p)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	if err := writeAtomic(p, data); err != nil {
		return fmt.Errorf("cache %s: %w", ref, err)
	}
	c.debug(context.Background(), "artifact cached", logger.String("path", p), logger.Int("bytes", len(data)))
	return nil
}

// Discard implements Committer. A staged blob is dropped; a blob that was
// served from disk is removed so the next Fetch asks the backend.
func (c *CachedSource) Discard(ref Ref) (bool, error) {
	p := c.Path(ref)
	c.mu.Lock()
	hit := c.hits[p]
	delete(c.staged, p)
	delete(c.hits, p)
	c.mu.Unlock()
	if !hit {
		return false, nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("evict %s: %w", ref, err)
	}
	c.warn(context.Background(), "cached artifact evicted", logger.String("path", p))
	return true, nil
}

func (c *CachedSource) record(p string, data []byte, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if data != nil {
		c.staged[p] = data
	} else {
		delete(c.staged, p)
	}
	c.hits[p] = hit
}

// Close closes the wrapped source.
func (c *CachedSource) Close() error { return Close(c.src) }

func (c *CachedSource) debug(ctx context.Context, msg string, fields ...logger.Field) {
	if c.opts.logger != nil {
		c.opts.logger.Debug(ctx, msg, fields...)
	}
}

func (c *CachedSource) warn(ctx context.Context, msg string, fields ...logger.Field) {
	if c.opts.logger != nil {
		c.opts.logger.Warn(ctx, msg, fields...)
	}
}

func writeAtomic(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), cacheDirPermission); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".partial-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), cacheFilePermission); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	return os.Rename(tmp.Name(), p)
}
