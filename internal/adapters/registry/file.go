package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileSource reads artifacts from {dir}/{repo}/{filename}. It is meant for
// air-gapped deployments and tests; the revision is ignored.
type FileSource struct {
	dir string
}

// NewFileSource creates a source rooted at dir, which must exist.
func NewFileSource(dir string) (*FileSource, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: local dir must not be empty", ErrInvalidRef)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrFetch, dir)
	}
	return &FileSource{dir: dir}, nil
}

// Name implements Source.
func (f *FileSource) Name() string { return KindFile }

// Fetch implements Source.
func (f *FileSource) Fetch(_ context.Context, ref Ref) ([]byte, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	fh, err := os.Open(filepath.Join(f.dir, filepath.FromSlash(ref.ObjectKey())))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, ref, err)
	}
	defer fh.Close()

	data, err := readAll(fh)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, ref, err)
	}
	return data, nil
}
