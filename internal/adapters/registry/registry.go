// Package registry fetches serialized model artifacts from remote model
// registries.
//
// An artifact is addressed by a Ref: a repository id, a file name inside
// that repository, and a revision. Sources resolve a Ref against one
// concrete backend (a model hub over HTTP, a GCS or S3 bucket, or a local
// directory) and return the raw bytes; decoding is the caller's business.
package registry

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// Registry kinds accepted by Open.
const (
	KindHub  = "hub"
	KindGCS  = "gcs"
	KindS3   = "s3"
	KindFile = "file"
)

// DefaultRevision is used when a Ref leaves Revision empty.
const DefaultRevision = "main"

// MaxArtifactSize bounds how much a source will read for one artifact.
const MaxArtifactSize int64 = 512 << 20

// Ref addresses one artifact file.
type Ref struct {
	RepoID   string
	Filename string
	Revision string
}

// Validate rejects refs that are empty or could escape their repository.
func (r Ref) Validate() error {
	if strings.TrimSpace(r.RepoID) == "" {
		return fmt.Errorf("%w: empty repo id", ErrInvalidRef)
	}
	if strings.TrimSpace(r.Filename) == "" {
		return fmt.Errorf("%w: empty filename", ErrInvalidRef)
	}
	for _, part := range []string{r.RepoID, r.Filename, r.Revision} {
		if strings.HasPrefix(part, "/") || strings.Contains(part, "\\") {
			return fmt.Errorf("%w: %q", ErrInvalidRef, part)
		}
		for _, seg := range strings.Split(part, "/") {
			if seg == ".." {
				return fmt.Errorf("%w: %q", ErrInvalidRef, part)
			}
		}
	}
	return nil
}

// Rev returns the revision, falling back to DefaultRevision.
func (r Ref) Rev() string {
	if r.Revision == "" {
		return DefaultRevision
	}
	return r.Revision
}

// ObjectKey is the key of the artifact inside a bucket or directory.
func (r Ref) ObjectKey() string {
	return path.Join(r.RepoID, r.Filename)
}

func (r Ref) String() string {
	return r.RepoID + "/" + r.Filename + "@" + r.Rev()
}

// Source fetches artifact bytes.
type Source interface {
	// Name identifies the backend, e.g. "hub".
	Name() string
	// Fetch returns the artifact addressed by ref.
	Fetch(ctx context.Context, ref Ref) ([]byte, error)
}

// Settings selects and configures a Source.
type Settings struct {
	Kind string

	// hub
	Endpoint string
	Token    string

	// gcs / s3
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	CredentialsFile string

	// file
	LocalDir string

	// CacheDir enables the on-disk cache when non-empty.
	CacheDir string
}

// Open builds the Source described by s, wrapped in a disk cache when
// s.CacheDir is set.
func Open(ctx context.Context, s Settings, opts ...Option) (Source, error) {
	var (
		src Source
		err error
	)
	switch strings.ToLower(strings.TrimSpace(s.Kind)) {
	case "", KindHub:
		src = NewHubSource(s.Endpoint, append([]Option{WithToken(s.Token)}, opts...)...)
	case KindGCS:
		src, err = NewGCSSource(ctx, s.Bucket, s.Endpoint, s.CredentialsFile)
	case KindS3:
		src, err = NewS3Source(ctx, S3Config{
			Bucket:          s.Bucket,
			Region:          s.Region,
			Endpoint:        s.Endpoint,
			AccessKeyID:     s.AccessKeyID,
			SecretAccessKey: s.SecretAccessKey,
		})
	case KindFile:
		src, err = NewFileSource(s.LocalDir)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegistry, s.Kind)
	}
	if err != nil {
		return nil, err
	}
	if s.CacheDir != "" {
		src = NewCachedSource(src, s.CacheDir, opts...)
	}
	return src, nil
}

// Committer is implemented by sources that hold on to fetched artifacts.
// After a Fetch the caller reports the outcome: Commit once the blob
// decoded, Discard when it did not. Discard reports whether the rejected
// blob was a stored copy, in which case a new Fetch goes to the backend.
type Committer interface {
	Commit(ref Ref) error
	Discard(ref Ref) (stale bool, err error)
}

// Close releases src if it holds resources.
func Close(src Source) error {
	if closer, ok := src.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// readAll reads r up to MaxArtifactSize.
func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxArtifactSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxArtifactSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, MaxArtifactSize)
	}
	return data, nil
}
