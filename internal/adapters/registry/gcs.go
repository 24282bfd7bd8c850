package registry

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSSource reads artifacts from a Google Cloud Storage bucket at
// {bucket}/{repo}/{filename}. Credentials come from the given file or,
// when empty, from application default credentials.
type GCSSource struct {
	client *storage.Client
	bucket string
}

// NewGCSSource creates a GCS source. endpoint is optional and mostly used
// with the storage emulator.
func NewGCSSource(ctx context.Context, bucket, endpoint, credentialsFile string) (*GCSSource, error) {
	if bucket == "" {
		return nil, fmt.Errorf("%w: bucket must not be empty", ErrInvalidRef)
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create GCS client: %v", ErrFetch, err)
	}
	return &GCSSource{client: client, bucket: bucket}, nil
}

// Name implements Source.
func (g *GCSSource) Name() string { return KindGCS }

// Fetch implements Source.
func (g *GCSSource) Fetch(ctx context.Context, ref Ref) ([]byte, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	rc, err := g.client.Bucket(g.bucket).Object(ref.ObjectKey()).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrNotFound, g.bucket, ref.ObjectKey())
		}
		return nil, fmt.Errorf("%w: failed to create object reader: %v", ErrFetch, err)
	}
	defer rc.Close()

	data, err := readAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: gs://%s/%s: %w", ErrFetch, g.bucket, ref.ObjectKey(), err)
	}
	return data, nil
}

// Close releases the underlying client.
func (g *GCSSource) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
