package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config configures an S3Source.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for MinIO and other S3 compatibles
	AccessKeyID     string // optional, falls back to the default chain
	SecretAccessKey string
}

// S3Source reads artifacts from an S3 bucket at {bucket}/{repo}/{filename}.
type S3Source struct {
	client *s3.Client
	bucket string
}

// NewS3Source creates an S3 source.
func NewS3Source(ctx context.Context, c S3Config) (*S3Source, error) {
	if c.Bucket == "" {
		return nil, fmt.Errorf("%w: bucket must not be empty", ErrInvalidRef)
	}
	if c.Region == "" {
		return nil, fmt.Errorf("%w: region must not be empty", ErrInvalidRef)
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load AWS config: %v", ErrFetch, err)
	}

	var client *s3.Client
	if c.Endpoint != "" {
		client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(cfg)
	}
	return &S3Source{client: client, bucket: c.Bucket}, nil
}

// Name implements Source.
func (s *S3Source) Name() string { return KindS3 }

// Fetch implements Source.
func (s *S3Source) Fetch(ctx context.Context, ref Ref) ([]byte, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref.ObjectKey()),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, ref.ObjectKey())
		}
		return nil, fmt.Errorf("%w: s3://%s/%s: %v", ErrFetch, s.bucket, ref.ObjectKey(), err)
	}
	defer out.Body.Close()

	data, err := readAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: s3://%s/%s: %w", ErrFetch, s.bucket, ref.ObjectKey(), err)
	}
	return data, nil
}
