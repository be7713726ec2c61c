// Package mirror replicates garbage-collected blobs to an upstream
// S3-compatible bucket before the local copy is purged. It is additive to
// the ported core: the local backend (internal/objectstore/local) only
// ever serves the byte plane underneath bucket/object metadata, and
// mirroring is the one place this repository talks to a real S3 endpoint
// rather than implementing one.
package mirror

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/cobaltfs/objectstore/internal/credentials"
)

// Config configures the upstream mirror.
type Config struct {
	// Enabled turns replication on. When false, NewMirror returns a
	// no-op Mirror so callers never need a nil check.
	Enabled bool

	// Endpoint is the upstream S3-compatible service URL. Empty selects
	// the SDK's default AWS endpoint resolution for Region.
	Endpoint string

	// Region is both the signing region and (absent Endpoint) the AWS
	// region the SDK resolves an endpoint for.
	Region string

	// Bucket is the destination bucket for mirrored blobs.
	Bucket string

	// UsePathStyle forces path-style addressing, required by most
	// non-AWS S3-compatible endpoints.
	UsePathStyle bool
}

// Mirror replicates blob content to an upstream bucket.
type Mirror interface {
	// Replicate uploads size bytes from r as contentHash, so a later
	// restore can fetch it back by the same key the local backend used.
	Replicate(ctx context.Context, contentHash string, r io.Reader, size int64) error
}

// noopMirror is returned when mirroring is disabled.
type noopMirror struct{}

func (noopMirror) Replicate(context.Context, string, io.Reader, int64) error { return nil }

// Client mirrors blobs via aws-sdk-go-v2/service/s3, authorizing through
// an aws.CredentialsProvider adapter over this repository's own
// credential-provider chain (see credentials_adapter.go) rather than the
// SDK's default IMDS/ECS/EKS discovery.
type Client struct {
	s3     *s3.Client
	bucket string
	logger zerolog.Logger
}

// New builds a Mirror from cfg. provider may be nil, in which case the SDK
// falls back to its own default credential chain (useful when the host
// environment already has AWS credentials configured some other way).
func New(ctx context.Context, cfg Config, provider *credentials.Cache, logger zerolog.Logger) (Mirror, error) {
	if !cfg.Enabled {
		return noopMirror{}, nil
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("mirror: bucket is required when enabled")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if provider != nil {
		opts = append(opts, awsconfig.WithCredentialsProvider(newCredentialsAdapter(provider)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("mirror: loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &Client{
		s3:     client,
		bucket: cfg.Bucket,
		logger: logger.With().Str("component", "mirror").Logger(),
	}, nil
}

// Replicate implements Mirror.
func (c *Client) Replicate(ctx context.Context, contentHash string, r io.Reader, size int64) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(contentHash),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("mirror: replicating blob %s: %w", contentHash, err)
	}
	c.logger.Debug().Str("content_hash", contentHash).Int64("size", size).Msg("replicated blob upstream")
	return nil
}
