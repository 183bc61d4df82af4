package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alnah/go-shadowing/internal/apierr"
)

// S3Config holds the configuration for S3 publishing.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for S3-compatible stores, enables path-style addressing
	Prefix          string // Optional: key prefix, e.g. "drills/"
	AccessKeyID     string // Optional: falls back to the default credential chain
	SecretAccessKey string
}

// Enabled reports whether enough is configured to publish.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.Region != ""
}

// objectPutter is the subset of *s3.Client used for uploads.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads outputs to a bucket. Safe for concurrent use.
type S3Publisher struct {
	client objectPutter
	cfg    S3Config
	retry  apierr.RetryConfig
	logger *slog.Logger
}

var _ Publisher = (*S3Publisher)(nil)

// S3Option configures an S3Publisher.
type S3Option func(*S3Publisher)

// WithRetry overrides the upload retry policy.
func WithRetry(rc apierr.RetryConfig) S3Option {
	return func(p *S3Publisher) {
		p.retry = rc
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *slog.Logger) S3Option {
	return func(p *S3Publisher) {
		p.logger = l
	}
}

// withClient replaces the SDK client (for testing).
func withClient(c objectPutter) S3Option {
	return func(p *S3Publisher) {
		p.client = c
	}
}

// NewS3Publisher loads AWS configuration and builds a publisher.
// The SDK's own retryer is limited to one attempt; retries are driven by
// apierr so that they are classified and logged consistently.
func NewS3Publisher(ctx context.Context, cfg S3Config, opts ...S3Option) (*S3Publisher, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: bucket and region are required", ErrNotConfigured)
	}

	p := &S3Publisher{
		cfg:    cfg,
		retry:  apierr.DefaultRetryConfig,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client != nil {
		return p, nil
	}

	configOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	p.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.RetryMaxAttempts = 1
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return p, nil
}

// Publish uploads localPath under the configured prefix and returns its URL.
// The file is reopened for every attempt.
func (p *S3Publisher) Publish(ctx context.Context, localPath string) (string, error) {
	key := ObjectKey(p.cfg.Prefix, localPath)
	log := p.logger.With(slog.String("key", key))

	rc := p.retry
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn("upload failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err))
	}

	_, err := apierr.RetryWithBackoff(ctx, rc, func(int) (struct{}, error) {
		return struct{}{}, p.put(ctx, key, localPath)
	}, apierr.Retryable)
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", key, err)
	}

	log.Debug("published", slog.String("bucket", p.cfg.Bucket))
	return p.URL(key), nil
}

func (p *S3Publisher) put(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(ContentType(localPath)),
	})
	return apierr.Classify(err)
}

// URL returns where key can be fetched from.
func (p *S3Publisher) URL(key string) string {
	if p.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(p.cfg.Endpoint, "/"), p.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.cfg.Bucket, p.cfg.Region, key)
}
