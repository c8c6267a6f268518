// Package s3publisher uploads staged artifacts to S3, skipping files whose
// content already matches the stored object.
package s3publisher

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // content digest compared with S3 ETags, not a security boundary
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/couchcryptid/covid-data-etl/internal/config"
	"github.com/couchcryptid/covid-data-etl/internal/domain"
	"github.com/couchcryptid/covid-data-etl/internal/observability"
	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
)

// md5MetadataKey stores the content digest for objects whose ETag is not an
// MD5, such as multipart uploads.
const md5MetadataKey = "md5"

// S3API is the subset of the S3 client used by the Publisher.
type S3API interface {
	HeadObject(ctx context.Context, input *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher compares staged files with their S3 objects and uploads the ones
// that changed.
type Publisher struct {
	client     S3API
	bucket     string
	dataset    string
	verify     bool
	encrypt    bool
	maxRetries int

	initialBackoff time.Duration
	maxBackoff     time.Duration

	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithS3Client sets a custom S3 client.
func WithS3Client(c S3API) Option {
	return func(p *Publisher) { p.client = c }
}

// WithBackoff overrides the delay schedule between PutObject attempts.
func WithBackoff(initial, maxBackoff time.Duration) Option {
	return func(p *Publisher) {
		p.initialBackoff = initial
		p.maxBackoff = maxBackoff
	}
}

// New creates a Publisher writing under <dataset>/dataset/ in cfg.Bucket.
func New(ctx context.Context, cfg config.S3Config, dataset string, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("S3_BUCKET is required")
	}
	if dataset == "" {
		return nil, errors.New("dataset name is required")
	}

	p := &Publisher{
		bucket:         cfg.Bucket,
		dataset:        dataset,
		verify:         cfg.VerifyUpload,
		encrypt:        cfg.ServerSideEncryption,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: 200 * time.Millisecond,
		maxBackoff:     5 * time.Second,
		logger:         logger,
		metrics:        metrics,
	}
	for _, o := range opts {
		o(p)
	}

	if p.client == nil {
		client, err := newClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		p.client = client
		if cfg.EndpointURL != "" {
			logger.Info("using custom S3 endpoint", "endpoint", cfg.EndpointURL)
		}
	}
	return p, nil
}

func newClient(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	if cfg.EndpointURL == "" {
		return s3.NewFromConfig(awsCfg), nil
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.EndpointURL)
		o.UsePathStyle = true // MinIO and other S3-compatible stores
	}), nil
}

// Publish uploads every artifact whose content differs from the stored
// object and returns one result per artifact, in order. A missing object
// counts as changed.
func (p *Publisher) Publish(ctx context.Context, artifacts []domain.Artifact) ([]domain.Upload, error) {
	uploads := make([]domain.Upload, 0, len(artifacts))
	for _, a := range artifacts {
		u, err := p.publishOne(ctx, a)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

func (p *Publisher) publishOne(ctx context.Context, a domain.Artifact) (domain.Upload, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("read artifact %s: %w", a.Name, err)
	}
	sum := md5.Sum(data) //nolint:gosec // digest only
	digest := hex.EncodeToString(sum[:])

	asset := domain.Asset{Bucket: p.bucket, Key: domain.ObjectKey(p.dataset, a.Name)}

	stored, err := p.storedDigest(ctx, asset.Key)
	if err != nil {
		return domain.Upload{}, err
	}
	if stored == digest {
		p.logger.Info("unchanged", "key", asset.Key, "md5", digest)
		p.metrics.Artifacts.WithLabelValues("unchanged").Inc()
		return domain.Upload{Asset: asset}, nil
	}

	if err := p.putWithRetry(ctx, asset.Key, data, sum[:], digest); err != nil {
		return domain.Upload{}, err
	}
	if p.verify {
		if err := p.verifyUpload(ctx, asset.Key, int64(len(data))); err != nil {
			return domain.Upload{}, err
		}
	}

	p.logger.Info("uploaded", "key", asset.Key, "bytes", len(data), "md5", digest)
	p.metrics.Artifacts.WithLabelValues("uploaded").Inc()
	return domain.Upload{Asset: asset, Changed: true}, nil
}

// storedDigest returns the hex MD5 of the stored object, or "" when the
// object does not exist.
func (p *Publisher) storedDigest(ctx context.Context, key string) (string, error) {
	out, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("head object %s: %w", key, err)
	}

	etag := strings.Trim(aws.ToString(out.ETag), `"`)
	if strings.Contains(etag, "-") {
		return out.Metadata[md5MetadataKey], nil
	}
	return etag, nil
}

func (p *Publisher) putWithRetry(ctx context.Context, key string, data, sum []byte, digest string) error {
	backoff := p.initialBackoff
	for attempt := 0; ; attempt++ {
		input := &s3.PutObjectInput{
			Bucket:      aws.String(p.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentMD5:  aws.String(base64.StdEncoding.EncodeToString(sum)),
			ContentType: aws.String("text/csv"),
			Metadata:    map[string]string{md5MetadataKey: digest},
		}
		if p.encrypt {
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		}

		_, err := p.client.PutObject(ctx, input)
		if err == nil {
			return nil
		}
		if attempt >= p.maxRetries || ctx.Err() != nil {
			return fmt.Errorf("put object %s after %d attempt(s): %w", key, attempt+1, err)
		}

		p.logger.Warn("put object failed, retrying", "key", key, "attempt", attempt+1, "error", err, "wait", backoff)
		if !sharedretry.SleepWithContext(ctx, backoff) {
			return fmt.Errorf("put object %s: %w", key, ctx.Err())
		}
		backoff = sharedretry.NextBackoff(backoff, p.maxBackoff)
	}
}

func (p *Publisher) verifyUpload(ctx context.Context, key string, size int64) error {
	out, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("verify upload %s: %w", key, err)
	}
	if got := aws.ToInt64(out.ContentLength); got != size {
		return fmt.Errorf("verify upload %s: size mismatch: expected %d bytes, got %d", key, size, got)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
