package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBucket    = "resumes"
	defaultRegion    = "us-east-1"
	defaultURLExpiry = 24 * time.Hour
	pdfContentType   = "application/pdf"
)

type Opts func(c *config)

type config struct {
	endpoint        string
	bucket          string
	region          string
	accessKey       string
	secretAccessKey string
	useSSL          bool
	urlExpiry       time.Duration
}

func newConfig(opts ...Opts) *config {
	cfg := &config{
		bucket:    defaultBucket,
		region:    defaultRegion,
		urlExpiry: defaultURLExpiry,
	}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// ResumeStore keeps uploaded resumes in an S3 compatible bucket and hands
// out presigned URLs the analysis service can download them from.
type ResumeStore struct {
	cfg    *config
	client *minio.Client
	tracer trace.Tracer
	newID  func() string
}

func NewResumeStore(opts ...Opts) (*ResumeStore, error) {
	cfg := newConfig(opts...)
	if cfg.endpoint == "" {
		return nil, fmt.Errorf("object storage endpoint is required")
	}

	client, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKey, cfg.secretAccessKey, ""),
		Secure: cfg.useSSL,
		Region: cfg.region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	return &ResumeStore{
		cfg:    cfg,
		client: client,
		tracer: otel.Tracer("resume-store"),
		newID:  uuid.NewString,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *ResumeStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.cfg.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.cfg.bucket, minio.MakeBucketOptions{Region: s.cfg.region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.cfg.bucket, err)
	}
	return nil
}

// PutResume uploads body under <subject>/<uuid>-<filename> and returns a
// presigned download URL.
func (s *ResumeStore) PutResume(ctx context.Context, subjectID, filename string, body io.Reader, size int64) (string, error) {
	ctx, span := s.tracer.Start(ctx, "resume_store.put")
	defer span.End()

	key := s.objectKey(subjectID, filename)
	span.SetAttributes(
		attribute.String("user.id", subjectID),
		attribute.String("storage.key", key),
		attribute.Int64("storage.size", size),
	)

	if _, err := s.client.PutObject(ctx, s.cfg.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: pdfContentType,
	}); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to upload resume: %w", err)
	}

	u, err := s.client.PresignedGetObject(ctx, s.cfg.bucket, key, s.cfg.urlExpiry, nil)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to presign resume url: %w", err)
	}
	return u.String(), nil
}

func (s *ResumeStore) objectKey(subjectID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "resume.pdf"
	}
	return subjectID + "/" + s.newID() + "-" + name
}

func WithEndpoint(endpoint string) Opts {
	return func(c *config) {
		c.endpoint = endpoint
	}
}

func WithBucket(bucket string) Opts {
	return func(c *config) {
		if bucket != "" {
			c.bucket = bucket
		}
	}
}

func WithRegion(region string) Opts {
	return func(c *config) {
		if region != "" {
			c.region = region
		}
	}
}

func WithAccessKey(accessKey string) Opts {
	return func(c *config) {
		c.accessKey = accessKey
	}
}

func WithSecretKey(secretKey string) Opts {
	return func(c *config) {
		c.secretAccessKey = secretKey
	}
}

func WithSSL(useSSL bool) Opts {
	return func(c *config) {
		c.useSSL = useSSL
	}
}

func WithURLExpiry(d time.Duration) Opts {
	return func(c *config) {
		if d > 0 {
			c.urlExpiry = d
		}
	}
}
