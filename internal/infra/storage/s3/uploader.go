// Package s3 stores chat attachments in an S3-compatible bucket and hands
// back durable public URLs for message payloads.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"adopet/internal/app/policies"
)

// AttachmentStore uploads image and audio blobs for chat messages.
type AttachmentStore struct {
	bucket     string
	publicBase string
	client     *minio.Client
	logger     *slog.Logger

	initOnce sync.Once
	initErr  error
}

// Config holds connection settings for the object store.
type Config struct {
	Endpoint      string
	PublicBaseURL string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
}

// NewAttachmentStore builds an uploader. The bucket is created on first
// use and made publicly readable so attachment URLs stay durable.
func NewAttachmentStore(cfg Config, logger *slog.Logger) (*AttachmentStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	client, err := minio.New(hostOf(endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}

	base := strings.TrimSpace(cfg.PublicBaseURL)
	if base == "" {
		base = endpoint
	}
	return &AttachmentStore{
		bucket:     bucket,
		publicBase: strings.TrimRight(base, "/"),
		client:     client,
		logger:     logger,
	}, nil
}

// Upload stores the blob under key and returns its public URL.
func (a *AttachmentStore) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	if reader == nil {
		return "", errors.New("s3: reader is required")
	}
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("s3: object key is required")
	}
	if err := a.ensureBucket(ctx); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if _, err := a.client.PutObject(ctx, a.bucket, key, reader, -1, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", fmt.Errorf("s3: put object: %w", err)
	}

	publicURL := fmt.Sprintf("%s/%s/%s", a.publicBase, a.bucket, key)
	if a.logger != nil {
		a.logger.Info("attachment uploaded", "bucket", a.bucket, "key", key, "content_type", contentType)
	}
	return publicURL, nil
}

func (a *AttachmentStore) ensureBucket(ctx context.Context) error {
	a.initOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucket)
		if err != nil {
			a.initErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			a.initErr = fmt.Errorf("s3: create bucket: %w", err)
			return
		}
		policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, a.bucket)
		if err := a.client.SetBucketPolicy(ctx, a.bucket, policy); err != nil {
			a.initErr = fmt.Errorf("s3: set bucket policy: %w", err)
		}
	})
	return a.initErr
}

func hostOf(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ policies.Uploader = (*AttachmentStore)(nil)
