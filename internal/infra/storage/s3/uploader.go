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
)

// Uploader stores binary content under a key and returns a public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (publicURL string, err error)
}

// Config points the photo store at an S3-compatible endpoint. The
// public endpoint is what ends up in listing image URLs; it differs
// from Endpoint when the bucket sits behind a proxy.
type Config struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

// PhotoStore keeps listing photos in a MinIO/S3 bucket. Photos are
// immutable once written, so object URLs carry a long cache lifetime.
type PhotoStore struct {
	bucket         string
	publicBaseURL  string
	client         *minio.Client
	logger         *slog.Logger
	bucketInitOnce sync.Once
	bucketInitErr  error
}

const photoCacheControl = "public, max-age=86400"

func New(cfg Config, logger *slog.Logger) (*PhotoStore, error) {
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

	base := strings.TrimSpace(cfg.PublicEndpoint)
	if base == "" {
		base = endpoint
	}
	return &PhotoStore{
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(base, "/"),
		client:        client,
		logger:        logger,
	}, nil
}

// Upload writes the photo and returns its public URL. The bucket is
// created on first use and opened for anonymous reads, since listing
// images are embedded in pages served to anyone.
func (s *PhotoStore) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	if reader == nil {
		return "", errors.New("s3: reader is required")
	}
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("s3: object key is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, reader, -1, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: photoCacheControl,
	})
	if err != nil {
		return "", fmt.Errorf("s3: put object: %w", err)
	}

	publicURL := s.objectURL(key)
	if s.logger != nil {
		s.logger.Info("photo stored", "bucket", s.bucket, "key", key, "url", publicURL)
	}
	return publicURL, nil
}

// NoopUploader fails fast when object storage is not configured.
type NoopUploader struct{}

func (NoopUploader) Upload(context.Context, string, io.Reader, string) (string, error) {
	return "", errors.New("s3: uploader is not configured")
}

func (s *PhotoStore) ensureBucket(ctx context.Context) error {
	s.bucketInitOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.bucketInitErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
				s.bucketInitErr = fmt.Errorf("s3: create bucket: %w", err)
				return
			}
		}
		policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, s.bucket)
		if err := s.client.SetBucketPolicy(ctx, s.bucket, policy); err != nil {
			s.bucketInitErr = fmt.Errorf("s3: set bucket policy: %w", err)
		}
	})
	return s.bucketInitErr
}

func (s *PhotoStore) objectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucket, key)
}

// hostOf strips the scheme; the minio client wants a bare host.
func hostOf(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var (
	_ Uploader = (*PhotoStore)(nil)
	_ Uploader = NoopUploader{}
)
