package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tomymiron/ETH-Global/config"
)

const minioNoSuchKey = "NoSuchKey"

// MinioBackend stores objects in a single MinIO (S3-compatible) bucket.
type MinioBackend struct {
	client *minio.Client
	bucket string
}

// NewMinioBackend connects to the MinIO endpoint named in cfg.
func NewMinioBackend(cfg config.MinioConfig) (*MinioBackend, error) {
	if err := validateMinio(cfg); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioBackend{client: client, bucket: cfg.Bucket}, nil
}

func validateMinio(cfg config.MinioConfig) error {
	var errs []error
	if strings.TrimSpace(cfg.Endpoint) == "" {
		errs = append(errs, errors.New("MINIO_ENDPOINT is required"))
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		errs = append(errs, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required"))
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		errs = append(errs, errors.New("MINIO_BUCKET is required"))
	}
	return errors.Join(errs...)
}

func (m *MinioBackend) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil || exists {
		return err
	}
	return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
}

func (m *MinioBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

// Get returns ErrObjectNotFound for missing keys. GetObject is lazy, so
// the object is stat'ed before the reader is handed out.
func (m *MinioBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	object, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := object.Stat(); err != nil {
		object.Close()
		if minio.ToErrorResponse(err).Code == minioNoSuchKey {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return object, nil
}

// Delete is a no-op for keys that do not exist.
func (m *MinioBackend) Delete(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code == minioNoSuchKey {
		return nil
	}
	return err
}

func (m *MinioBackend) Bucket() string {
	return m.bucket
}
