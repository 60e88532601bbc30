// Package blob stores document files and processing receipts in S3
// compatible object storage.
package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"docket/api/internal/config"
)

// Store wraps a MinIO client bound to one bucket.
type Store struct {
	client        *minio.Client
	bucket        string
	presignExpiry time.Duration
}

// New creates a MinIO client from the configuration.
func New(cfg config.MinioConfig) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Store{
		client:        client,
		bucket:        cfg.Bucket,
		presignExpiry: time.Duration(cfg.PresignExpiryMinutes) * time.Minute,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

// UploadDocumentFile stores a file under the document's object prefix and
// returns the object key.
func (s *Store) UploadDocumentFile(ctx context.Context, documentID, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	key := documentObjectKey(documentID, filename)
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	return key, nil
}

// PresignedURL generates a time-limited download URL for an object.
func (s *Store) PresignedURL(ctx context.Context, objectKey string) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, s.presignExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign url: %w", err)
	}
	return url.String(), nil
}

// Delete removes an object.
func (s *Store) Delete(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// documentObjectKey builds the object key for a document file. The filename
// is reduced to its base name so callers cannot place objects outside the
// document's prefix.
func documentObjectKey(documentID, filename string) string {
	return "documents/" + documentID + "/" + path.Base(filename)
}
