// Package gcs uploads fileset members to a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Store writes objects to a single bucket.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// New creates a GCS store using application default credentials. Extra
// client options (endpoint, credentials file) are passed through.
func New(ctx context.Context, bucket string, opts ...option.ClientOption) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &Store{client: client, bucket: client.Bucket(bucket), name: bucket}, nil
}

// Bucket returns the target bucket name.
func (s *Store) Bucket() string { return s.name }

// Upload writes f to key, replacing any existing object.
func (s *Store) Upload(ctx context.Context, key string, f *os.File, size int64) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	n, err := io.Copy(w, f)
	if err != nil {
		w.Close()
		return fmt.Errorf("write gs://%s/%s: %w", s.name, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gs://%s/%s: %w", s.name, key, err)
	}
	if n != size {
		return fmt.Errorf("gs://%s/%s: wrote %d of %d bytes", s.name, key, n, size)
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
