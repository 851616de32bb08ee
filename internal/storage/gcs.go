package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore is an ObjectStore backed by a Google Cloud Storage bucket.
// Credentials come from the environment (ADC) unless options are passed.
type GCSStore struct {
	client       *gcs.Client
	bucket       string
	publicDomain string
}

// NewGCSStore connects to GCS. publicDomain, when set, is a CDN host that
// fronts the bucket.
func NewGCSStore(ctx context.Context, bucket, publicDomain string, opts ...option.ClientOption) (*GCSStore, error) {
	opts = append(opts, option.WithScopes(gcs.ScopeReadWrite))
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCSStore{
		client:       client,
		bucket:       bucket,
		publicDomain: strings.TrimRight(publicDomain, "/"),
	}, nil
}

func (s *GCSStore) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=3600"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return &StorageError{Op: "upload", Path: objectPath, Err: err}
	}
	// The object is only committed on Close.
	if err := w.Close(); err != nil {
		return &StorageError{Op: "upload", Path: objectPath, Err: err}
	}
	return nil
}

func (s *GCSStore) PublicURL(objectPath string) string {
	if s.publicDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.publicDomain, objectPath)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, objectPath)
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
