package gcsuploader

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/prioridades-pago/internal/gcs"
)

// Re-export interface from shared package
type StorageService = gcs.StorageService

// GCSStorageService is the concrete implementation of StorageService
// that interacts with Google Cloud Storage.
type GCSStorageService struct {
	client *storage.Client
	bucket string
}

// NewGCSStorageService creates a storage client for bucket.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
func NewGCSStorageService(ctx context.Context, bucket string) (*GCSStorageService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return NewGCSStorageServiceWithClient(client, bucket), nil
}

// NewGCSStorageServiceWithClient uses an existing client.
func NewGCSStorageServiceWithClient(client *storage.Client, bucket string) *GCSStorageService {
	return &GCSStorageService{client: client, bucket: bucket}
}

// Bucket is the configured bucket name.
func (s *GCSStorageService) Bucket() string { return s.bucket }

// PublicURL returns the storage.googleapis.com URL of objectName.
func (s *GCSStorageService) PublicURL(objectName string) string {
	return PublicURL(s.bucket, objectName)
}

// PublicURL builds the public HTTPS URL of an object.
func PublicURL(bucket, objectName string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, objectName)
}

// Ping reads the bucket attributes.
func (s *GCSStorageService) Ping(ctx context.Context) (gcs.BucketInfo, error) {
	attrs, err := s.client.Bucket(s.bucket).Attrs(ctx)
	if err != nil {
		return gcs.BucketInfo{}, fmt.Errorf("Ping: bucket %s: %w", s.bucket, err)
	}
	return gcs.BucketInfo{
		Name:         attrs.Name,
		Location:     attrs.Location,
		StorageClass: attrs.StorageClass,
	}, nil
}

// Close releases the underlying client.
func (s *GCSStorageService) Close() error {
	return s.client.Close()
}
