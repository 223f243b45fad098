package gcs

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned when an object does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// BucketInfo describes the configured bucket.
type BucketInfo struct {
	Name         string `json:"name"`
	Location     string `json:"location"`
	StorageClass string `json:"storage_class"`
}

// StorageService provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// Upload writes data to objectName in the configured bucket.
	Upload(ctx context.Context, objectName string, data []byte, contentType string) error

	// Download reads objectName from the configured bucket.
	Download(ctx context.Context, objectName string) ([]byte, error)

	// DeletePrefix removes every object under prefix and returns how many were deleted.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// PublicURL is the HTTPS URL of objectName.
	PublicURL(objectName string) string

	// Ping checks the bucket is reachable.
	Ping(ctx context.Context) (BucketInfo, error)

	// FetchFromGCS downloads file bytes from the given storage URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}
