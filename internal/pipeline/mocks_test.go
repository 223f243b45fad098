package pipeline_test

import (
	"context"
	"sync"

	"github.com/dvloznov/prioridades-pago/internal/gcs"
	infra "github.com/dvloznov/prioridades-pago/internal/infra/bigquery"
)

// MockStorageService is a mock implementation of gcs.StorageService for testing.
type MockStorageService struct {
	UploadFunc       func(ctx context.Context, objectName string, data []byte, contentType string) error
	DownloadFunc     func(ctx context.Context, objectName string) ([]byte, error)
	DeletePrefixFunc func(ctx context.Context, prefix string) (int, error)

	mu       sync.Mutex
	uploads  map[string][]byte
	prefixes []string
}

func (m *MockStorageService) Upload(ctx context.Context, objectName string, data []byte, contentType string) error {
	if m.UploadFunc != nil {
		if err := m.UploadFunc(ctx, objectName, data, contentType); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploads == nil {
		m.uploads = map[string][]byte{}
	}
	m.uploads[objectName] = data
	return nil
}

func (m *MockStorageService) Download(ctx context.Context, objectName string) ([]byte, error) {
	if m.DownloadFunc != nil {
		return m.DownloadFunc(ctx, objectName)
	}
	return nil, gcs.ErrObjectNotFound
}

func (m *MockStorageService) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	m.mu.Lock()
	m.prefixes = append(m.prefixes, prefix)
	m.mu.Unlock()
	if m.DeletePrefixFunc != nil {
		return m.DeletePrefixFunc(ctx, prefix)
	}
	return 0, nil
}

func (m *MockStorageService) PublicURL(objectName string) string {
	return "https://storage.googleapis.com/test-bucket/" + objectName
}

func (m *MockStorageService) Ping(ctx context.Context) (gcs.BucketInfo, error) {
	return gcs.BucketInfo{Name: "test-bucket"}, nil
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return m.Download(ctx, gcsURI)
}

func (m *MockStorageService) Bucket() string { return "test-bucket" }

// MockWarehouse is a mock implementation of pipeline.WarehouseLoader.
type MockWarehouse struct {
	AppendRowsFunc func(ctx context.Context, rows []*infra.PaymentPriorityRow) (int, error)

	loaded []*infra.PaymentPriorityRow
}

func (m *MockWarehouse) AppendRows(ctx context.Context, rows []*infra.PaymentPriorityRow) (int, error) {
	if m.AppendRowsFunc != nil {
		return m.AppendRowsFunc(ctx, rows)
	}
	m.loaded = append(m.loaded, rows...)
	return len(rows), nil
}

func (m *MockWarehouse) TableRef() string { return "ppto_capex.prioridades_pago_vzla" }
