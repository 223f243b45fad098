package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/prioridades-pago/internal/domain"
	"github.com/dvloznov/prioridades-pago/internal/gcs"
	infra "github.com/dvloznov/prioridades-pago/internal/infra/bigquery"
	"github.com/dvloznov/prioridades-pago/internal/logger"
	"github.com/dvloznov/prioridades-pago/internal/pipeline"
)

// MockProcessor is a mock implementation of Processor for testing.
type MockProcessor struct {
	Paso1Func func(ctx context.Context, up pipeline.Upload) (*pipeline.Paso1Result, error)
	Paso2Func func(ctx context.Context, up pipeline.Upload) (*pipeline.Paso2Result, error)
}

func (m *MockProcessor) Paso1(ctx context.Context, up pipeline.Upload) (*pipeline.Paso1Result, error) {
	return m.Paso1Func(ctx, up)
}

func (m *MockProcessor) Paso2(ctx context.Context, up pipeline.Upload) (*pipeline.Paso2Result, error) {
	return m.Paso2Func(ctx, up)
}

func (m *MockProcessor) TemplatePath() string { return pipeline.DefaultTemplatePath }

type pingerFunc func(ctx context.Context) (gcs.BucketInfo, error)

func (f pingerFunc) Ping(ctx context.Context) (gcs.BucketInfo, error) { return f(ctx) }

type warehousePingerFunc func(ctx context.Context) (*infra.PingResult, error)

func (f warehousePingerFunc) Ping(ctx context.Context) (*infra.PingResult, error) { return f(ctx) }

func newRouter(p Processor, storage StoragePinger, warehouse WarehousePinger) http.Handler {
	log := logger.NewWithWriter(io.Discard)
	info := ServiceInfo{Service: "prioridades-pago", ProjectID: "ppto", Bucket: "bucket"}
	return NewRouter(
		NewProcessHandler(p, "bucket", 1<<20, log),
		NewHealthHandler(info, storage, warehouse, log),
		nil,
	)
}

func multipartRequest(t *testing.T, target, field, name string, data []byte, sheet string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	if sheet != "" {
		require.NoError(t, mw.WriteField("sheet_name", sheet))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestPaso1_Success(t *testing.T) {
	var got pipeline.Upload
	p := &MockProcessor{
		Paso1Func: func(ctx context.Context, up pipeline.Upload) (*pipeline.Paso1Result, error) {
			got = up
			return &pipeline.Paso1Result{Success: true, FileName: "Prioridades_Pago_Procesado_x.xlsx", Output: []byte("xlsx")}, nil
		},
	}
	rec := httptest.NewRecorder()

	newRouter(p, nil, nil).ServeHTTP(rec, multipartRequest(t, "/process/prioridades-pago", "file", "prioridades.xlsx", []byte("data"), "Hoja1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "prioridades.xlsx", got.FileName)
	assert.Equal(t, []byte("data"), got.Data)
	assert.Equal(t, "Hoja1", got.Sheet)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Prioridades_Pago_Procesado_x.xlsx", body["file_name"])
	assert.NotContains(t, body, "Output")
}

func TestPaso1_BadRequests(t *testing.T) {
	p := &MockProcessor{
		Paso1Func: func(ctx context.Context, up pipeline.Upload) (*pipeline.Paso1Result, error) {
			t.Fatal("processor must not be called")
			return nil, nil
		},
	}
	tests := []struct {
		name  string
		field string
		file  string
		data  []byte
	}{
		{"missing file", "", "", nil},
		{"wrong field", "upload", "a.xlsx", []byte("x")},
		{"not excel", "file", "a.pdf", []byte("x")},
		{"empty file", "file", "a.xlsx", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newRouter(p, nil, nil).ServeHTTP(rec, multipartRequest(t, "/process/prioridades-pago", tt.field, tt.file, tt.data, ""))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "paso1", decode(t, rec)["step"])
		})
	}
}

func TestFlowErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"input", fmt.Errorf("pipeline step 1 (read) failed: %w", domain.NewInputError("workbook cannot be opened", nil)), http.StatusUnprocessableEntity},
		{"schema", fmt.Errorf("pipeline step 6 (merge) failed: %w", &domain.SchemaError{Sheet: "Detalle", Available: []string{"Hoja1"}}), http.StatusUnprocessableEntity},
		{"template", fmt.Errorf("pipeline step 1 (load_template) failed: %w", domain.ErrTemplateNotFound), http.StatusNotFound},
		{"persistence", domain.NewPersistenceError("gcs", errors.New("denied")), http.StatusInternalServerError},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &MockProcessor{
				Paso2Func: func(ctx context.Context, up pipeline.Upload) (*pipeline.Paso2Result, error) {
					return nil, tt.err
				},
			}
			rec := httptest.NewRecorder()
			newRouter(p, nil, nil).ServeHTTP(rec, multipartRequest(t, "/process/prioridades-pago/upload", "file", "a.xlsx", []byte("x"), ""))
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "paso2", decode(t, rec)["step"])
		})
	}
}

func TestPaso2_TemplateNotFoundReportsPath(t *testing.T) {
	p := &MockProcessor{
		Paso2Func: func(ctx context.Context, up pipeline.Upload) (*pipeline.Paso2Result, error) {
			return nil, domain.ErrTemplateNotFound
		},
	}
	rec := httptest.NewRecorder()

	newRouter(p, nil, nil).ServeHTTP(rec, multipartRequest(t, "/process/prioridades-pago/upload", "file", "a.xlsx", []byte("x"), ""))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "gs://bucket/"+pipeline.DefaultTemplatePath, decode(t, rec)["gcs_path"])
}

func TestPaso2_PartialIsMultiStatus(t *testing.T) {
	p := &MockProcessor{
		Paso2Func: func(ctx context.Context, up pipeline.Upload) (*pipeline.Paso2Result, error) {
			return &pipeline.Paso2Result{
				Success:   true,
				Warehouse: pipeline.WarehouseResult{Attempted: true, Error: "persist bigquery: quota"},
			}, nil
		},
	}
	rec := httptest.NewRecorder()

	newRouter(p, nil, nil).ServeHTTP(rec, multipartRequest(t, "/process/prioridades-pago/upload", "file", "a.xlsx", []byte("x"), ""))

	assert.Equal(t, http.StatusMultiStatus, rec.Code)
	bq, ok := decode(t, rec)["bigquery"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, bq["success"])
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(&MockProcessor{}, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/process/prioridades-pago", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRootAndHealth(t *testing.T) {
	router := newRouter(&MockProcessor{}, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	cfg := decode(t, rec)["config"].(map[string]interface{})
	assert.Equal(t, "ppto", cfg["project_id"])
	assert.Equal(t, StatusNotConfigured, cfg["dataset"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConnectionTests(t *testing.T) {
	okStorage := pingerFunc(func(ctx context.Context) (gcs.BucketInfo, error) {
		return gcs.BucketInfo{Name: "bucket", Location: "US"}, nil
	})
	failingWarehouse := warehousePingerFunc(func(ctx context.Context) (*infra.PingResult, error) {
		return nil, errors.New("access denied")
	})
	okWarehouse := warehousePingerFunc(func(ctx context.Context) (*infra.PingResult, error) {
		return &infra.PingResult{TestValue: 1, DatasetID: "ppto_capex"}, nil
	})

	t.Run("gcs connected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(&MockProcessor{}, okStorage, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test/gcs", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, StatusConnected, decode(t, rec)["status"])
	})

	t.Run("bigquery error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(&MockProcessor{}, okStorage, failingWarehouse).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test/bigquery", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "access denied", decode(t, rec)["error"])
	})

	t.Run("bigquery not configured", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(&MockProcessor{}, okStorage, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test/bigquery", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("all healthy", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(&MockProcessor{}, okStorage, okWarehouse).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test/connections", nil))
		assert.Equal(t, "healthy", decode(t, rec)["overall_status"])
	})

	t.Run("degraded", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(&MockProcessor{}, okStorage, failingWarehouse).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test/connections", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "degraded", decode(t, rec)["overall_status"])
	})
}
