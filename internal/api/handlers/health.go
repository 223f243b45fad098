package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/prioridades-pago/internal/api/middleware"
	"github.com/dvloznov/prioridades-pago/internal/gcs"
	infra "github.com/dvloznov/prioridades-pago/internal/infra/bigquery"
)

// Connection states reported by the test endpoints.
const (
	StatusConnected     = "connected"
	StatusError         = "error"
	StatusNotConfigured = "not_configured"
)

// StoragePinger checks the object store.
type StoragePinger interface {
	Ping(ctx context.Context) (gcs.BucketInfo, error)
}

// WarehousePinger checks the warehouse.
type WarehousePinger interface {
	Ping(ctx context.Context) (*infra.PingResult, error)
}

// ServiceInfo is what GET / reports about the deployment.
type ServiceInfo struct {
	Service   string `json:"service"`
	ProjectID string `json:"project_id"`
	Bucket    string `json:"bucket"`
	Dataset   string `json:"dataset"`
	Table     string `json:"table"`
	Template  string `json:"template"`
	AreasID   string `json:"-"`
	RedisURL  string `json:"-"`
}

// HealthHandler handles the service info, health and connection test endpoints.
type HealthHandler struct {
	info      ServiceInfo
	storage   StoragePinger
	warehouse WarehousePinger
	timeout   time.Duration
	log       zerolog.Logger
}

// NewHealthHandler creates a new health handler. Nil pingers are reported as
// not configured.
func NewHealthHandler(info ServiceInfo, storage StoragePinger, warehouse WarehousePinger, log zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		info:      info,
		storage:   storage,
		warehouse: warehouse,
		timeout:   15 * time.Second,
		log:       log,
	}
}

// Root handles GET /
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"service": h.info.Service,
		"status":  "running",
		"config": map[string]string{
			"project_id": orNotConfigured(h.info.ProjectID),
			"bucket":     orNotConfigured(h.info.Bucket),
			"dataset":    orNotConfigured(h.info.Dataset),
			"table":      orNotConfigured(h.info.Table),
			"template":   orNotConfigured(h.info.Template),
			"areas":      configured(h.info.AreasID),
			"rate_cache": configured(h.info.RedisURL),
		},
		"endpoints": []string{
			"GET /health",
			"GET /test/bigquery",
			"GET /test/gcs",
			"GET /test/connections",
			"POST /process/prioridades-pago",
			"POST /process/prioridades-pago/upload",
			"GET /metrics",
		},
	})
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   h.info.Service,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// TestBigQuery handles GET /test/bigquery
func (h *HealthHandler) TestBigQuery(w http.ResponseWriter, r *http.Request) {
	res := h.checkBigQuery(r.Context())
	middleware.WriteJSON(w, statusCode(res), res)
}

// TestGCS handles GET /test/gcs
func (h *HealthHandler) TestGCS(w http.ResponseWriter, r *http.Request) {
	res := h.checkGCS(r.Context())
	middleware.WriteJSON(w, statusCode(res), res)
}

// TestConnections handles GET /test/connections
func (h *HealthHandler) TestConnections(w http.ResponseWriter, r *http.Request) {
	bq := h.checkBigQuery(r.Context())
	st := h.checkGCS(r.Context())

	overall := "healthy"
	if bq["status"] != StatusConnected || st["status"] != StatusConnected {
		overall = "degraded"
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"overall_status": overall,
		"services": map[string]interface{}{
			"bigquery": bq,
			"gcs":      st,
		},
	})
}

func (h *HealthHandler) checkBigQuery(ctx context.Context) map[string]interface{} {
	res := map[string]interface{}{"service": "BigQuery", "project": h.info.ProjectID}
	if h.warehouse == nil {
		res["status"] = StatusNotConfigured
		return res
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	ping, err := h.warehouse.Ping(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("BigQuery connection test failed")
		res["status"] = StatusError
		res["error"] = err.Error()
		return res
	}
	res["status"] = StatusConnected
	res["test_query_result"] = ping.TestValue
	res["dataset_info"] = ping
	return res
}

func (h *HealthHandler) checkGCS(ctx context.Context) map[string]interface{} {
	res := map[string]interface{}{"service": "Google Cloud Storage", "project": h.info.ProjectID}
	if h.storage == nil {
		res["status"] = StatusNotConfigured
		return res
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	info, err := h.storage.Ping(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("GCS connection test failed")
		res["status"] = StatusError
		res["error"] = err.Error()
		return res
	}
	res["status"] = StatusConnected
	res["configured_bucket"] = info
	return res
}

func statusCode(res map[string]interface{}) int {
	switch res["status"] {
	case StatusConnected:
		return http.StatusOK
	case StatusNotConfigured:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func orNotConfigured(v string) string {
	if v == "" {
		return StatusNotConfigured
	}
	return v
}

func configured(v string) string {
	if v == "" {
		return StatusNotConfigured
	}
	return "configured"
}
