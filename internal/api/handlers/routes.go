package handlers

import (
	"net/http"

	"github.com/dvloznov/prioridades-pago/internal/api/middleware"
)

// NewRouter registers every endpoint on a new ServeMux. A nil metrics
// handler leaves /metrics unregistered.
func NewRouter(process *ProcessHandler, health *HealthHandler, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", only(http.MethodGet, health.Root))
	mux.HandleFunc("/health", only(http.MethodGet, health.Health))
	mux.HandleFunc("/test/bigquery", only(http.MethodGet, health.TestBigQuery))
	mux.HandleFunc("/test/gcs", only(http.MethodGet, health.TestGCS))
	mux.HandleFunc("/test/connections", only(http.MethodGet, health.TestConnections))

	mux.HandleFunc("/process/prioridades-pago", only(http.MethodPost, process.Paso1))
	mux.HandleFunc("/process/prioridades-pago/upload", only(http.MethodPost, process.Paso2))

	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	return mux
}

func only(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}
