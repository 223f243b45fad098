package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/prioridades-pago/internal/api/middleware"
	"github.com/dvloznov/prioridades-pago/internal/domain"
	"github.com/dvloznov/prioridades-pago/internal/pipeline"
)

// Processor runs the two processing flows. pipeline.Service implements it.
type Processor interface {
	Paso1(ctx context.Context, up pipeline.Upload) (*pipeline.Paso1Result, error)
	Paso2(ctx context.Context, up pipeline.Upload) (*pipeline.Paso2Result, error)
	TemplatePath() string
}

// ProcessHandler handles the Paso 1 and Paso 2 upload endpoints.
type ProcessHandler struct {
	svc       Processor
	bucket    string
	maxUpload int64
	log       zerolog.Logger
}

// NewProcessHandler creates a new process handler. maxUpload bounds the
// multipart body in bytes.
func NewProcessHandler(svc Processor, bucket string, maxUpload int64, log zerolog.Logger) *ProcessHandler {
	return &ProcessHandler{
		svc:       svc,
		bucket:    bucket,
		maxUpload: maxUpload,
		log:       log,
	}
}

// Paso1 handles POST /process/prioridades-pago
func (h *ProcessHandler) Paso1(w http.ResponseWriter, r *http.Request) {
	up, ok := h.readUpload(w, r, "paso1")
	if !ok {
		return
	}

	res, err := h.svc.Paso1(r.Context(), up)
	if err != nil {
		h.writeFlowError(w, err, "paso1")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, res)
}

// Paso2 handles POST /process/prioridades-pago/upload
func (h *ProcessHandler) Paso2(w http.ResponseWriter, r *http.Request) {
	up, ok := h.readUpload(w, r, "paso2")
	if !ok {
		return
	}

	res, err := h.svc.Paso2(r.Context(), up)
	if err != nil {
		h.writeFlowError(w, err, "paso2")
		return
	}

	status := http.StatusOK
	if res.Partial() {
		status = http.StatusMultiStatus
	}
	middleware.WriteJSON(w, status, res)
}

// readUpload extracts the multipart "file" field and the optional
// "sheet_name". On failure it has already written a 400.
func (h *ProcessHandler) readUpload(w http.ResponseWriter, r *http.Request, step string) (pipeline.Upload, bool) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteErrorDetail(w, http.StatusRequestEntityTooLarge, "Archivo demasiado grande", err.Error(), step)
			return pipeline.Upload{}, false
		}
		middleware.WriteErrorDetail(w, http.StatusBadRequest, "No se envió ningún archivo", "Debe enviar un archivo con el key 'file'", step)
		return pipeline.Upload{}, false
	}
	defer file.Close()

	if header.Filename == "" {
		middleware.WriteErrorDetail(w, http.StatusBadRequest, "Nombre de archivo vacío", "", step)
		return pipeline.Upload{}, false
	}
	if !pipeline.IsExcelFileName(header.Filename) {
		middleware.WriteErrorDetail(w, http.StatusBadRequest, "El archivo debe ser un Excel (.xlsx o .xls)", header.Filename, step)
		return pipeline.Upload{}, false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteErrorDetail(w, http.StatusBadRequest, "No se pudo leer el archivo", err.Error(), step)
		return pipeline.Upload{}, false
	}
	if len(data) == 0 {
		middleware.WriteErrorDetail(w, http.StatusBadRequest, "El archivo está vacío", header.Filename, step)
		return pipeline.Upload{}, false
	}

	h.log.Info().
		Str("step", step).
		Str("file", header.Filename).
		Int("bytes", len(data)).
		Msg("File received")

	return pipeline.Upload{
		FileName: header.Filename,
		Data:     data,
		Sheet:    r.FormValue("sheet_name"),
	}, true
}

// writeFlowError maps the typed errors of a flow to a status code.
func (h *ProcessHandler) writeFlowError(w http.ResponseWriter, err error, step string) {
	var (
		inputErr   *domain.InputError
		schemaErr  *domain.SchemaError
		persistErr *domain.PersistenceError
	)
	switch {
	case errors.Is(err, domain.ErrTemplateNotFound):
		middleware.WriteJSON(w, http.StatusNotFound, map[string]string{
			"error":    "Template no encontrado en GCS",
			"detail":   err.Error(),
			"gcs_path": "gs://" + h.bucket + "/" + h.svc.TemplatePath(),
			"step":     step,
		})
	case errors.As(err, &schemaErr), errors.As(err, &inputErr):
		middleware.WriteErrorDetail(w, http.StatusUnprocessableEntity, "Error procesando archivo", err.Error(), step)
	case errors.As(err, &persistErr):
		h.log.Error().Err(err).Str("step", step).Str("target", persistErr.Step).Msg("Persistence failed")
		middleware.WriteErrorDetail(w, http.StatusInternalServerError, "Error guardando resultados", err.Error(), step)
	default:
		h.log.Error().Err(err).Str("step", step).Msg("Processing failed")
		middleware.WriteErrorDetail(w, http.StatusInternalServerError, "Error procesando archivo", err.Error(), step)
	}
}
