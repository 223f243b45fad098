package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/prioridades-pago/internal/areas"
	"github.com/dvloznov/prioridades-pago/internal/domain"
	"github.com/dvloznov/prioridades-pago/internal/logger"
	"github.com/dvloznov/prioridades-pago/internal/metrics"
	"github.com/dvloznov/prioridades-pago/internal/rates"
	"github.com/dvloznov/prioridades-pago/internal/table"
	"github.com/dvloznov/prioridades-pago/internal/xlsx"
)

// DefaultTemplatePath is the template object used by Paso 2.
const DefaultTemplatePath = "template/vzla/Plantilla-VZLA-CAPEX-2526.xlsx"

// Options wires a Service. Nil collaborators switch the matching feature
// off: no Storage means nothing is uploaded, no Warehouse means no load,
// no Rates means default rates, no Areas means an empty area table.
type Options struct {
	Storage      StorageService
	Warehouse    WarehouseLoader
	Rates        rates.Provider
	Areas        areas.Loader
	Metrics      *metrics.Metrics
	Location     *time.Location
	TemplatePath string
	RateTimeout  time.Duration

	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// Service runs Paso 1 and Paso 2.
type Service struct {
	storage      StorageService
	warehouse    WarehouseLoader
	rates        rates.Provider
	areas        areas.Loader
	metrics      *metrics.Metrics
	loc          *time.Location
	templatePath string
	rateTimeout  time.Duration
	now          func() time.Time
	newID        func() string
}

// NewService creates a Service from opts.
func NewService(opts Options) *Service {
	s := &Service{
		storage:      opts.Storage,
		warehouse:    opts.Warehouse,
		rates:        opts.Rates,
		areas:        opts.Areas,
		metrics:      opts.Metrics,
		loc:          opts.Location,
		templatePath: opts.TemplatePath,
		rateTimeout:  opts.RateTimeout,
		now:          opts.Now,
		newID:        opts.NewID,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.templatePath == "" {
		s.templatePath = DefaultTemplatePath
	}
	if s.rateTimeout <= 0 {
		s.rateTimeout = rates.DefaultTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// TemplatePath is the object Paso 2 merges into.
func (s *Service) TemplatePath() string { return s.templatePath }

// HeaderInfo describes how the input table was found and cleaned.
type HeaderInfo struct {
	Sheet    string            `json:"hoja"`
	Row      int               `json:"fila_cabecera"`
	Method   table.Method      `json:"metodo"`
	Cleaning table.CleanReport `json:"limpieza"`
}

// Paso1Result is the outcome of Paso 1.
type Paso1Result struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message"`
	RunID       string            `json:"run_id"`
	FileName    string            `json:"file_name"`
	FileURL     string            `json:"file_url,omitempty"`
	StoragePath string            `json:"gcs_path,omitempty"`
	Header      HeaderInfo        `json:"cabecera"`
	Workbook    xlsx.RenderResult `json:"libro"`
	Stats       xlsx.Stats        `json:"stats"`
	Data        []map[string]any  `json:"data"`

	// Output is the processed workbook.
	Output []byte `json:"-"`
}

// Paso2Result is the outcome of Paso 2.
type Paso2Result struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	RunID       string          `json:"run_id"`
	FileName    string          `json:"file_name"`
	FileURL     string          `json:"file_url,omitempty"`
	StoragePath string          `json:"gcs_path,omitempty"`
	Reused      bool            `json:"reutilizado"`
	Header      HeaderInfo      `json:"cabecera"`
	Warehouse   WarehouseResult `json:"bigquery"`
	Stats       xlsx.Stats      `json:"stats"`

	// Output is the merged workbook.
	Output []byte `json:"-"`
}

// Partial reports a stored workbook whose warehouse load failed.
func (r *Paso2Result) Partial() bool {
	return r.Warehouse.Attempted && !r.Warehouse.Success
}

// Paso1 cleans the upload, derives the calculated columns and produces the
// processed workbook.
func (s *Service) Paso1(ctx context.Context, up Upload) (*Paso1Result, error) {
	state, err := s.run(ctx, metrics.FlowPaso1, up, nil, s.newPaso1Pipeline())
	if err != nil {
		s.metrics.Batch(metrics.FlowPaso1, metrics.OutcomeError)
		return nil, err
	}
	s.metrics.Batch(metrics.FlowPaso1, metrics.OutcomeSuccess)

	return &Paso1Result{
		Success:     true,
		Message:     "Archivo procesado correctamente (Paso 1)",
		RunID:       state.RunID,
		FileName:    fileName(state.ObjectName),
		FileURL:     state.FileURL,
		StoragePath: s.storagePath(state),
		Header:      headerInfo(state),
		Workbook:    state.Render,
		Stats:       xlsx.BatchStats(state.Batch),
		Data:        BatchData(state.Batch),
		Output:      state.Output,
	}, nil
}

// Paso2 merges the upload into the template stored under TemplatePath and
// loads it into the warehouse.
func (s *Service) Paso2(ctx context.Context, up Upload) (*Paso2Result, error) {
	return s.Paso2WithTemplate(ctx, up, nil)
}

// Paso2WithTemplate is Paso2 with a caller-supplied template. A nil template
// is downloaded from storage.
func (s *Service) Paso2WithTemplate(ctx context.Context, up Upload, template []byte) (*Paso2Result, error) {
	state, err := s.run(ctx, metrics.FlowPaso2, up, template, s.newPaso2Pipeline())
	if err != nil {
		s.metrics.Batch(metrics.FlowPaso2, metrics.OutcomeError)
		return nil, err
	}

	res := &Paso2Result{
		Success:     true,
		Message:     "Datos montados en template y subidos a BigQuery (Paso 2)",
		RunID:       state.RunID,
		FileName:    fileName(state.ObjectName),
		FileURL:     state.FileURL,
		StoragePath: s.storagePath(state),
		Reused:      state.Reused,
		Header:      headerInfo(state),
		Warehouse:   state.Warehouse,
		Stats:       xlsx.BatchStats(state.Batch),
		Output:      state.Output,
	}
	switch {
	case res.Partial():
		res.Message = "Datos montados en template; la carga a BigQuery falló (Paso 2)"
		s.metrics.Batch(metrics.FlowPaso2, metrics.OutcomePartial)
	case !state.Warehouse.Attempted:
		res.Message = "Datos montados en template (Paso 2)"
		s.metrics.Batch(metrics.FlowPaso2, metrics.OutcomeSuccess)
	default:
		s.metrics.Batch(metrics.FlowPaso2, metrics.OutcomeSuccess)
	}
	return res, nil
}

func (s *Service) run(ctx context.Context, flow string, up Upload, template []byte, p *Pipeline) (*PipelineState, error) {
	if err := ValidateUpload(up); err != nil {
		return nil, err
	}

	state := &PipelineState{
		Flow:     flow,
		RunID:    s.newID(),
		Now:      s.now().In(s.loc),
		Upload:   up,
		Template: template,
	}
	log := logger.FromContext(ctx).With().
		Str("flow", flow).
		Str("run_id", state.RunID).
		Str("file", up.FileName).
		Logger()
	ctx = logger.WithContext(ctx, log)

	log.Info().Int("bytes", len(up.Data)).Msg("Processing started")
	if err := p.Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("Processing failed")
		return nil, err
	}
	log.Info().
		Str("object", state.ObjectName).
		Int("rows", len(state.Batch.Rows)).
		Msg("Processing finished")
	return state, nil
}

func (s *Service) storagePath(state *PipelineState) string {
	if state.FileURL == "" {
		return ""
	}
	if b, ok := s.storage.(interface{ Bucket() string }); ok {
		return "gs://" + b.Bucket() + "/" + state.ObjectName
	}
	return state.ObjectName
}

func headerInfo(state *PipelineState) HeaderInfo {
	return HeaderInfo{
		Sheet:    state.Sheet,
		Row:      state.HeaderRow,
		Method:   state.HeaderMethod,
		Cleaning: state.Cleaning,
	}
}

// ErrEmptyUpload is returned for an upload without a name or content.
var ErrEmptyUpload = errors.New("empty upload")

// ValidateUpload rejects uploads that cannot be an Excel workbook: no name,
// no content, or an extension other than .xlsx/.xls.
func ValidateUpload(up Upload) error {
	if up.FileName == "" || len(up.Data) == 0 {
		return domain.NewInputError("file is missing or empty", ErrEmptyUpload)
	}
	if !IsExcelFileName(up.FileName) {
		return domain.NewInputError("file must be an Excel workbook (.xlsx or .xls)", nil)
	}
	return nil
}
