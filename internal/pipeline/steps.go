package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/prioridades-pago/internal/areas"
	"github.com/dvloznov/prioridades-pago/internal/derive"
	"github.com/dvloznov/prioridades-pago/internal/domain"
	"github.com/dvloznov/prioridades-pago/internal/gcs"
	"github.com/dvloznov/prioridades-pago/internal/gcsuploader"
	infra "github.com/dvloznov/prioridades-pago/internal/infra/bigquery"
	"github.com/dvloznov/prioridades-pago/internal/logger"
	"github.com/dvloznov/prioridades-pago/internal/metrics"
	"github.com/dvloznov/prioridades-pago/internal/rates"
	"github.com/dvloznov/prioridades-pago/internal/table"
	"github.com/dvloznov/prioridades-pago/internal/xlsx"
)

// Storage layout.
const (
	TmpPrefix  = "tmp/"
	LogsPrefix = "logs/"

	paso1FilePrefix = "Prioridades_Pago_Procesado_"
	paso2FilePrefix = "Prioridades_Pago_Final_"
	fileStampLayout = "20060102_150405"
)

// paso1ObjectName is tmp/Prioridades_Pago_Procesado_{stamp}.xlsx.
func paso1ObjectName(state *PipelineState) string {
	return TmpPrefix + paso1FilePrefix + state.Now.Format(fileStampLayout) + ".xlsx"
}

// paso2ObjectName is logs/{date}/Prioridades_Pago_Final_{stamp}.xlsx.
func paso2ObjectName(state *PipelineState) string {
	return LogsPrefix + state.Now.Format("2006-01-02") + "/" +
		paso2FilePrefix + state.Now.Format(fileStampLayout) + ".xlsx"
}

// Step 1: ReadWorkbookStep reads the raw grid of the uploaded workbook.
type ReadWorkbookStep struct{}

func (s *ReadWorkbookStep) Name() string { return "read" }

func (s *ReadWorkbookStep) Execute(ctx context.Context, state *PipelineState) error {
	grid, sheet, err := xlsx.ReadGrid(state.Upload.Data, state.Upload.Sheet)
	if err != nil {
		return err
	}
	state.Grid = grid
	state.Sheet = sheet

	log := logger.FromContext(ctx)
	log.Info().
		Str("sheet", sheet).
		Int("rows", len(grid)).
		Msg("Workbook read")
	return nil
}

// Step 2: CleanTableStep finds the header row, cleans the table and
// normalises date serials. With DetectProcessed it also recognises a
// workbook that was already processed.
type CleanTableStep struct {
	DetectProcessed bool
}

func (s *CleanTableStep) Name() string { return "clean" }

func (s *CleanTableStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	idx, _, method := table.FindHeaderRow(state.Grid, table.DefaultMaxScan)
	cleaned, report := table.Clean(table.FromGrid(state.Grid, idx))
	cleaned = table.NormalizeDates(cleaned)

	state.HeaderRow = idx
	state.HeaderMethod = method
	state.Table = cleaned
	state.Cleaning = report
	state.Reused = s.DetectProcessed && table.Processed(cleaned)

	log.Info().
		Int("header_row", idx).
		Str("method", string(method)).
		Int("empty_rows", report.EmptyRows).
		Int("empty_columns", report.EmptyColumns).
		Int("unnamed_columns", report.UnnamedColumns).
		Int("summary_rows", report.SummaryRows).
		Int("rows", len(cleaned.Rows)).
		Int("columns", cleaned.Width()).
		Bool("already_processed", state.Reused).
		Msg("Table cleaned")
	return nil
}

// Step 3: FetchInputsStep fetches the rate snapshot and the area table
// concurrently, each bounded by Timeout. Neither can fail the batch; both degrade to defaults. A
// reused workbook already carries its areas, so only rates are fetched.
type FetchInputsStep struct {
	Rates   rates.Provider
	Areas   areas.Loader
	Timeout time.Duration
	Metrics *metrics.Metrics
}

func (s *FetchInputsStep) Name() string { return "fetch_inputs" }

func (s *FetchInputsStep) Execute(ctx context.Context, state *PipelineState) error {
	var g errgroup.Group

	g.Go(func() error {
		if s.Rates == nil {
			state.Rates = domain.DefaultRateSnapshot()
			return nil
		}
		state.Rates = rates.Snapshot(ctx, s.Rates, s.Timeout)
		return nil
	})
	if !state.Reused {
		g.Go(func() error {
			state.Areas = areas.Fetch(ctx, s.Areas, s.Timeout)
			return nil
		})
	}
	_ = g.Wait()

	for _, pair := range domain.Pairs {
		if state.Rates.FellBack(pair) {
			s.Metrics.RateFallback(string(pair))
		}
	}
	return nil
}

// Step 4: DeriveStep computes the derived columns, or rebuilds the rows of
// an already processed workbook, and freezes the batch.
type DeriveStep struct {
	Metrics *metrics.Metrics
}

func (s *DeriveStep) Name() string { return "derive" }

func (s *DeriveStep) Execute(ctx context.Context, state *PipelineState) error {
	var rows []domain.Row
	if state.Reused {
		rows = table.RowsFromProcessed(state.Table)
	} else {
		rows, state.Rates = derive.Derive(table.Records(state.Table), state.Rates, state.Areas)
	}

	state.Batch = &domain.Batch{
		RunID:     state.RunID,
		Rows:      rows,
		Rates:     state.Rates,
		Areas:     state.Areas,
		Columns:   state.Table.Columns,
		CreatedAt: state.Now,
	}
	s.Metrics.RowsDerived(state.Flow, len(rows))

	log := logger.FromContext(ctx)
	log.Info().
		Int("rows", len(rows)).
		Bool("reused", state.Reused).
		Msg("Batch derived")
	return nil
}

// Step 5 (Paso 1): RenderStep writes the processed workbook.
type RenderStep struct{}

func (s *RenderStep) Name() string { return "render" }

func (s *RenderStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := xlsx.Render(state.Batch)
	if err != nil {
		return err
	}
	state.Render = res
	state.Output = res.Bytes
	return nil
}

// LoadTemplateStep downloads the merge template unless the caller supplied one.
type LoadTemplateStep struct {
	Storage StorageService
	Path    string
}

func (s *LoadTemplateStep) Name() string { return "load_template" }

func (s *LoadTemplateStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Template) > 0 {
		return nil
	}
	if s.Storage == nil {
		return fmt.Errorf("%w: no storage configured for %s", domain.ErrTemplateNotFound, s.Path)
	}
	data, err := s.Storage.Download(ctx, s.Path)
	if errors.Is(err, gcs.ErrObjectNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, s.Path)
	}
	if err != nil {
		return domain.NewPersistenceError("gcs", fmt.Errorf("downloading template %s: %w", s.Path, err))
	}
	state.Template = data
	return nil
}

// Step 5 (Paso 2): MergeStep writes the batch into the template.
type MergeStep struct{}

func (s *MergeStep) Name() string { return "merge" }

func (s *MergeStep) Execute(ctx context.Context, state *PipelineState) error {
	out, err := xlsx.Merge(state.Batch, state.Template)
	if err != nil {
		return err
	}
	state.Output = out
	return nil
}

// Step 6: PersistStep uploads the produced workbook. ClearPrefix, when set,
// is emptied first. Without storage the step only names the file.
type PersistStep struct {
	Storage     StorageService
	ClearPrefix string
	Path        func(*PipelineState) string
}

func (s *PersistStep) Name() string { return "persist" }

func (s *PersistStep) Execute(ctx context.Context, state *PipelineState) error {
	state.ObjectName = s.Path(state)
	if s.Storage == nil {
		return nil
	}
	log := logger.FromContext(ctx)

	if s.ClearPrefix != "" {
		n, err := s.Storage.DeletePrefix(ctx, s.ClearPrefix)
		if err != nil {
			return domain.NewPersistenceError("gcs", fmt.Errorf("clearing %s: %w", s.ClearPrefix, err))
		}
		log.Info().Str("prefix", s.ClearPrefix).Int("deleted", n).Msg("Storage prefix cleared")
	}

	if err := s.Storage.Upload(ctx, state.ObjectName, state.Output, gcsuploader.XLSXContentType); err != nil {
		return domain.NewPersistenceError("gcs", err)
	}
	state.FileURL = s.Storage.PublicURL(state.ObjectName)

	log.Info().
		Str("object", state.ObjectName).
		Int("bytes", len(state.Output)).
		Msg("Workbook stored")
	return nil
}

// WarehouseResult reports the warehouse load of a Paso 2 batch.
type WarehouseResult struct {
	Attempted bool   `json:"attempted"`
	Success   bool   `json:"success"`
	Rows      int    `json:"rows_uploaded"`
	Table     string `json:"table,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Step 7 (Paso 2): WarehouseStep appends the batch to the warehouse. A load
// failure is recorded in the state and does not fail the pipeline: the
// merged workbook is already stored.
type WarehouseStep struct {
	Loader  WarehouseLoader
	Metrics *metrics.Metrics
}

func (s *WarehouseStep) Name() string { return "warehouse" }

func (s *WarehouseStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Loader == nil {
		return nil
	}
	log := logger.FromContext(ctx)

	state.Warehouse = WarehouseResult{Attempted: true, Table: s.Loader.TableRef()}
	rows := infra.NewPaymentPriorityRows(state.Batch, state.Now)
	n, err := s.Loader.AppendRows(ctx, rows)
	if err != nil {
		perr := domain.NewPersistenceError("bigquery", err)
		state.Warehouse.Error = perr.Error()
		log.Error().Err(err).Str("table", state.Warehouse.Table).Msg("Warehouse load failed")
		return nil
	}
	state.Warehouse.Success = true
	state.Warehouse.Rows = n
	s.Metrics.WarehouseRows(n)
	return nil
}

// fileName is the base name of the stored object.
func fileName(objectName string) string {
	return path.Base(objectName)
}
