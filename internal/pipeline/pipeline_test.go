package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/prioridades-pago/internal/areas"
	"github.com/dvloznov/prioridades-pago/internal/domain"
	"github.com/dvloznov/prioridades-pago/internal/gcs"
	infra "github.com/dvloznov/prioridades-pago/internal/infra/bigquery"
	"github.com/dvloznov/prioridades-pago/internal/logger"
	"github.com/dvloznov/prioridades-pago/internal/metrics"
	"github.com/dvloznov/prioridades-pago/internal/pipeline"
	"github.com/dvloznov/prioridades-pago/internal/rates"
	"github.com/dvloznov/prioridades-pago/internal/xlsx"
)

var caracas = time.FixedZone("VET", -4*60*60)

func quietContext() context.Context {
	return logger.WithContext(context.Background(), logger.NewWithWriter(io.Discard))
}

// rawWorkbook builds an export with a title row above the header and a
// summary row at the bottom.
func rawWorkbook(t *testing.T) []byte {
	t.Helper()
	rows := [][]interface{}{
		{"REPORTE PRIORIDADES DE PAGO"},
		{"Numero de Factura", "Proveedor", "Sucursal", "Monto", "Moneda", "Cuenta", "Id Cta",
			"Prioridad", "Monto CAPEX EXT", "Monto CAPEX ORD", "Monto CADM", "Fecha Documento", "Solicitante"},
		{"F-1", "ACME", "CCS", 1000, "USD", "0102", "C-1", 69, 300, 700, 0, 45292, 15},
		{"F-2", "PAPELERIA SA", "VAL", 1000, "USD", "0105", "C-2", 10, 0, 0, 1000, "", 0},
		{"TOTAL FACTURAS", "", "", 2000},
	}
	return buildWorkbook(t, "Prioridades", rows)
}

func buildWorkbook(t *testing.T, sheet string, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			t.Fatalf("SetSheetName: %v", err)
		}
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func templateWorkbook(t *testing.T) []byte {
	t.Helper()
	return buildWorkbook(t, "Detalle", [][]interface{}{{"", "", "", "Numero de Factura"}})
}

func stubRates() rates.Provider {
	return rates.ProviderFunc(func(ctx context.Context, pair domain.Pair) domain.RateQuote {
		if pair == domain.PairVESUSD {
			return domain.RateQuote{Pair: pair, Success: true, Rate: 40, Source: "DolarAPI"}
		}
		return domain.RateQuote{Pair: pair}
	})
}

func stubAreas() areas.Loader {
	return areas.LoaderFunc(func(ctx context.Context) (domain.AreaTable, error) {
		return domain.NewAreaTable([]string{"CODIGO", "AREA"}, [][]string{{"15", "TECNOLOGIA"}}), nil
	})
}

func newService(storage pipeline.StorageService, warehouse pipeline.WarehouseLoader) *pipeline.Service {
	return pipeline.NewService(pipeline.Options{
		Storage:   storage,
		Warehouse: warehouse,
		Rates:     stubRates(),
		Areas:     stubAreas(),
		Metrics:   metrics.New(prometheus.NewRegistry()),
		Location:  caracas,
		Now:       func() time.Time { return time.Date(2024, 5, 2, 2, 30, 15, 0, time.UTC) },
		NewID:     func() string { return "run-test" },
	})
}

func TestPaso1(t *testing.T) {
	storage := &MockStorageService{}
	svc := newService(storage, nil)

	res, err := svc.Paso1(quietContext(), pipeline.Upload{FileName: "prioridades.xlsx", Data: rawWorkbook(t)})
	if err != nil {
		t.Fatalf("Paso1() error = %v", err)
	}

	wantObject := "tmp/Prioridades_Pago_Procesado_20240501_223015.xlsx"
	if res.FileName != "Prioridades_Pago_Procesado_20240501_223015.xlsx" {
		t.Errorf("FileName = %q", res.FileName)
	}
	if res.FileURL != "https://storage.googleapis.com/test-bucket/"+wantObject {
		t.Errorf("FileURL = %q", res.FileURL)
	}
	if res.StoragePath != "gs://test-bucket/"+wantObject {
		t.Errorf("StoragePath = %q", res.StoragePath)
	}
	if _, ok := storage.uploads[wantObject]; !ok {
		t.Errorf("expected upload of %s, got %v", wantObject, storage.uploads)
	}
	if len(storage.prefixes) != 1 || storage.prefixes[0] != "tmp/" {
		t.Errorf("expected tmp/ to be cleared, got %v", storage.prefixes)
	}

	if res.Header.Row != 1 || res.Header.Cleaning.SummaryRows != 1 {
		t.Errorf("Header = %+v", res.Header)
	}
	if res.Stats.TotalRows != 2 || len(res.Data) != 2 {
		t.Fatalf("expected 2 rows, stats=%d data=%d", res.Stats.TotalRows, len(res.Data))
	}

	first, second := res.Data[0], res.Data[1]
	if first["Moneda Pago"] != "USD" || first["Monto Final"] != 1000.0 || first["Día de pago"] != "VIERNES" {
		t.Errorf("unexpected first row: %v", first)
	}
	if first["ÁREA"] != "TECNOLOGIA" || first["Fecha Documento"] != "2024-01-01" {
		t.Errorf("unexpected first row area/date: %v", first)
	}
	if second["Moneda Pago"] != "VES" || second["Monto Final"] != 45000.0 || second["Cuenta Bancaria"] != "1111" {
		t.Errorf("unexpected second row: %v", second)
	}
	if second["Fecha Documento"] != nil {
		t.Errorf("blank date should be null, got %v", second["Fecha Documento"])
	}

	grid, sheet, err := xlsx.ReadGrid(res.Output, "")
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if sheet != xlsx.SheetDetail || len(grid) != 3 {
		t.Errorf("output sheet=%q rows=%d", sheet, len(grid))
	}
}

func TestPaso1_WithoutStorage(t *testing.T) {
	svc := newService(nil, nil)

	res, err := svc.Paso1(quietContext(), pipeline.Upload{FileName: "prioridades.xlsx", Data: rawWorkbook(t)})
	if err != nil {
		t.Fatalf("Paso1() error = %v", err)
	}
	if res.FileURL != "" || res.StoragePath != "" {
		t.Errorf("expected no storage location, got %q %q", res.FileURL, res.StoragePath)
	}
	if res.FileName == "" || len(res.Output) == 0 {
		t.Error("expected a named workbook")
	}
}

func TestPaso1_InputErrors(t *testing.T) {
	tests := []struct {
		name   string
		upload pipeline.Upload
	}{
		{"empty file", pipeline.Upload{FileName: "a.xlsx"}},
		{"wrong extension", pipeline.Upload{FileName: "a.csv", Data: []byte("a,b")}},
		{"not a workbook", pipeline.Upload{FileName: "a.xlsx", Data: []byte("plain text")}},
		{"legacy xls", pipeline.Upload{FileName: "a.xls", Data: []byte{0xD0, 0xCF, 0x11, 0xE0}}},
	}

	svc := newService(&MockStorageService{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Paso1(quietContext(), tt.upload)
			var inputErr *domain.InputError
			if !errors.As(err, &inputErr) {
				t.Errorf("expected InputError, got %v", err)
			}
		})
	}
}

func TestPaso1_MissingSheet(t *testing.T) {
	svc := newService(nil, nil)

	_, err := svc.Paso1(quietContext(), pipeline.Upload{FileName: "a.xlsx", Data: rawWorkbook(t), Sheet: "Hoja2"})

	var inputErr *domain.InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %v", err)
	}
}

func TestPaso1_UploadFailure(t *testing.T) {
	storage := &MockStorageService{
		UploadFunc: func(ctx context.Context, objectName string, data []byte, contentType string) error {
			return errors.New("bucket unavailable")
		},
	}
	svc := newService(storage, nil)

	_, err := svc.Paso1(quietContext(), pipeline.Upload{FileName: "a.xlsx", Data: rawWorkbook(t)})

	var perr *domain.PersistenceError
	if !errors.As(err, &perr) || perr.Step != "gcs" {
		t.Fatalf("expected gcs PersistenceError, got %v", err)
	}
	if !strings.Contains(err.Error(), "pipeline step 6 (persist) failed") {
		t.Errorf("expected step context in %q", err.Error())
	}
}

func TestPaso2(t *testing.T) {
	storage := &MockStorageService{
		DownloadFunc: func(ctx context.Context, objectName string) ([]byte, error) {
			if objectName != pipeline.DefaultTemplatePath {
				t.Errorf("unexpected template path %s", objectName)
			}
			return templateWorkbook(t), nil
		},
	}
	warehouse := &MockWarehouse{}
	svc := newService(storage, warehouse)

	res, err := svc.Paso2(quietContext(), pipeline.Upload{FileName: "prioridades.xlsx", Data: rawWorkbook(t)})
	if err != nil {
		t.Fatalf("Paso2() error = %v", err)
	}

	wantObject := "logs/2024-05-01/Prioridades_Pago_Final_20240501_223015.xlsx"
	if _, ok := storage.uploads[wantObject]; !ok {
		t.Errorf("expected upload of %s, got %v", wantObject, storage.uploads)
	}
	if len(storage.prefixes) != 0 {
		t.Errorf("Paso 2 must not clear storage, got %v", storage.prefixes)
	}
	if res.Reused {
		t.Error("raw export must not be treated as processed")
	}
	if res.Partial() || !res.Warehouse.Success || res.Warehouse.Rows != 2 {
		t.Errorf("Warehouse = %+v", res.Warehouse)
	}
	if len(warehouse.loaded) != 2 || warehouse.loaded[0].RunID != "run-test" || warehouse.loaded[1].MontoFinal != 45000 {
		t.Errorf("unexpected loaded rows: %+v", warehouse.loaded)
	}

	f, err := excelize.OpenReader(bytes.NewReader(res.Output))
	if err != nil {
		t.Fatalf("opening merged workbook: %v", err)
	}
	defer f.Close()
	if v, _ := f.GetCellValue("Detalle", "D2"); v != "F-1" {
		t.Errorf("D2 = %q, want F-1", v)
	}
	if v, _ := f.GetCellValue("Detalle", xlsx.CellRateVES); v != "40" {
		t.Errorf("%s = %q, want 40", xlsx.CellRateVES, v)
	}
}

func TestPaso2_ReusesProcessedWorkbook(t *testing.T) {
	local := newService(nil, nil)
	first, err := local.Paso1(quietContext(), pipeline.Upload{FileName: "raw.xlsx", Data: rawWorkbook(t)})
	if err != nil {
		t.Fatalf("Paso1() error = %v", err)
	}

	warehouse := &MockWarehouse{}
	svc := newService(nil, warehouse)
	res, err := svc.Paso2WithTemplate(quietContext(),
		pipeline.Upload{FileName: first.FileName, Data: first.Output}, templateWorkbook(t))
	if err != nil {
		t.Fatalf("Paso2WithTemplate() error = %v", err)
	}

	if !res.Reused {
		t.Fatal("expected processed workbook to be reused")
	}
	if len(warehouse.loaded) != 2 {
		t.Fatalf("expected 2 loaded rows, got %d", len(warehouse.loaded))
	}
	row := warehouse.loaded[1]
	if row.MonedaPago != "VES" || row.MontoFinal != 45000 || row.Area != "SERVICIOS" {
		t.Errorf("reused row lost its derived values: %+v", row)
	}
	if !warehouse.loaded[0].FechaDocumento.Valid || warehouse.loaded[0].FechaDocumento.Date.String() != "2024-01-01" {
		t.Errorf("FechaDocumento = %+v", warehouse.loaded[0].FechaDocumento)
	}
}

func TestPaso2_TemplateNotFound(t *testing.T) {
	svc := newService(&MockStorageService{}, &MockWarehouse{})

	_, err := svc.Paso2(quietContext(), pipeline.Upload{FileName: "a.xlsx", Data: rawWorkbook(t)})

	if !errors.Is(err, domain.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestPaso2_TemplateWithoutDetalle(t *testing.T) {
	svc := newService(nil, nil)
	template := buildWorkbook(t, "Resumen", [][]interface{}{{"x"}})

	_, err := svc.Paso2WithTemplate(quietContext(), pipeline.Upload{FileName: "a.xlsx", Data: rawWorkbook(t)}, template)

	var schemaErr *domain.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if len(schemaErr.Available) != 1 || schemaErr.Available[0] != "Resumen" {
		t.Errorf("Available = %v", schemaErr.Available)
	}
}

func TestPaso2_WarehouseFailureIsPartial(t *testing.T) {
	storage := &MockStorageService{
		DownloadFunc: func(ctx context.Context, objectName string) ([]byte, error) {
			return templateWorkbook(t), nil
		},
	}
	warehouse := &MockWarehouse{
		AppendRowsFunc: func(ctx context.Context, rows []*infra.PaymentPriorityRow) (int, error) {
			return 0, errors.New("quota exceeded")
		},
	}
	svc := newService(storage, warehouse)

	res, err := svc.Paso2(quietContext(), pipeline.Upload{FileName: "a.xlsx", Data: rawWorkbook(t)})
	if err != nil {
		t.Fatalf("Paso2() error = %v", err)
	}

	if !res.Partial() {
		t.Errorf("expected partial result, got %+v", res.Warehouse)
	}
	if !strings.Contains(res.Warehouse.Error, "quota exceeded") {
		t.Errorf("Warehouse.Error = %q", res.Warehouse.Error)
	}
	if res.FileURL == "" {
		t.Error("merged workbook should still be stored")
	}
}

func TestPaso2_TemplateDownloadError(t *testing.T) {
	storage := &MockStorageService{
		DownloadFunc: func(ctx context.Context, objectName string) ([]byte, error) {
			return nil, errors.New("permission denied")
		},
	}
	svc := newService(storage, nil)

	_, err := svc.Paso2(quietContext(), pipeline.Upload{FileName: "a.xlsx", Data: rawWorkbook(t)})

	var perr *domain.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if errors.Is(err, gcs.ErrObjectNotFound) {
		t.Error("download error must not look like a missing template")
	}
}

type failingStep struct{ err error }

func (s failingStep) Execute(ctx context.Context, state *pipeline.PipelineState) error { return s.err }

type recordingStep struct{ calls *int }

func (s recordingStep) Name() string { return "record" }

func (s recordingStep) Execute(ctx context.Context, state *pipeline.PipelineState) error {
	*s.calls++
	return nil
}

func TestPipeline_Execute(t *testing.T) {
	calls := 0
	inputErr := domain.NewInputError("bad", nil)
	p := pipeline.NewPipeline(nil, recordingStep{&calls}, failingStep{inputErr}, recordingStep{&calls})

	err := p.Execute(quietContext(), &pipeline.PipelineState{Flow: metrics.FlowPaso1})

	if calls != 1 {
		t.Errorf("expected execution to stop after the failing step, got %d calls", calls)
	}
	if err == nil || !strings.HasPrefix(err.Error(), "pipeline step 2 (pipeline_test.failingStep) failed") {
		t.Errorf("unexpected error %v", err)
	}
	var target *domain.InputError
	if !errors.As(err, &target) {
		t.Error("typed error lost in wrapping")
	}
}

func TestFetchInputsStep_AreaTimeout(t *testing.T) {
	hanging := areas.LoaderFunc(func(ctx context.Context) (domain.AreaTable, error) {
		<-ctx.Done()
		return domain.AreaTable{}, ctx.Err()
	})
	step := &pipeline.FetchInputsStep{Rates: stubRates(), Areas: hanging, Timeout: 50 * time.Millisecond}
	state := &pipeline.PipelineState{Flow: metrics.FlowPaso1}

	ctx, cancel := context.WithTimeout(quietContext(), 3*time.Second)
	defer cancel()

	start := time.Now()
	if err := step.Execute(ctx, state); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected the area fetch to give up after its timeout, took %v", elapsed)
	}
	if state.Areas.Len() != 0 {
		t.Errorf("expected an empty area table, got %d codes", state.Areas.Len())
	}
	if state.Rates.VESUSD != 40 {
		t.Errorf("expected rates to be kept, got VES/USD %v", state.Rates.VESUSD)
	}
}

func TestIsExcelFileName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.xlsx", true},
		{"A.XLSX", true},
		{"a.xls", true},
		{"a.xlsm", false},
		{"a.csv", false},
		{"xlsx", false},
	}
	for _, tt := range tests {
		if got := pipeline.IsExcelFileName(tt.name); got != tt.want {
			t.Errorf("IsExcelFileName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
