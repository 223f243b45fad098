// Package areas loads the requester-code to business-area table.
package areas

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/dvloznov/prioridades-pago/internal/domain"
	"github.com/dvloznov/prioridades-pago/internal/logger"
)

// DefaultSheetName is the tab holding the area table.
const DefaultSheetName = "AREAS VZLA"

// DefaultTimeout bounds one area table fetch.
const DefaultTimeout = 10 * time.Second

// ErrNotConfigured is returned when no spreadsheet ID is set.
var ErrNotConfigured = errors.New("area sheet not configured")

// Loader fetches the area table.
type Loader interface {
	Load(ctx context.Context) (domain.AreaTable, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (domain.AreaTable, error)

func (f LoaderFunc) Load(ctx context.Context) (domain.AreaTable, error) { return f(ctx) }

// SheetsLoader reads the table from a Google Sheets tab.
type SheetsLoader struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
}

// NewSheetsLoader creates a loader using application default credentials
// unless opts say otherwise.
func NewSheetsLoader(ctx context.Context, spreadsheetID, sheetName string, opts ...option.ClientOption) (*SheetsLoader, error) {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsReadonlyScope)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewSheetsLoader: create service: %w", err)
	}
	return &SheetsLoader{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

// Load implements Loader.
func (l *SheetsLoader) Load(ctx context.Context) (domain.AreaTable, error) {
	if l.spreadsheetID == "" {
		return domain.AreaTable{}, ErrNotConfigured
	}
	rng := "'" + strings.ReplaceAll(l.sheetName, "'", "''") + "'"
	resp, err := l.svc.Spreadsheets.Values.Get(l.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return domain.AreaTable{}, fmt.Errorf("SheetsLoader.Load: get %s: %w", l.sheetName, err)
	}
	return TableFromValues(resp.Values), nil
}

// TableFromValues converts a sheet range into an area table. The first row
// is the header; fully blank rows are skipped.
func TableFromValues(values [][]interface{}) domain.AreaTable {
	if len(values) == 0 {
		return domain.NewAreaTable(nil, nil)
	}
	header := cellsToStrings(values[0])
	rows := make([][]string, 0, len(values)-1)
	for _, v := range values[1:] {
		row := cellsToStrings(v)
		if blank(row) {
			continue
		}
		rows = append(rows, row)
	}
	return domain.NewAreaTable(header, rows)
}

// Fetch loads the table under timeout, or returns an empty one when the
// loader fails or the timeout passes.
func Fetch(ctx context.Context, l Loader, timeout time.Duration) domain.AreaTable {
	log := logger.FromContext(ctx)
	if l == nil {
		log.Warn().Msg("No area loader configured, every code maps to SERVICIOS")
		return domain.NewAreaTable(nil, nil)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	table, err := loadWithDeadline(ctx, l)
	if err != nil {
		log.Warn().Err(err).Msg("Could not load area table, every code maps to SERVICIOS")
		return domain.NewAreaTable(nil, nil)
	}
	log.Info().Int("areas", table.Len()).Msg("Area table loaded")
	return table
}

type loadResult struct {
	table domain.AreaTable
	err   error
}

// loadWithDeadline treats a loader that ignores ctx as failed once the
// deadline passes.
func loadWithDeadline(ctx context.Context, l Loader) (domain.AreaTable, error) {
	done := make(chan loadResult, 1)
	go func() {
		t, err := l.Load(ctx)
		done <- loadResult{table: t, err: err}
	}()

	select {
	case r := <-done:
		return r.table, r.err
	case <-ctx.Done():
		return domain.AreaTable{}, fmt.Errorf("loadWithDeadline: %w", ctx.Err())
	}
}

func cellsToStrings(cells []interface{}) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		switch v := c.(type) {
		case nil:
		case string:
			out[i] = strings.TrimSpace(v)
		case float64:
			out[i] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

func blank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
