package pipeline

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/prioridades-pago/internal/domain"
	"github.com/dvloznov/prioridades-pago/internal/xlsx"
)

// IsExcelFileName reports whether name ends in .xlsx or .xls.
func IsExcelFileName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xls":
		return true
	}
	return false
}

// BatchData renders every row as a JSON object keyed by output column.
// Dates become ISO strings; cells that would be left blank are null.
func BatchData(batch *domain.Batch) []map[string]any {
	columns := batch.OutputColumns()
	out := make([]map[string]any, len(batch.Rows))
	for i, row := range batch.Rows {
		rec := make(map[string]any, len(columns))
		for _, col := range columns {
			v, ok := xlsx.CellValue(row, col)
			if !ok {
				rec[col] = nil
				continue
			}
			if ts, isDate := v.(time.Time); isDate {
				v = ts.Format("2006-01-02")
			}
			rec[col] = v
		}
		out[i] = rec
	}
	return out
}
