// Package table turns a raw spreadsheet grid into a clean, row-oriented
// table of payment records.
package table

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/prioridades-pago/internal/domain"
)

// DefaultMaxScan is how many leading rows FindHeaderRow inspects.
const DefaultMaxScan = 20

const (
	minExpectedMatches = 5
	minFallbackCells   = 10
	placeholderPrefix  = "Columna_"
	dateLayout         = "2006-01-02"
)

// Method names the rule that chose the header row.
type Method string

const (
	MethodExpected Method = "expected_headers"
	MethodDense    Method = "dense_text_row"
	MethodFirstRow Method = "first_row"
)

// Table is a header plus rows, every row as wide as the header.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Width is the number of columns.
func (t Table) Width() int { return len(t.Columns) }

// Index returns the position of col, or -1.
func (t Table) Index(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// HasColumn reports whether col is present.
func (t Table) HasColumn(col string) bool { return t.Index(col) >= 0 }

// FindHeaderRow locates the header row within the first maxScan rows of grid.
// A row containing at least five expected headers wins immediately. Otherwise
// the first row with ten or more non-empty cells, at least half of them text,
// is used. Failing both, row 0 is the header.
func FindHeaderRow(grid [][]string, maxScan int) (int, []string, Method) {
	if maxScan <= 0 {
		maxScan = DefaultMaxScan
	}
	limit := min(maxScan, len(grid))

	for i := 0; i < limit; i++ {
		matches := 0
		for _, cell := range grid[i] {
			if domain.IsExpectedHeader(normalizeName(cell)) {
				matches++
			}
		}
		if matches >= minExpectedMatches {
			return i, headerNames(grid[i]), MethodExpected
		}
	}

	for i := 0; i < limit; i++ {
		nonEmpty, text := 0, 0
		for _, cell := range grid[i] {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			nonEmpty++
			if !domain.IsNumeric(cell) {
				text++
			}
		}
		if nonEmpty >= minFallbackCells && text*2 >= nonEmpty {
			return i, headerNames(grid[i]), MethodDense
		}
	}

	if len(grid) == 0 {
		return 0, nil, MethodFirstRow
	}
	return 0, headerNames(grid[0]), MethodFirstRow
}

func headerNames(row []string) []string {
	names := make([]string, len(row))
	for i, cell := range row {
		name := normalizeName(cell)
		if name == "" {
			name = fmt.Sprintf("%s%d", placeholderPrefix, i)
		}
		names[i] = name
	}
	return names
}

// FromGrid builds a table whose header is grid[headerIdx]. Rows are padded or
// truncated to the header width.
func FromGrid(grid [][]string, headerIdx int) Table {
	if headerIdx < 0 || headerIdx >= len(grid) {
		return Table{}
	}
	columns := headerNames(grid[headerIdx])
	width := len(columns)
	// Data rows may be wider than a header with trailing blanks.
	for _, row := range grid[headerIdx+1:] {
		width = max(width, len(row))
	}
	for i := len(columns); i < width; i++ {
		columns = append(columns, fmt.Sprintf("%s%d", placeholderPrefix, i))
	}

	rows := make([][]string, 0, len(grid)-headerIdx-1)
	for _, raw := range grid[headerIdx+1:] {
		row := make([]string, width)
		copy(row, raw)
		rows = append(rows, row)
	}
	return Table{Columns: columns, Rows: rows}
}

// CleanReport counts what Clean removed.
type CleanReport struct {
	EmptyRows      int      `json:"filas_vacias"`
	EmptyColumns   int      `json:"columnas_vacias"`
	UnnamedColumns int      `json:"columnas_sin_nombre"`
	SummaryRows    int      `json:"filas_totales"`
	Dropped        []string `json:"columnas_eliminadas,omitempty"`
}

// Clean normalises column names and removes empty rows, empty optional
// columns, header-less columns and report total rows. Running it on its own
// output changes nothing.
func Clean(t Table) (Table, CleanReport) {
	var report CleanReport

	columns := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		columns[i] = normalizeName(c)
	}

	rows := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if isBlankRow(row) {
			report.EmptyRows++
			continue
		}
		rows = append(rows, row)
	}

	keep := make([]int, 0, len(columns))
	for i, name := range columns {
		switch {
		case isUnnamed(name):
			report.UnnamedColumns++
			report.Dropped = append(report.Dropped, name)
		case columnBlank(rows, i) && !domain.IsExpectedHeader(domain.InternalName(name)):
			report.EmptyColumns++
			report.Dropped = append(report.Dropped, name)
		default:
			keep = append(keep, i)
		}
	}

	out := Table{Columns: make([]string, len(keep)), Rows: make([][]string, 0, len(rows))}
	for j, i := range keep {
		out.Columns[j] = columns[i]
	}
	invoiceIdx := out.Index(domain.ColNumeroFactura)
	for _, row := range rows {
		projected := make([]string, len(keep))
		for j, i := range keep {
			if i < len(row) {
				projected[j] = row[i]
			}
		}
		if invoiceIdx >= 0 && IsSummaryRow(projected[invoiceIdx]) {
			report.SummaryRows++
			continue
		}
		out.Rows = append(out.Rows, projected)
	}
	return out, report
}

// IsSummaryRow reports whether an invoice number cell marks a report total.
func IsSummaryRow(invoice string) bool {
	v := strings.ToUpper(strings.TrimSpace(invoice))
	return v == "TOTAL" ||
		strings.Contains(v, "TOTAL DE FACTURAS") ||
		strings.Contains(v, "TOTAL FACTURAS")
}

func normalizeName(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

func isUnnamed(name string) bool {
	return name == "" || strings.HasPrefix(name, "Unnamed") || strings.HasPrefix(name, placeholderPrefix)
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func columnBlank(rows [][]string, col int) bool {
	for _, row := range rows {
		if col < len(row) && strings.TrimSpace(row[col]) != "" {
			return false
		}
	}
	return true
}

// NormalizeDates returns a copy of t with spreadsheet serial dates in the
// date columns rewritten as ISO dates. Cells that are not serial numbers are
// left alone. t is not modified.
func NormalizeDates(t Table) Table {
	out := Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]string, len(t.Rows)),
	}
	for r, row := range t.Rows {
		out.Rows[r] = append([]string(nil), row...)
	}

	for col := range domain.DateColumns {
		i := out.Index(col)
		if i < 0 {
			continue
		}
		for _, row := range out.Rows {
			if iso, ok := serialToISO(row[i]); ok {
				row[i] = iso
			}
		}
	}
	return out
}

func serialToISO(cell string) (string, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" || !domain.IsNumeric(cell) {
		return "", false
	}
	serial := domain.ParseNumber(cell)
	if serial <= 0 {
		return "", false
	}
	ts, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return "", false
	}
	return ts.Format(dateLayout), true
}

// ParseDate parses an ISO date produced by NormalizeDates.
func ParseDate(s string) (time.Time, bool) {
	ts, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Records converts every row into a domain record.
func Records(t Table) []domain.Record {
	out := make([]domain.Record, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = domain.NewRecord(t.Columns, row)
	}
	return out
}

// Processed reports whether t is already the Detalle sheet of a processed
// workbook.
func Processed(t Table) bool {
	for _, marker := range domain.ProcessedMarkers {
		if !t.HasColumn(marker) {
			return false
		}
	}
	return true
}

// RowsFromProcessed rebuilds rows from a processed workbook without deriving
// anything again.
func RowsFromProcessed(t Table) []domain.Row {
	records := Records(t)
	rows := make([]domain.Row, len(records))
	for i, r := range records {
		rows[i] = domain.Row{
			Record: r,
			Derived: domain.Derived{
				PaymentCurrency: r.Text(domain.ColMonedaPago),
				BankAccount:     r.Text(domain.ColCuentaBancaria),
				PaymentDay:      r.Text(domain.ColDiaPago),
				FinalAmount:     r.Number(domain.ColMontoFinal),
				CapexFinal:      r.Number(domain.ColCapexFinal),
				OpexFinal:       r.Number(domain.ColOpexFinal),
				Area:            r.Text(domain.ColArea),
				CapexType2:      r.Text(domain.ColTipoCapex2),
				CapexType:       r.Text(domain.ColTipoCapex),
				CapexOrd2:       r.Number(domain.ColCapexOrd2),
				CapexExt3:       r.Number(domain.ColCapexExt3),
				CapexOrdUSD:     r.Number(domain.ColCapexOrdUSD),
				CapexExtUSD:     r.Number(domain.ColCapexExtUSD),
				CapexUSD:        r.Number(domain.ColCapexUSD),
				OpexUSD:         r.Number(domain.ColOpexUSD),
				TotalUSD:        r.Number(domain.ColTotalUSD),
			},
		}
	}
	return rows
}
