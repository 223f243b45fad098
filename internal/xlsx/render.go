package xlsx

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/prioridades-pago/internal/domain"
	"github.com/dvloznov/prioridades-pago/internal/table"
)

// Sheet names of the processed workbook.
const (
	SheetDetail = "Detalle"
	SheetRates  = "Tasa"
	SheetAreas  = "Areas"
)

const timestampLayout = "2006-01-02 15:04:05"

// RenderResult is the processed workbook and what went into it.
type RenderResult struct {
	Bytes             []byte              `json:"-"`
	Rows              int                 `json:"filas"`
	Columns           int                 `json:"columnas"`
	CalculatedColumns []string            `json:"columnas_calculadas"`
	ExtraSheets       []string            `json:"hojas_adicionales"`
	Rates             domain.RateSnapshot `json:"tasas"`
}

// Render writes the processed workbook: the Detalle sheet, the rates used and
// the area table when one was loaded.
func Render(batch *domain.Batch) (RenderResult, error) {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return RenderResult{}, fmt.Errorf("Render: create styles: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetDetail); err != nil {
		return RenderResult{}, fmt.Errorf("Render: rename sheet: %w", err)
	}
	columns := batch.OutputColumns()
	if err := writeDetail(f, st, columns, batch.Rows); err != nil {
		return RenderResult{}, fmt.Errorf("Render: %w", err)
	}

	extra := []string{SheetRates}
	if err := writeRates(f, st, batch); err != nil {
		return RenderResult{}, fmt.Errorf("Render: %w", err)
	}
	if len(batch.Areas.Rows) > 0 {
		if err := writeAreas(f, st, batch.Areas); err != nil {
			return RenderResult{}, fmt.Errorf("Render: %w", err)
		}
		extra = append(extra, SheetAreas)
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return RenderResult{}, fmt.Errorf("Render: write workbook: %w", err)
	}
	return RenderResult{
		Bytes:             buf.Bytes(),
		Rows:              len(batch.Rows),
		Columns:           len(columns),
		CalculatedColumns: domain.CalculatedColumns,
		ExtraSheets:       extra,
		Rates:             batch.Rates,
	}, nil
}

func writeDetail(f *excelize.File, st styles, columns []string, rows []domain.Row) error {
	if err := writeHeader(f, st, SheetDetail, columns); err != nil {
		return err
	}
	for i, row := range rows {
		for j, col := range columns {
			v, ok := CellValue(row, col)
			if !ok {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(SheetDetail, cell, v); err != nil {
				return fmt.Errorf("write %s!%s: %w", SheetDetail, cell, err)
			}
		}
	}

	last := len(rows) + 1
	for j, col := range columns {
		name, err := excelize.ColumnNumberToName(j + 1)
		if err != nil {
			return err
		}
		_, money := domain.MoneyColumns[col]
		if err := f.SetColWidth(SheetDetail, name, name, columnWidth(col, money)); err != nil {
			return err
		}
		if last < 2 {
			continue
		}
		style := 0
		switch {
		case money:
			style = st.money
		case isDateColumn(col):
			style = st.date
		}
		if style == 0 {
			continue
		}
		if err := f.SetCellStyle(SheetDetail, fmt.Sprintf("%s2", name), fmt.Sprintf("%s%d", name, last), style); err != nil {
			return err
		}
	}

	return f.SetPanes(SheetDetail, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeHeader(f *excelize.File, st styles, sheet string, columns []string) error {
	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	if len(columns) == 0 {
		return nil
	}
	end, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", end, st.header)
}

func writeRates(f *excelize.File, st styles, batch *domain.Batch) error {
	if _, err := f.NewSheet(SheetRates); err != nil {
		return fmt.Errorf("create %s: %w", SheetRates, err)
	}
	if err := writeHeader(f, st, SheetRates, []string{"Descripción", "Valor", "Fuente"}); err != nil {
		return err
	}
	r := batch.Rates
	lines := [][]interface{}{
		{"Tasa VES/USD", r.VESUSD, r.Source(domain.PairVESUSD)},
		{"Tasa VES/USD + 5", r.VESUSDMargin, "Calculada (Tasa + 5)"},
		{"Margen día JUEVES", r.Margin, "Configuración"},
		{"Tasa EUR/USD", r.EURUSD, r.Source(domain.PairEURUSD)},
		{"Tasa COP/USD", r.COPUSD, r.Source(domain.PairCOPUSD)},
		{"Fecha consulta", batch.CreatedAt.Format(timestampLayout), ""},
	}
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetRates, cell, &line); err != nil {
			return fmt.Errorf("write %s: %w", SheetRates, err)
		}
	}
	for col, width := range map[string]float64{"A": 20, "B": 15, "C": 30} {
		if err := f.SetColWidth(SheetRates, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

func writeAreas(f *excelize.File, st styles, areas domain.AreaTable) error {
	if _, err := f.NewSheet(SheetAreas); err != nil {
		return fmt.Errorf("create %s: %w", SheetAreas, err)
	}
	width := len(areas.Header)
	if err := writeHeader(f, st, SheetAreas, areas.Header); err != nil {
		return err
	}
	for i, row := range areas.Rows {
		width = max(width, len(row))
		line := make([]interface{}, len(row))
		for j, v := range row {
			line[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetAreas, cell, &line); err != nil {
			return fmt.Errorf("write %s: %w", SheetAreas, err)
		}
	}
	if width == 0 {
		return nil
	}
	last, err := excelize.ColumnNumberToName(width)
	if err != nil {
		return err
	}
	return f.SetColWidth(SheetAreas, "A", last, 20)
}

// CellValue is what a row writes into column col: numbers as float64 (the
// priority as int), dates as time.Time, everything else as text. ok is false
// when nothing should be written.
func CellValue(row domain.Row, col string) (interface{}, bool) {
	v, ok := row.Value(col)
	if !ok {
		return nil, false
	}
	if _, calculated := calculatedSet[col]; !calculated && row.Text(domain.InternalName(col)) == "" {
		return nil, false
	}
	if s, isText := v.(string); isText {
		if s == "" {
			return nil, false
		}
		if isDateColumn(col) {
			if ts, ok := table.ParseDate(s); ok {
				return ts, true
			}
		}
	}
	return v, true
}

var calculatedSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(domain.CalculatedColumns))
	for _, c := range domain.CalculatedColumns {
		set[c] = struct{}{}
	}
	return set
}()

func isDateColumn(col string) bool {
	_, ok := domain.DateColumns[col]
	return ok
}
