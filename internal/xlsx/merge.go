package xlsx

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/prioridades-pago/internal/domain"
)

// Template layout. Data starts at column D, row 2; the header row belongs to
// the template.
const (
	TemplateSheet    = SheetDetail
	templateFirstCol = 4
	templateFirstRow = 2
)

// Cells stamped with the batch rates.
const (
	CellRateVES       = "AQ1"
	CellRateVESMargin = "AT1"
	CellRateEUR       = "AW1"
	CellRateCOP       = "AZ1"
)

// Merge writes batch into the Detalle sheet of template, one row per record
// in output column order, and stamps the four rates. The template header row
// is never written.
func Merge(batch *domain.Batch, template []byte) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(template))
	if err != nil {
		return nil, domain.NewInputError("template cannot be opened as .xlsx", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if !slices.Contains(sheets, TemplateSheet) {
		return nil, &domain.SchemaError{Sheet: TemplateSheet, Available: sheets}
	}

	for i, row := range batch.Rows {
		for j, col := range domain.OutputColumns {
			v, ok := CellValue(row, col)
			if !ok {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(templateFirstCol+j, templateFirstRow+i)
			if err != nil {
				return nil, fmt.Errorf("Merge: %w", err)
			}
			if err := f.SetCellValue(TemplateSheet, cell, v); err != nil {
				return nil, fmt.Errorf("Merge: write %s: %w", cell, err)
			}
		}
	}

	stamps := []struct {
		cell string
		rate float64
	}{
		{CellRateVES, batch.Rates.VESUSD},
		{CellRateVESMargin, batch.Rates.VESUSDMargin},
		{CellRateEUR, batch.Rates.EURUSD},
		{CellRateCOP, batch.Rates.COPUSD},
	}
	for _, s := range stamps {
		if err := f.SetCellValue(TemplateSheet, s.cell, s.rate); err != nil {
			return nil, fmt.Errorf("Merge: write %s: %w", s.cell, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("Merge: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
