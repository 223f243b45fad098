// Package xlsx reads payment workbooks and writes the processed and merged
// workbooks.
package xlsx

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/prioridades-pago/internal/domain"
)

// ReadGrid returns the raw cell values of sheet, or of the first sheet when
// sheet is empty, together with the sheet name that was read. Numbers come
// back unformatted.
func ReadGrid(data []byte, sheet string) ([][]string, string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, "", domain.NewInputError("workbook cannot be opened as .xlsx", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, "", domain.NewInputError("workbook has no sheets", nil)
	}
	if sheet == "" {
		sheet = sheets[0]
	} else if !slices.Contains(sheets, sheet) {
		return nil, "", domain.NewInputError(fmt.Sprintf("sheet %q not found", sheet), &domain.SchemaError{Sheet: sheet, Available: sheets})
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, "", domain.NewInputError(fmt.Sprintf("sheet %q cannot be read", sheet), err)
	}
	return rows, sheet, nil
}
