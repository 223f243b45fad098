package xlsx

import (
	"github.com/xuri/excelize/v2"
)

const (
	headerFill  = "4472C4"
	headerFont  = "FFFFFF"
	moneyFormat = "#,##0.00"
	dateFormat  = 14

	moneyWidth   = 18
	minWidth     = 12
	widthPadding = 2
)

type styles struct {
	header int
	money  int
	date   int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: headerFont},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Border:    border,
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return s, err
	}

	format := moneyFormat
	s.money, err = f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return s, err
	}

	s.date, err = f.NewStyle(&excelize.Style{NumFmt: dateFormat})
	return s, err
}

func columnWidth(name string, money bool) float64 {
	if money {
		return moneyWidth
	}
	return float64(max(len([]rune(name)), minWidth) + widthPadding)
}
