package domain

import (
	"math"
	"strconv"
	"strings"
)

// Labels written into the derived columns.
const (
	CurrencyVES = "VES"
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
	CurrencyCOP = "COP"

	DayThursday = "JUEVES"
	DayFriday   = "VIERNES"
	DayTuesday  = "MARTES"

	AreaRecharge = "RECARGAS"
	AreaServices = "SERVICIOS"

	TypeCapex    = "CAPEX"
	TypeOpex     = "OPEX"
	TypeMixed    = "MIXTA"
	TypeRecharge = "RECARGAS"
	TypeExt      = "EXT"
	TypeOrd      = "ORD"
	TypeLoan     = "PRESTAMO"
)

// Record is one cleaned payment row. Values is keyed by internal column name.
type Record struct {
	Values map[string]string
}

// NewRecord builds a record from parallel column/value slices. Renamed
// columns are stored under their internal name.
func NewRecord(columns, values []string) Record {
	r := Record{Values: make(map[string]string, len(columns))}
	for i, col := range columns {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		r.Values[InternalName(col)] = v
	}
	return r
}

// Text returns the trimmed cell text for col.
func (r Record) Text(col string) string {
	return strings.TrimSpace(r.Values[col])
}

// Has reports whether the record carries col at all.
func (r Record) Has(col string) bool {
	_, ok := r.Values[col]
	return ok
}

// Number coerces the cell to a float. Missing or non-numeric is 0.
func (r Record) Number(col string) float64 {
	return ParseNumber(r.Values[col])
}

func (r Record) InvoiceNumber() string { return r.Text(ColNumeroFactura) }
func (r Record) Provider() string { return r.Text(ColProveedor) }
func (r Record) Branch() string { return r.Text(ColSucursal) }
func (r Record) Currency() string { return strings.ToUpper(r.Text(ColMoneda)) }
func (r Record) Account() string { return r.Text(ColCuenta) }
func (r Record) RequesterCode() string { return r.Text(ColSolicitante) }
func (r Record) Amount() float64 { return r.Number(ColMonto) }
func (r Record) CapexExt() float64 { return r.Number(ColCapexExt) }
func (r Record) CapexOrd() float64 { return r.Number(ColCapexOrd) }
func (r Record) AdminCapex() float64 { return r.Number(ColCADM) }
func (r Record) HasCurrency() bool { return r.Text(ColMoneda) != "" }

// Priority is the integer source priority; unparseable is 0.
func (r Record) Priority() int {
	f := ParseNumber(r.Values[ColPrioridad])
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

// ParseNumber parses a raw cell value. Accepts plain decimals as written by
// spreadsheet raw values and tolerates thousands separators.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
		return f
	}
	return 0
}

// IsNumeric reports whether s parses as a number.
func IsNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// NormalizeCode trims a lookup code and drops a trailing ".0" style fraction
// from integral numbers so "123", " 123 " and "123.0" collide.
func NormalizeCode(s string) string {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

// Derived holds the computed columns of one record.
type Derived struct {
	PaymentCurrency string
	BankAccount     string
	PaymentDay      string
	FinalAmount     float64
	CapexFinal      float64
	OpexFinal       float64
	Area            string
	CapexType2      string
	CapexType       string
	CapexOrd2       float64
	CapexExt3       float64
	CapexOrdUSD     float64
	CapexExtUSD     float64
	CapexUSD        float64
	OpexUSD         float64
	TotalUSD        float64
}

// Row is a record plus its derived columns.
type Row struct {
	Record
	Derived
}

// Value returns the value for an output column name: float64 for numeric
// columns, int for the priority, string otherwise. ok is false when the row
// has no such column.
func (r Row) Value(col string) (any, bool) {
	switch col {
	case "Moneda Pago":
		return r.PaymentCurrency, true
	case "Cuenta Bancaria":
		return r.BankAccount, true
	case "Día de pago":
		return r.PaymentDay, true
	case "Monto Final":
		return r.FinalAmount, true
	case "MONTO CAPEX FINAL":
		return r.CapexFinal, true
	case "MONTO OPEX FINAL":
		return r.OpexFinal, true
	case "ÁREA":
		return r.Area, true
	case "CAPEX":
		return r.CapexType2, true
	case "TIPO CAPEX":
		return r.CapexType, true
	case "MONTO CAPEX ORD2":
		return r.CapexOrd2, true
	case "MONTO CAPEX EXT3":
		return r.CapexExt3, true
	case "MONTO CAPEX ORD USD":
		return r.CapexOrdUSD, true
	case "MONTO CAPEX EXT USD":
		return r.CapexExtUSD, true
	case "Monto CAPEX USD":
		return r.CapexUSD, true
	case "Monto OPEX USD":
		return r.OpexUSD, true
	case "MONTO TOTAL USD":
		return r.TotalUSD, true
	}

	internal := InternalName(col)
	if !r.Has(internal) {
		return nil, false
	}
	if internal == ColPrioridad {
		return r.Priority(), true
	}
	if _, numeric := NumericColumns[col]; numeric {
		return r.Number(internal), true
	}
	return r.Text(internal), true
}
