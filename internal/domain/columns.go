package domain

// Raw column headers as they appear in the source spreadsheet.
const (
	ColNumeroFactura     = "Numero de Factura"
	ColNumeroOC          = "Numero de OC"
	ColTipoFactura       = "Tipo Factura"
	ColNombreLote        = "Nombre Lote"
	ColProveedor         = "Proveedor"
	ColRIF               = "RIF"
	ColFechaDocumento    = "Fecha Documento"
	ColTienda            = "Tienda"
	ColSucursal          = "Sucursal"
	ColMonto             = "Monto"
	ColMoneda            = "Moneda"
	ColFechaVencimiento  = "Fecha Vencimiento"
	ColCuenta            = "Cuenta"
	ColBanco             = "Banco"
	ColIDCta             = "Id Cta"
	ColMetodoPago        = "Método de Pago"
	ColPagoIndependiente = "Pago Independiente"
	ColPrioridad         = "Prioridad"
	ColCapexExt          = "Monto CAPEX EXT"
	ColCapexOrd          = "Monto CAPEX ORD"
	ColCADM              = "Monto CADM"
	ColFechaCreacion     = "Fecha Creación"
	ColSolicitante       = "Solicitante"
	ColProveedorRemito   = "Proveedor Remito"
)

// Derived column headers, internal names (before renaming).
const (
	ColMonedaPago     = "Moneda Pago"
	ColCuentaBancaria = "Cuenta Bancaria"
	ColDiaPago        = "Dia de Pago"
	ColMontoFinal     = "Monto Final"
	ColCapexFinal     = "Monto Capex Final"
	ColOpexFinal      = "Monto Opex Final"
	ColArea           = "AREA"
	ColTipoCapex2     = "Tipo Capex 2"
	ColTipoCapex      = "Tipo Capex"
	ColCapexOrd2      = "Monto Capex ORD 2"
	ColCapexExt3      = "Monto Capex EXT 3"
	ColCapexOrdUSD    = "Monto Capex ORD USD"
	ColCapexExtUSD    = "Monto Capex EXT USD"
	ColCapexUSD       = "Monto CAPEX USD"
	ColOpexUSD        = "Monto OPEX USD"
	ColTotalUSD       = "Monto Total USD"
)

// ExpectedHeaders is the fixed raw schema of the Prioridades de Pago export.
var ExpectedHeaders = []string{
	ColNumeroFactura,
	ColNumeroOC,
	ColTipoFactura,
	ColNombreLote,
	ColProveedor,
	ColRIF,
	ColFechaDocumento,
	ColTienda,
	ColSucursal,
	ColMonto,
	ColMoneda,
	ColFechaVencimiento,
	ColCuenta,
	ColBanco,
	ColIDCta,
	ColMetodoPago,
	ColPagoIndependiente,
	ColPrioridad,
	ColCapexExt,
	ColCapexOrd,
	ColCADM,
	ColFechaCreacion,
	ColSolicitante,
	ColProveedorRemito,
}

var expectedSet = toSet(ExpectedHeaders)

// IsExpectedHeader reports whether name is one of the 24 raw headers.
func IsExpectedHeader(name string) bool {
	_, ok := expectedSet[name]
	return ok
}

// RenameColumns maps internal column names to the names used in every
// produced workbook and in the warehouse.
var RenameColumns = map[string]string{
	ColTipoFactura: "Tipo factura",
	ColIDCta:       "CODIGO CTA",
	ColMetodoPago:  "METODO DE PAGO",
	ColPrioridad:   "Prioridad origen",
	ColCapexOrd2:   "MONTO CAPEX ORD2",
	ColCapexExt3:   "MONTO CAPEX EXT3",
	ColCapexFinal:  "MONTO CAPEX FINAL",
	ColOpexFinal:   "MONTO OPEX FINAL",
	ColDiaPago:     "Día de pago",
	ColCapexOrdUSD: "MONTO CAPEX ORD USD",
	ColCapexExtUSD: "MONTO CAPEX EXT USD",
	ColTotalUSD:    "MONTO TOTAL USD",
	ColArea:        "ÁREA",
	ColTipoCapex:   "TIPO CAPEX",
	ColTipoCapex2:  "CAPEX",
}

var renamedBack = invert(RenameColumns)

// Rename returns the output name for an internal column name. Names that are
// already renamed, or are not part of the rename map, are returned as is.
func Rename(name string) string {
	if out, ok := RenameColumns[name]; ok {
		return out
	}
	return name
}

// RenameAll applies Rename to every column, keeping order.
func RenameAll(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = Rename(c)
	}
	return out
}

// InternalName is the inverse of Rename.
func InternalName(name string) string {
	if in, ok := renamedBack[name]; ok {
		return in
	}
	return name
}

// OutputColumns is the column order of the Detalle sheet and of the template
// merge. Banco and Proveedor Remito are intentionally absent.
var OutputColumns = []string{
	"Numero de Factura",
	"Numero de OC",
	"Tipo factura",
	"Nombre Lote",
	"Proveedor",
	"RIF",
	"Fecha Documento",
	"Tienda",
	"Sucursal",
	"Monto",
	"Moneda",
	"Fecha Vencimiento",
	"Cuenta",
	"CODIGO CTA",
	"METODO DE PAGO",
	"Pago Independiente",
	"Prioridad origen",
	"Monto CAPEX EXT",
	"Monto CAPEX ORD",
	"Monto CADM",
	"Fecha Creación",
	"Solicitante",
	"MONTO CAPEX ORD2",
	"MONTO CAPEX EXT3",
	"MONTO CAPEX FINAL",
	"MONTO OPEX FINAL",
	"Moneda Pago",
	"Monto Final",
	"Cuenta Bancaria",
	"Día de pago",
	"MONTO CAPEX ORD USD",
	"MONTO CAPEX EXT USD",
	"Monto CAPEX USD",
	"Monto OPEX USD",
	"MONTO TOTAL USD",
	"ÁREA",
	"TIPO CAPEX",
	"CAPEX",
}

// CalculatedColumns lists the derived columns by output name, in the order
// they are reported back to callers.
var CalculatedColumns = []string{
	"Moneda Pago",
	"Cuenta Bancaria",
	"Día de pago",
	"Monto Final",
	"MONTO CAPEX FINAL",
	"MONTO OPEX FINAL",
	"ÁREA",
	"CAPEX",
	"TIPO CAPEX",
	"MONTO CAPEX ORD2",
	"MONTO CAPEX EXT3",
	"MONTO CAPEX ORD USD",
	"MONTO CAPEX EXT USD",
	"Monto CAPEX USD",
	"Monto OPEX USD",
	"MONTO TOTAL USD",
}

// MoneyColumns get the #,##0.00 format in the Detalle sheet.
var MoneyColumns = toSet([]string{
	"Monto Final",
	"MONTO CAPEX FINAL",
	"MONTO OPEX FINAL",
	"MONTO CAPEX ORD2",
	"MONTO CAPEX EXT3",
	"MONTO CAPEX ORD USD",
	"MONTO CAPEX EXT USD",
	"Monto CAPEX USD",
	"Monto OPEX USD",
	"MONTO TOTAL USD",
})

// NumericColumns are written as numbers rather than text. Output names.
var NumericColumns = toSet([]string{
	"Monto",
	"Monto CAPEX EXT",
	"Monto CAPEX ORD",
	"Monto CADM",
	"Prioridad origen",
	"Monto Final",
	"MONTO CAPEX FINAL",
	"MONTO OPEX FINAL",
	"MONTO CAPEX ORD2",
	"MONTO CAPEX EXT3",
	"MONTO CAPEX ORD USD",
	"MONTO CAPEX EXT USD",
	"Monto CAPEX USD",
	"Monto OPEX USD",
	"MONTO TOTAL USD",
})

// DateColumns hold spreadsheet dates (serial numbers in raw cell values).
var DateColumns = toSet([]string{
	ColFechaDocumento,
	ColFechaVencimiento,
	ColFechaCreacion,
})

// ProcessedMarkers are present only in a workbook produced by Paso 1.
var ProcessedMarkers = []string{"Moneda Pago", "Monto Final", "ÁREA"}

// SumColumns are totalled in the processing stats.
var SumColumns = []string{ColMonto, ColCapexExt, ColCapexOrd, ColCADM}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}
