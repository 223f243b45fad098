package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/prioridades-pago/internal/domain"
)

// PaymentPriorityRow is one processed payment in the warehouse. The json tags
// match the column names and are used by the load job.
type PaymentPriorityRow struct {
	RunID      string     `bigquery:"run_id" json:"run_id"`           // REQUIRED
	FechaCarga civil.Date `bigquery:"fecha_carga" json:"fecha_carga"` // REQUIRED
	CargadoEn  time.Time  `bigquery:"cargado_en" json:"cargado_en"`   // REQUIRED

	NumeroFactura     string               `bigquery:"numero_factura" json:"numero_factura"`
	NumeroOC          string               `bigquery:"numero_oc" json:"numero_oc"`
	TipoFactura       string               `bigquery:"tipo_factura" json:"tipo_factura"`
	NombreLote        string               `bigquery:"nombre_lote" json:"nombre_lote"`
	Proveedor         string               `bigquery:"proveedor" json:"proveedor"`
	RIF               string               `bigquery:"rif" json:"rif"`
	FechaDocumento    bigquery.NullDate    `bigquery:"fecha_documento" json:"fecha_documento"` // NULLABLE
	Tienda            string               `bigquery:"tienda" json:"tienda"`
	Sucursal          string               `bigquery:"sucursal" json:"sucursal"`
	Monto             bigquery.NullFloat64 `bigquery:"monto" json:"monto"` // NULLABLE
	Moneda            string               `bigquery:"moneda" json:"moneda"`
	FechaVencimiento  bigquery.NullDate    `bigquery:"fecha_vencimiento" json:"fecha_vencimiento"` // NULLABLE
	Cuenta            string               `bigquery:"cuenta" json:"cuenta"`
	CodigoCta         string               `bigquery:"codigo_cta" json:"codigo_cta"`
	MetodoPago        string               `bigquery:"metodo_de_pago" json:"metodo_de_pago"`
	PagoIndependiente string               `bigquery:"pago_independiente" json:"pago_independiente"`
	PrioridadOrigen   bigquery.NullInt64   `bigquery:"prioridad_origen" json:"prioridad_origen"`   // NULLABLE
	MontoCapexExt     bigquery.NullFloat64 `bigquery:"monto_capex_ext" json:"monto_capex_ext"`     // NULLABLE
	MontoCapexOrd     bigquery.NullFloat64 `bigquery:"monto_capex_ord" json:"monto_capex_ord"`     // NULLABLE
	MontoCADM         bigquery.NullFloat64 `bigquery:"monto_cadm" json:"monto_cadm"`               // NULLABLE
	FechaCreacion     bigquery.NullDate    `bigquery:"fecha_creacion" json:"fecha_creacion"`       // NULLABLE
	Solicitante       string               `bigquery:"solicitante" json:"solicitante"`

	MontoCapexOrd2   float64 `bigquery:"monto_capex_ord2" json:"monto_capex_ord2"`
	MontoCapexExt3   float64 `bigquery:"monto_capex_ext3" json:"monto_capex_ext3"`
	MontoCapexFinal  float64 `bigquery:"monto_capex_final" json:"monto_capex_final"`
	MontoOpexFinal   float64 `bigquery:"monto_opex_final" json:"monto_opex_final"`
	MonedaPago       string  `bigquery:"moneda_pago" json:"moneda_pago"`
	MontoFinal       float64 `bigquery:"monto_final" json:"monto_final"`
	CuentaBancaria   string  `bigquery:"cuenta_bancaria" json:"cuenta_bancaria"`
	DiaPago          string  `bigquery:"dia_de_pago" json:"dia_de_pago"`
	MontoCapexOrdUSD float64 `bigquery:"monto_capex_ord_usd" json:"monto_capex_ord_usd"`
	MontoCapexExtUSD float64 `bigquery:"monto_capex_ext_usd" json:"monto_capex_ext_usd"`
	MontoCapexUSD    float64 `bigquery:"monto_capex_usd" json:"monto_capex_usd"`
	MontoOpexUSD     float64 `bigquery:"monto_opex_usd" json:"monto_opex_usd"`
	MontoTotalUSD    float64 `bigquery:"monto_total_usd" json:"monto_total_usd"`
	Area             string  `bigquery:"area" json:"area"`
	TipoCapex        string  `bigquery:"tipo_capex" json:"tipo_capex"`
	Capex            string  `bigquery:"capex" json:"capex"`

	TasaVESUSD     float64 `bigquery:"tasa_ves_usd" json:"tasa_ves_usd"`
	TasaVESUSDMas5 float64 `bigquery:"tasa_ves_usd_mas_5" json:"tasa_ves_usd_mas_5"`
	TasaEURUSD     float64 `bigquery:"tasa_eur_usd" json:"tasa_eur_usd"`
	TasaCOPUSD     float64 `bigquery:"tasa_cop_usd" json:"tasa_cop_usd"`
}

// NewPaymentPriorityRows converts a batch into warehouse rows. loadedAt sets
// cargado_en and, in its own location, fecha_carga.
func NewPaymentPriorityRows(batch *domain.Batch, loadedAt time.Time) []*PaymentPriorityRow {
	rows := make([]*PaymentPriorityRow, 0, len(batch.Rows))
	day := civil.DateOf(loadedAt)
	ts := loadedAt.UTC().Truncate(time.Microsecond)

	for _, r := range batch.Rows {
		rows = append(rows, &PaymentPriorityRow{
			RunID:      batch.RunID,
			FechaCarga: day,
			CargadoEn:  ts,

			NumeroFactura:     r.Text(domain.ColNumeroFactura),
			NumeroOC:          r.Text(domain.ColNumeroOC),
			TipoFactura:       r.Text(domain.ColTipoFactura),
			NombreLote:        r.Text(domain.ColNombreLote),
			Proveedor:         r.Text(domain.ColProveedor),
			RIF:               r.Text(domain.ColRIF),
			FechaDocumento:    nullDate(r.Text(domain.ColFechaDocumento)),
			Tienda:            r.Text(domain.ColTienda),
			Sucursal:          r.Text(domain.ColSucursal),
			Monto:             nullFloat(r.Record, domain.ColMonto),
			Moneda:            r.Text(domain.ColMoneda),
			FechaVencimiento:  nullDate(r.Text(domain.ColFechaVencimiento)),
			Cuenta:            r.Text(domain.ColCuenta),
			CodigoCta:         r.Text(domain.ColIDCta),
			MetodoPago:        r.Text(domain.ColMetodoPago),
			PagoIndependiente: r.Text(domain.ColPagoIndependiente),
			PrioridadOrigen:   nullPriority(r.Record),
			MontoCapexExt:     nullFloat(r.Record, domain.ColCapexExt),
			MontoCapexOrd:     nullFloat(r.Record, domain.ColCapexOrd),
			MontoCADM:         nullFloat(r.Record, domain.ColCADM),
			FechaCreacion:     nullDate(r.Text(domain.ColFechaCreacion)),
			Solicitante:       r.Text(domain.ColSolicitante),

			MontoCapexOrd2:   r.CapexOrd2,
			MontoCapexExt3:   r.CapexExt3,
			MontoCapexFinal:  r.CapexFinal,
			MontoOpexFinal:   r.OpexFinal,
			MonedaPago:       r.PaymentCurrency,
			MontoFinal:       r.FinalAmount,
			CuentaBancaria:   r.BankAccount,
			DiaPago:          r.PaymentDay,
			MontoCapexOrdUSD: r.CapexOrdUSD,
			MontoCapexExtUSD: r.CapexExtUSD,
			MontoCapexUSD:    r.CapexUSD,
			MontoOpexUSD:     r.OpexUSD,
			MontoTotalUSD:    r.TotalUSD,
			Area:             r.Area,
			TipoCapex:        r.CapexType,
			Capex:            r.CapexType2,

			TasaVESUSD:     batch.Rates.VESUSD,
			TasaVESUSDMas5: batch.Rates.VESUSDMargin,
			TasaEURUSD:     batch.Rates.EURUSD,
			TasaCOPUSD:     batch.Rates.COPUSD,
		})
	}
	return rows
}

func nullDate(s string) bigquery.NullDate {
	d, err := civil.ParseDate(s)
	if err != nil {
		return bigquery.NullDate{}
	}
	return bigquery.NullDate{Date: d, Valid: true}
}

func nullFloat(r domain.Record, col string) bigquery.NullFloat64 {
	if r.Text(col) == "" {
		return bigquery.NullFloat64{}
	}
	return bigquery.NullFloat64{Float64: r.Number(col), Valid: true}
}

func nullPriority(r domain.Record) bigquery.NullInt64 {
	if r.Text(domain.ColPrioridad) == "" {
		return bigquery.NullInt64{}
	}
	return bigquery.NullInt64{Int64: int64(r.Priority()), Valid: true}
}
