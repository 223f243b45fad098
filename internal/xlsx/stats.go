package xlsx

import (
	"github.com/shopspring/decimal"

	"github.com/dvloznov/prioridades-pago/internal/domain"
)

// RateSummary is the rates block of the processing stats.
type RateSummary struct {
	VESUSD       float64 `json:"tasa_ves_usd"`
	VESUSDMargin float64 `json:"tasa_ves_usd_mas_5"`
	EURUSD       float64 `json:"tasa_eur_usd"`
	COPUSD       float64 `json:"tasa_cop_usd"`
	VESSource    string  `json:"fuente_ves_usd"`
	EURSource    string  `json:"fuente_eur_usd"`
	COPSource    string  `json:"fuente_cop_usd"`
}

// Stats summarises a batch for API and CLI output.
type Stats struct {
	TotalRows         int                        `json:"total_filas"`
	TotalColumns      int                        `json:"total_columnas"`
	Columns           []string                   `json:"columnas"`
	Amounts           map[string]decimal.Decimal `json:"montos"`
	ByPaymentCurrency map[string]int             `json:"resumen_moneda_pago"`
	ByPaymentDay      map[string]int             `json:"resumen_dia_pago"`
	Rates             RateSummary                `json:"tasas"`
}

// BatchStats computes the stats of batch. Sums are exact to the cent.
func BatchStats(batch *domain.Batch) Stats {
	columns := batch.OutputColumns()
	s := Stats{
		TotalRows:         len(batch.Rows),
		TotalColumns:      len(columns),
		Columns:           columns,
		Amounts:           make(map[string]decimal.Decimal, len(domain.SumColumns)),
		ByPaymentCurrency: map[string]int{},
		ByPaymentDay:      map[string]int{},
		Rates: RateSummary{
			VESUSD:       batch.Rates.VESUSD,
			VESUSDMargin: batch.Rates.VESUSDMargin,
			EURUSD:       batch.Rates.EURUSD,
			COPUSD:       batch.Rates.COPUSD,
			VESSource:    batch.Rates.Source(domain.PairVESUSD),
			EURSource:    batch.Rates.Source(domain.PairEURUSD),
			COPSource:    batch.Rates.Source(domain.PairCOPUSD),
		},
	}

	for _, col := range domain.SumColumns {
		total := decimal.Zero
		for _, row := range batch.Rows {
			total = total.Add(decimal.NewFromFloat(row.Number(col)))
		}
		s.Amounts[col] = total.Round(2)
	}
	for _, row := range batch.Rows {
		if row.PaymentCurrency != "" {
			s.ByPaymentCurrency[row.PaymentCurrency]++
		}
		if row.PaymentDay != "" {
			s.ByPaymentDay[row.PaymentDay]++
		}
	}
	return s
}
