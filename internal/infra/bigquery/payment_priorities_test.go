package bigquery

import (
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/prioridades-pago/internal/domain"
)

func testBatch() *domain.Batch {
	rec := domain.NewRecord(
		[]string{"Numero de Factura", "Monto", "Moneda", "Prioridad origen", "Fecha Documento", "CODIGO CTA", "Monto CADM"},
		[]string{"F-1", "1000", "USD", "69", "2024-01-15", "C-9", ""},
	)
	return &domain.Batch{
		RunID: "run-42",
		Rows: []domain.Row{{
			Record: rec,
			Derived: domain.Derived{
				PaymentCurrency: domain.CurrencyUSD,
				PaymentDay:      domain.DayFriday,
				FinalAmount:     1000,
				OpexFinal:       1000,
				OpexUSD:         1000,
				TotalUSD:        1000,
				Area:            domain.AreaServices,
				CapexType2:      domain.TypeOpex,
				CapexType:       domain.TypeOpex,
			},
		}},
		Rates: domain.DefaultRateSnapshot(),
	}
}

func TestNewPaymentPriorityRows(t *testing.T) {
	caracas := time.FixedZone("VET", -4*60*60)
	loadedAt := time.Date(2024, 5, 1, 22, 30, 0, 123456789, caracas)

	rows := NewPaymentPriorityRows(testBatch(), loadedAt)

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	r := rows[0]
	if r.RunID != "run-42" {
		t.Errorf("RunID = %q", r.RunID)
	}
	if r.FechaCarga != (civil.Date{Year: 2024, Month: 5, Day: 1}) {
		t.Errorf("FechaCarga = %v, want local date 2024-05-01", r.FechaCarga)
	}
	if r.CargadoEn.Location() != time.UTC || r.CargadoEn.Nanosecond() != 123456000 {
		t.Errorf("CargadoEn = %v, want UTC truncated to microseconds", r.CargadoEn)
	}
	if !r.FechaDocumento.Valid || r.FechaDocumento.Date.String() != "2024-01-15" {
		t.Errorf("FechaDocumento = %+v", r.FechaDocumento)
	}
	if r.FechaVencimiento.Valid {
		t.Errorf("FechaVencimiento should be NULL, got %+v", r.FechaVencimiento)
	}
	if !r.PrioridadOrigen.Valid || r.PrioridadOrigen.Int64 != 69 {
		t.Errorf("PrioridadOrigen = %+v", r.PrioridadOrigen)
	}
	if r.CodigoCta != "C-9" {
		t.Errorf("CodigoCta = %q", r.CodigoCta)
	}
	if !r.Monto.Valid || r.Monto.Float64 != 1000 {
		t.Errorf("Monto = %+v", r.Monto)
	}
	if r.MontoCADM.Valid {
		t.Errorf("MontoCADM should be NULL, got %+v", r.MontoCADM)
	}
	if r.MonedaPago != domain.CurrencyUSD || r.MontoTotalUSD != 1000 || r.Capex != domain.TypeOpex {
		t.Errorf("derived fields not copied: %+v", r)
	}
	if r.TasaVESUSD != domain.DefaultVESUSD || r.TasaVESUSDMas5 != domain.DefaultVESUSD+domain.ThursdayMargin {
		t.Errorf("rates not copied: %v %v", r.TasaVESUSD, r.TasaVESUSDMas5)
	}
}

func TestPaymentPriorityRow_JSONMatchesSchema(t *testing.T) {
	schema, err := PaymentPrioritySchema()
	if err != nil {
		t.Fatalf("PaymentPrioritySchema() error = %v", err)
	}

	rows := NewPaymentPriorityRows(testBatch(), time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	data, err := json.Marshal(rows[0])
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}

	if len(decoded) != len(schema) {
		t.Errorf("json has %d fields, schema has %d", len(decoded), len(schema))
	}
	for _, f := range schema {
		if _, ok := decoded[f.Name]; !ok {
			t.Errorf("column %s missing from json", f.Name)
		}
		if f.Required {
			t.Errorf("column %s should be nullable", f.Name)
		}
	}
	if decoded["fecha_vencimiento"] != nil {
		t.Errorf("fecha_vencimiento = %v, want null", decoded["fecha_vencimiento"])
	}
	if decoded["fecha_carga"] != "2024-05-01" {
		t.Errorf("fecha_carga = %v", decoded["fecha_carga"])
	}
}

func TestMissingFields(t *testing.T) {
	existing := bigquery.Schema{
		{Name: "run_id", Type: bigquery.StringFieldType},
		{Name: "monto", Type: bigquery.FloatFieldType},
	}
	want := bigquery.Schema{
		{Name: "run_id", Type: bigquery.StringFieldType},
		{Name: "area", Type: bigquery.StringFieldType},
		{Name: "monto", Type: bigquery.FloatFieldType},
		{Name: "tasa_cop_usd", Type: bigquery.FloatFieldType},
	}

	missing := MissingFields(existing, want)

	if len(missing) != 2 || missing[0].Name != "area" || missing[1].Name != "tasa_cop_usd" {
		t.Errorf("MissingFields() = %v", missing)
	}
	if got := MissingFields(want, want); len(got) != 0 {
		t.Errorf("MissingFields(same) = %v, want none", got)
	}
}
