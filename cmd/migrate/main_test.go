package main

import (
	"bytes"
	"strings"
	"testing"

	infraBQ "github.com/dvloznov/prioridades-pago/internal/infra/bigquery"
)

func TestSummary(t *testing.T) {
	tests := []struct {
		name string
		res  infraBQ.EnsureResult
		want string
	}{
		{"no changes", infraBQ.EnsureResult{}, "Schema is up to date"},
		{"created", infraBQ.EnsureResult{DatasetCreated: true, TableCreated: true}, "Schema updated: dataset created; table created"},
		{"added", infraBQ.EnsureResult{AddedColumns: []string{"tasa_cop_usd", "area"}}, "Schema updated: added columns: tasa_cop_usd, area"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.res
			if got := summary(&res); got != tt.want {
				t.Errorf("summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintSchema(t *testing.T) {
	schema, err := infraBQ.PaymentPrioritySchema()
	if err != nil {
		t.Fatalf("PaymentPrioritySchema() error = %v", err)
	}

	var buf bytes.Buffer
	printSchema(&buf, schema)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(schema) {
		t.Fatalf("printed %d lines, want %d", len(lines), len(schema))
	}
	if !strings.Contains(buf.String(), "fecha_carga") {
		t.Errorf("schema output missing fecha_carga:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "REQUIRED") {
		t.Errorf("relaxed schema should have no REQUIRED fields:\n%s", buf.String())
	}
}
