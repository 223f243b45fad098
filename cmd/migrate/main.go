package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/prioridades-pago/internal/config"
	infraBQ "github.com/dvloznov/prioridades-pago/internal/infra/bigquery"
	"github.com/dvloznov/prioridades-pago/internal/logger"
)

var (
	envFile = flag.String("env", ".env", "Optional .env file")
	dryRun  = flag.Bool("dry-run", false, "Print the table schema without connecting")
)

func main() {
	flag.Parse()

	log := logger.New()
	if err := config.LoadEnv(*envFile); err != nil {
		log.Fatal().Err(err).Msg("Failed to load env file")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	schema, err := infraBQ.PaymentPrioritySchema()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build schema")
	}
	if *dryRun {
		printSchema(os.Stdout, schema)
		return
	}

	// Validate required settings
	if !cfg.HasBigQuery() {
		log.Fatal().Msg("GCP_PROJECT_ID is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().
		Str("project_id", cfg.ProjectID).
		Str("dataset", cfg.BigQuery.Dataset).
		Str("table", cfg.BigQuery.Table).
		Msg("Connected to BigQuery")

	res, err := infraBQ.EnsureTableWithClient(ctx, client, cfg.BigQuery.Dataset, cfg.BigQuery.Table, cfg.BigQuery.Location)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure table")
	}

	log.Info().Msg(summary(res))
}

// summary describes what EnsureTableWithClient changed.
func summary(res *infraBQ.EnsureResult) string {
	var parts []string
	if res.DatasetCreated {
		parts = append(parts, "dataset created")
	}
	if res.TableCreated {
		parts = append(parts, "table created")
	}
	if len(res.AddedColumns) > 0 {
		parts = append(parts, fmt.Sprintf("added columns: %s", strings.Join(res.AddedColumns, ", ")))
	}
	if len(parts) == 0 {
		return "Schema is up to date"
	}
	return "Schema updated: " + strings.Join(parts, "; ")
}

func printSchema(w io.Writer, schema bigquery.Schema) {
	for _, f := range schema {
		mode := "NULLABLE"
		if f.Required {
			mode = "REQUIRED"
		}
		if f.Repeated {
			mode = "REPEATED"
		}
		fmt.Fprintf(w, "%-32s %-10s %s\n", f.Name, f.Type, mode)
	}
}
