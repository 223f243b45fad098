package bigquery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/prioridades-pago/internal/logger"
)

// Defaults of the warehouse target.
const (
	DefaultDatasetID = "ppto_capex"
	DefaultTableID   = "prioridades_pago_vzla"
	partitionField   = "fecha_carga"
)

// PaymentPrioritySchema is the table schema inferred from PaymentPriorityRow,
// with every column nullable so new columns can be added to existing tables.
func PaymentPrioritySchema() (bigquery.Schema, error) {
	schema, err := bigquery.InferSchema(PaymentPriorityRow{})
	if err != nil {
		return nil, fmt.Errorf("PaymentPrioritySchema: infer: %w", err)
	}
	return schema.Relax(), nil
}

// AppendPaymentPrioritiesWithClient loads rows into datasetID.tableID with a
// WRITE_APPEND load job, creating the table when needed.
func AppendPaymentPrioritiesWithClient(ctx context.Context, client *bigquery.Client, datasetID, tableID string, rows []*PaymentPriorityRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	log := logger.FromContext(ctx)

	schema, err := PaymentPrioritySchema()
	if err != nil {
		return 0, fmt.Errorf("AppendPaymentPriorities: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return 0, fmt.Errorf("AppendPaymentPriorities: encoding row %s: %w", row.NumeroFactura, err)
		}
	}

	src := bigquery.NewReaderSource(&buf)
	src.SourceFormat = bigquery.JSON
	src.Schema = schema

	loader := client.Dataset(datasetID).Table(tableID).LoaderFrom(src)
	loader.WriteDisposition = bigquery.WriteAppend
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.TimePartitioning = &bigquery.TimePartitioning{Field: partitionField}

	job, err := loader.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("AppendPaymentPriorities: starting load job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("AppendPaymentPriorities: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("AppendPaymentPriorities: job error: %w", err)
	}

	log.Info().
		Str("job_id", job.ID()).
		Str("table", datasetID+"."+tableID).
		Int("rows", len(rows)).
		Msg("Loaded payment priorities")
	return len(rows), nil
}

// PingResult is what the connection test reports.
type PingResult struct {
	TestValue int64     `json:"test_value"`
	DatasetID string    `json:"dataset_id"`
	Location  string    `json:"location"`
	Created   time.Time `json:"created"`
}

// PingWithClient runs SELECT 1 and reads the dataset metadata.
func PingWithClient(ctx context.Context, client *bigquery.Client, datasetID string) (*PingResult, error) {
	it, err := client.Query("SELECT 1 AS test_value").Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("Ping: running query: %w", err)
	}

	var row struct {
		TestValue int64 `bigquery:"test_value"`
	}
	if err := it.Next(&row); err != nil && err != iterator.Done {
		return nil, fmt.Errorf("Ping: reading result: %w", err)
	}

	meta, err := client.Dataset(datasetID).Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("Ping: dataset %s: %w", datasetID, err)
	}

	return &PingResult{
		TestValue: row.TestValue,
		DatasetID: datasetID,
		Location:  meta.Location,
		Created:   meta.CreationTime,
	}, nil
}

// EnsureResult reports what EnsureTableWithClient changed.
type EnsureResult struct {
	DatasetCreated bool
	TableCreated   bool
	AddedColumns   []string
}

// EnsureTableWithClient creates the dataset and table when missing and adds
// any column of PaymentPriorityRow the table lacks.
func EnsureTableWithClient(ctx context.Context, client *bigquery.Client, datasetID, tableID, location string) (*EnsureResult, error) {
	schema, err := PaymentPrioritySchema()
	if err != nil {
		return nil, fmt.Errorf("EnsureTable: %w", err)
	}
	res := &EnsureResult{}

	ds := client.Dataset(datasetID)
	if _, err := ds.Metadata(ctx); err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("EnsureTable: reading dataset %s: %w", datasetID, err)
		}
		if err := ds.Create(ctx, &bigquery.DatasetMetadata{Location: location}); err != nil {
			return nil, fmt.Errorf("EnsureTable: creating dataset %s: %w", datasetID, err)
		}
		res.DatasetCreated = true
	}

	table := ds.Table(tableID)
	meta, err := table.Metadata(ctx)
	if err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("EnsureTable: reading table %s: %w", tableID, err)
		}
		err := table.Create(ctx, &bigquery.TableMetadata{
			Schema:           schema,
			TimePartitioning: &bigquery.TimePartitioning{Field: partitionField},
		})
		if err != nil {
			return nil, fmt.Errorf("EnsureTable: creating table %s: %w", tableID, err)
		}
		res.TableCreated = true
		return res, nil
	}

	missing := MissingFields(meta.Schema, schema)
	if len(missing) == 0 {
		return res, nil
	}
	update := bigquery.TableMetadataToUpdate{Schema: append(meta.Schema, missing...)}
	if _, err := table.Update(ctx, update, meta.ETag); err != nil {
		return nil, fmt.Errorf("EnsureTable: adding columns to %s: %w", tableID, err)
	}
	for _, f := range missing {
		res.AddedColumns = append(res.AddedColumns, f.Name)
	}
	return res, nil
}

// MissingFields returns the fields of want that existing lacks, in want order.
func MissingFields(existing, want bigquery.Schema) bigquery.Schema {
	have := make(map[string]struct{}, len(existing))
	for _, f := range existing {
		have[f.Name] = struct{}{}
	}
	var missing bigquery.Schema
	for _, f := range want {
		if _, ok := have[f.Name]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
