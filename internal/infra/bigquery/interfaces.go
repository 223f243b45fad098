package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// PaymentPriorityRepository provides the warehouse operations of the service.
type PaymentPriorityRepository interface {
	// AppendRows loads rows into the payment priorities table and returns how many were loaded.
	AppendRows(ctx context.Context, rows []*PaymentPriorityRow) (int, error)

	// Ping checks the warehouse is reachable.
	Ping(ctx context.Context) (*PingResult, error)
}

// BigQueryPaymentPriorityRepository is the concrete implementation of
// PaymentPriorityRepository. It holds a shared BigQuery client to avoid
// creating a new connection for each operation.
type BigQueryPaymentPriorityRepository struct {
	client    *bigquery.Client
	datasetID string
	tableID   string
}

// NewBigQueryPaymentPriorityRepository creates a new instance of
// BigQueryPaymentPriorityRepository with a shared BigQuery client.
func NewBigQueryPaymentPriorityRepository(ctx context.Context, projectID, datasetID, tableID string) (*BigQueryPaymentPriorityRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryPaymentPriorityRepository: creating client: %w", err)
	}
	if datasetID == "" {
		datasetID = DefaultDatasetID
	}
	if tableID == "" {
		tableID = DefaultTableID
	}
	return &BigQueryPaymentPriorityRepository{
		client:    client,
		datasetID: datasetID,
		tableID:   tableID,
	}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *BigQueryPaymentPriorityRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// TableRef is dataset.table.
func (r *BigQueryPaymentPriorityRepository) TableRef() string {
	return r.datasetID + "." + r.tableID
}

// AppendRows delegates to AppendPaymentPrioritiesWithClient with the shared client.
func (r *BigQueryPaymentPriorityRepository) AppendRows(ctx context.Context, rows []*PaymentPriorityRow) (int, error) {
	return AppendPaymentPrioritiesWithClient(ctx, r.client, r.datasetID, r.tableID, rows)
}

// Ping delegates to PingWithClient with the shared client.
func (r *BigQueryPaymentPriorityRepository) Ping(ctx context.Context) (*PingResult, error) {
	return PingWithClient(ctx, r.client, r.datasetID)
}

// EnsureTable delegates to EnsureTableWithClient with the shared client.
func (r *BigQueryPaymentPriorityRepository) EnsureTable(ctx context.Context, location string) (*EnsureResult, error) {
	return EnsureTableWithClient(ctx, r.client, r.datasetID, r.tableID, location)
}
