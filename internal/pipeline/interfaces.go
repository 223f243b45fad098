package pipeline

import (
	"context"

	"github.com/dvloznov/prioridades-pago/internal/gcs"
	infra "github.com/dvloznov/prioridades-pago/internal/infra/bigquery"
)

// StorageService is the object store the artifacts and the template live in.
type StorageService = gcs.StorageService

// WarehouseLoader appends a batch to the warehouse table.
// infra.BigQueryPaymentPriorityRepository implements it.
type WarehouseLoader interface {
	AppendRows(ctx context.Context, rows []*infra.PaymentPriorityRow) (int, error)
	TableRef() string
}
