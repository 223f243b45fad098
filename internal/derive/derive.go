// Package derive computes the payment columns of a batch. Every rule is a
// pure function of the record, earlier derived fields and the batch
// snapshots; nothing here performs I/O.
package derive

import (
	"github.com/dvloznov/prioridades-pago/internal/domain"
)

var paymentChain = mustChain(PaymentStages()...)

func mustChain(stages ...Stage) *Chain {
	c, err := NewChain(stages...)
	if err != nil {
		panic(err)
	}
	return c
}

// Derive computes every derived field for records using the given rate and
// area snapshots. It returns the rows and the rates they were computed with.
func Derive(records []domain.Record, rates domain.RateSnapshot, areas domain.AreaTable) ([]domain.Row, domain.RateSnapshot) {
	rows := make([]domain.Row, len(records))
	for i, r := range records {
		rows[i] = domain.Row{Record: r}
	}
	return paymentChain.Run(rows, Inputs{Rates: rates, Areas: areas}), rates
}
