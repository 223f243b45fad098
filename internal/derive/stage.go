package derive

import (
	"fmt"

	"github.com/dvloznov/prioridades-pago/internal/domain"
)

// Inputs are the batch-level snapshots every stage may read.
type Inputs struct {
	Rates domain.RateSnapshot
	Areas domain.AreaTable
}

// Stage populates one derived field for every row. Needs lists the derived
// fields that must already be set.
type Stage struct {
	Name     string
	Needs    []string
	Provides string
	apply    func(r domain.Row, in Inputs) domain.Row
}

// Run returns a copy of rows with the stage's field populated.
func (s Stage) Run(rows []domain.Row, in Inputs) []domain.Row {
	out := make([]domain.Row, len(rows))
	for i, r := range rows {
		out[i] = s.apply(r, in)
	}
	return out
}

// Chain is an ordered, validated list of stages.
type Chain struct {
	stages []Stage
}

// NewChain checks that every stage's needs are provided by an earlier stage
// and that no field is provided twice.
func NewChain(stages ...Stage) (*Chain, error) {
	provided := make(map[string]string, len(stages))
	for i, s := range stages {
		if s.apply == nil {
			return nil, fmt.Errorf("NewChain: stage %d (%s) has no rule", i+1, s.Name)
		}
		for _, need := range s.Needs {
			if _, ok := provided[need]; !ok {
				return nil, fmt.Errorf("NewChain: stage %d (%s) needs %q before it is provided", i+1, s.Name, need)
			}
		}
		if prev, dup := provided[s.Provides]; dup {
			return nil, fmt.Errorf("NewChain: %q provided by both %s and %s", s.Provides, prev, s.Name)
		}
		provided[s.Provides] = s.Name
	}
	return &Chain{stages: stages}, nil
}

// Stages returns the stages in execution order.
func (c *Chain) Stages() []Stage {
	return append([]Stage(nil), c.stages...)
}

// Run applies every stage in order, one full column at a time.
func (c *Chain) Run(rows []domain.Row, in Inputs) []domain.Row {
	for _, s := range c.stages {
		rows = s.Run(rows, in)
	}
	return rows
}

// Stages of the payment derivation, in dependency order.
var (
	paymentCurrencyStage = Stage{
		Name:     "payment_currency",
		Provides: domain.ColMonedaPago,
		apply: func(r domain.Row, _ Inputs) domain.Row {
			r.PaymentCurrency = PaymentCurrency(r.Currency(), r.Priority())
			return r
		},
	}
	bankAccountStage = Stage{
		Name:     "bank_account",
		Provides: domain.ColCuentaBancaria,
		apply: func(r domain.Row, _ Inputs) domain.Row {
			r.BankAccount = BankAccount(r.Currency(), r.Priority(), r.Account())
			return r
		},
	}
	paymentDayStage = Stage{
		Name:     "payment_day",
		Needs:    []string{domain.ColMonedaPago},
		Provides: domain.ColDiaPago,
		apply: func(r domain.Row, _ Inputs) domain.Row {
			r.PaymentDay = PaymentDay(r.PaymentCurrency)
			return r
		},
	}
	finalAmountStage = Stage{
		Name:     "final_amount",
		Needs:    []string{domain.ColDiaPago},
		Provides: domain.ColMontoFinal,
		apply: func(r domain.Row, in Inputs) domain.Row {
			r.FinalAmount = FinalAmount(r.Amount(), r.Currency(), r.Priority(), r.PaymentDay, in.Rates)
			return r
		},
	}
	capexFinalStage = Stage{
		Name:     "capex_final",
		Needs:    []string{domain.ColMontoFinal},
		Provides: domain.ColCapexFinal,
		apply: func(r domain.Row, _ Inputs) domain.Row {
			r.CapexFinal = CapexFinal(r.CapexExt(), r.CapexOrd(), r.AdminCapex(), r.FinalAmount)
			return r
		},
	}
	opexFinalStage = Stage{
		Name:     "opex_final",
		Needs:    []string{domain.ColMontoFinal},
		Provides: domain.ColOpexFinal,
		apply: func(r domain.Row, _ Inputs) domain.Row {
			r.OpexFinal = OpexFinal(r.CapexExt(), r.CapexOrd(), r.AdminCapex(), r.FinalAmount)
			return r
		},
	}
	areaStage = Stage{
		Name:     "area",
		Provides: domain.ColArea,
		apply: func(r domain.Row, in Inputs) domain.Row {
			r.Area = Area(r.Provider(), r.Branch(), r.RequesterCode(), in.Areas)
			return r
		},
	}
	capexType2Stage = Stage{
		Name:     "capex_type_2",
		Needs:    []string{domain.ColArea, domain.ColCapexFinal, domain.ColOpexFinal},
		Provides: domain.ColTipoCapex2,
		apply: func(r domain.Row, _ Inputs) domain.Row {
			r.CapexType2 = CapexType2(r.Area, r.CapexFinal, r.OpexFinal)
			return r
		},
	}
	capexTypeStage = Stage{
		Name:     "capex_type",
		Needs:    []string{domain.ColArea, domain.ColTipoCapex2},
		Provides: domain.ColTipoCapex,
		apply: func(r domain.Row, _ Inputs) domain.Row {
			r.CapexType = CapexType(r.Area, r.CapexType2, r.CapexExt(), r.CapexOrd())
			return r
		},
	}
	capexOrd2Stage = Stage{
		Name:     "capex_ord_2",
		Needs:    []string{domain.ColTipoCapex, domain.ColCapexFinal},
		Provides: domain.ColCapexOrd2,
		apply: func(r domain.Row, _ Inputs) domain.Row {
			r.CapexOrd2 = CapexOrd2(r.CapexType, r.CapexFinal, r.CapexExt(), r.CapexOrd())
			return r
		},
	}
	capexExt3Stage = Stage{
		Name:     "capex_ext_3",
		Needs:    []string{domain.ColTipoCapex, domain.ColCapexFinal},
		Provides: domain.ColCapexExt3,
		apply: func(r domain.Row, _ Inputs) domain.Row {
			r.CapexExt3 = CapexExt3(r.CapexType, r.CapexFinal, r.CapexExt(), r.CapexOrd())
			return r
		},
	}
	capexOrdUSDStage = Stage{
		Name:     "capex_ord_usd",
		Needs:    []string{domain.ColCapexOrd2, domain.ColMonedaPago, domain.ColDiaPago},
		Provides: domain.ColCapexOrdUSD,
		apply: func(r domain.Row, in Inputs) domain.Row {
			r.CapexOrdUSD = CapexOrdUSD(r.CapexOrd2, r.PaymentCurrency, r.PaymentDay, in.Rates)
			return r
		},
	}
	capexExtUSDStage = Stage{
		Name:     "capex_ext_usd",
		Needs:    []string{domain.ColCapexExt3, domain.ColMonedaPago, domain.ColDiaPago},
		Provides: domain.ColCapexExtUSD,
		apply: func(r domain.Row, in Inputs) domain.Row {
			r.CapexExtUSD = CapexExtUSD(r.CapexExt3, r.PaymentCurrency, r.PaymentDay, in.Rates)
			return r
		},
	}
	capexUSDStage = Stage{
		Name:     "capex_usd",
		Needs:    []string{domain.ColCapexFinal, domain.ColMonedaPago, domain.ColDiaPago},
		Provides: domain.ColCapexUSD,
		apply: func(r domain.Row, in Inputs) domain.Row {
			r.CapexUSD = CapexUSD(r.CapexFinal, r.PaymentCurrency, r.PaymentDay, in.Rates)
			return r
		},
	}
	opexUSDStage = Stage{
		Name:     "opex_usd",
		Needs:    []string{domain.ColOpexFinal, domain.ColMonedaPago, domain.ColDiaPago},
		Provides: domain.ColOpexUSD,
		apply: func(r domain.Row, in Inputs) domain.Row {
			r.OpexUSD = OpexUSD(r.OpexFinal, r.PaymentCurrency, r.PaymentDay, in.Rates)
			return r
		},
	}
	totalUSDStage = Stage{
		Name:     "total_usd",
		Needs:    []string{domain.ColCapexUSD, domain.ColOpexUSD},
		Provides: domain.ColTotalUSD,
		apply: func(r domain.Row, _ Inputs) domain.Row {
			r.TotalUSD = r.CapexUSD + r.OpexUSD
			return r
		},
	}
)

// PaymentStages is the full derivation in dependency order.
func PaymentStages() []Stage {
	return []Stage{
		paymentCurrencyStage,
		bankAccountStage,
		paymentDayStage,
		finalAmountStage,
		capexFinalStage,
		opexFinalStage,
		areaStage,
		capexType2Stage,
		capexTypeStage,
		capexOrd2Stage,
		capexExt3Stage,
		capexOrdUSDStage,
		capexExtUSDStage,
		capexUSDStage,
		opexUSDStage,
		totalUSDStage,
	}
}
