package domain

import (
	"strings"
	"time"
)

// Pair identifies an exchange rate.
type Pair string

const (
	PairVESUSD Pair = "VES/USD"
	PairEURUSD Pair = "EUR/USD"
	PairCOPUSD Pair = "COP/USD"
)

// Pairs lists every rate a batch needs.
var Pairs = []Pair{PairVESUSD, PairEURUSD, PairCOPUSD}

// Documented fallback rates.
const (
	DefaultVESUSD = 36.50
	DefaultEURUSD = 1.10
	DefaultCOPUSD = 0.00024
)

// DefaultSource is reported for a rate that fell back to its default.
const DefaultSource = "Por defecto"

// DefaultRate returns the fallback for pair.
func DefaultRate(pair Pair) float64 {
	switch pair {
	case PairVESUSD:
		return DefaultVESUSD
	case PairEURUSD:
		return DefaultEURUSD
	case PairCOPUSD:
		return DefaultCOPUSD
	}
	return 0
}

// RateQuote is the answer of a rate source for one pair.
type RateQuote struct {
	Pair      Pair      `json:"pair"`
	Success   bool      `json:"success"`
	Rate      float64   `json:"rate"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// RateSnapshot is the set of rates fixed for one batch.
type RateSnapshot struct {
	VESUSD       float64            `json:"tasa_ves_usd"`
	VESUSDMargin float64            `json:"tasa_ves_usd_mas_5"`
	EURUSD       float64            `json:"tasa_eur_usd"`
	COPUSD       float64            `json:"tasa_cop_usd"`
	Margin       float64            `json:"margen_jueves"`
	Quotes       map[Pair]RateQuote `json:"-"`
}

// DefaultRateSnapshot is used when every rate source failed.
func DefaultRateSnapshot() RateSnapshot {
	return NewRateSnapshot(nil)
}

// NewRateSnapshot builds a snapshot from quotes, substituting the documented
// default for any missing or failed pair.
func NewRateSnapshot(quotes map[Pair]RateQuote) RateSnapshot {
	s := RateSnapshot{Margin: ThursdayMargin, Quotes: make(map[Pair]RateQuote, len(Pairs))}
	for _, p := range Pairs {
		q, ok := quotes[p]
		if !ok || !q.Success || q.Rate <= 0 {
			q = RateQuote{Pair: p, Success: false, Rate: DefaultRate(p), Source: DefaultSource, FetchedAt: q.FetchedAt}
		}
		s.Quotes[p] = q
	}
	s.VESUSD = s.Quotes[PairVESUSD].Rate
	s.VESUSDMargin = s.VESUSD + s.Margin
	s.EURUSD = s.Quotes[PairEURUSD].Rate
	s.COPUSD = s.Quotes[PairCOPUSD].Rate
	return s
}

// Source returns the display source for pair.
func (s RateSnapshot) Source(pair Pair) string {
	q, ok := s.Quotes[pair]
	if !ok || !q.Success {
		return DefaultSource
	}
	return q.Source
}

// FellBack reports whether pair uses its default.
func (s RateSnapshot) FellBack(pair Pair) bool {
	q, ok := s.Quotes[pair]
	return !ok || !q.Success
}

// AreaTable maps requester codes to business areas.
type AreaTable struct {
	Header []string
	Rows   [][]string
	index  map[string]string
}

// NewAreaTable indexes rows by their first column; the second column is the
// area. Rows without a code are kept for display but not indexed.
func NewAreaTable(header []string, rows [][]string) AreaTable {
	t := AreaTable{Header: header, Rows: rows, index: make(map[string]string, len(rows))}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		code := NormalizeCode(row[0])
		if code == "" {
			continue
		}
		area := ""
		if len(row) > 1 {
			area = strings.TrimSpace(row[1])
		}
		if area == "" {
			area = AreaServices
		}
		t.index[code] = area
	}
	return t
}

// Lookup returns the area for code.
func (t AreaTable) Lookup(code string) (string, bool) {
	if t.index == nil {
		return "", false
	}
	area, ok := t.index[NormalizeCode(code)]
	return area, ok
}

// Len is the number of indexed codes.
func (t AreaTable) Len() int { return len(t.index) }

// Batch is one processing run. It is not modified after derivation.
type Batch struct {
	RunID     string
	Rows      []Row
	Rates     RateSnapshot
	Areas     AreaTable
	Columns   []string
	CreatedAt time.Time
}

// OutputColumns returns the output columns present in the batch, in output
// order.
func (b *Batch) OutputColumns() []string {
	present := make(map[string]struct{}, len(b.Columns))
	for _, c := range b.Columns {
		present[Rename(c)] = struct{}{}
	}
	for _, c := range CalculatedColumns {
		present[c] = struct{}{}
	}
	out := make([]string, 0, len(OutputColumns))
	for _, c := range OutputColumns {
		if _, ok := present[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
