// Package rates fetches the exchange rates a batch is computed with.
package rates

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/prioridades-pago/internal/domain"
	"github.com/dvloznov/prioridades-pago/internal/logger"
)

// DefaultTimeout bounds each rate lookup.
const DefaultTimeout = 10 * time.Second

// Provider returns a quote for a pair. Failures are reported through
// RateQuote.Success, never as an error.
type Provider interface {
	Quote(ctx context.Context, pair domain.Pair) domain.RateQuote
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, pair domain.Pair) domain.RateQuote

func (f ProviderFunc) Quote(ctx context.Context, pair domain.Pair) domain.RateQuote {
	return f(ctx, pair)
}

// Snapshot fetches every pair concurrently, each under its own timeout, and
// fixes the result for one batch. Pairs that fail or time out use their
// default rate.
func Snapshot(ctx context.Context, p Provider, timeout time.Duration) domain.RateSnapshot {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := logger.FromContext(ctx)

	quotes := make([]domain.RateQuote, len(domain.Pairs))
	var g errgroup.Group
	for i, pair := range domain.Pairs {
		g.Go(func() error {
			qctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			q := quoteWithDeadline(qctx, p, pair)
			q.Pair = pair
			quotes[i] = q
			return nil
		})
	}
	_ = g.Wait()

	byPair := make(map[domain.Pair]domain.RateQuote, len(quotes))
	for _, q := range quotes {
		byPair[q.Pair] = q
	}
	snap := domain.NewRateSnapshot(byPair)

	for _, pair := range domain.Pairs {
		if snap.FellBack(pair) {
			log.Warn().
				Str("pair", string(pair)).
				Float64("default", snap.Quotes[pair].Rate).
				Msg("Rate lookup failed, using default rate")
			continue
		}
		log.Info().
			Str("pair", string(pair)).
			Float64("rate", snap.Quotes[pair].Rate).
			Str("source", snap.Quotes[pair].Source).
			Msg("Rate fetched")
	}
	return snap
}

// quoteWithDeadline treats a provider that ignores ctx as failed once the
// deadline passes.
func quoteWithDeadline(ctx context.Context, p Provider, pair domain.Pair) domain.RateQuote {
	done := make(chan domain.RateQuote, 1)
	go func() { done <- p.Quote(ctx, pair) }()

	select {
	case q := <-done:
		return q
	case <-ctx.Done():
		return domain.RateQuote{Pair: pair, Source: "timeout", FetchedAt: time.Now()}
	}
}
