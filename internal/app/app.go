// Package app wires the configured collaborators into a pipeline.Service.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/prioridades-pago/internal/areas"
	"github.com/dvloznov/prioridades-pago/internal/config"
	"github.com/dvloznov/prioridades-pago/internal/domain"
	"github.com/dvloznov/prioridades-pago/internal/gcsuploader"
	infra "github.com/dvloznov/prioridades-pago/internal/infra/bigquery"
	"github.com/dvloznov/prioridades-pago/internal/metrics"
	"github.com/dvloznov/prioridades-pago/internal/pipeline"
	"github.com/dvloznov/prioridades-pago/internal/rates"
)

// App holds the service and the clients behind it. Optional clients are nil
// when their settings are absent.
type App struct {
	Config    *config.Config
	Service   *pipeline.Service
	Metrics   *metrics.Metrics
	Storage   *gcsuploader.GCSStorageService
	Warehouse *infra.BigQueryPaymentPriorityRepository
	Rates     rates.Provider
	Areas     areas.Loader

	closers []func() error
}

// Options selects which optional clients New may connect.
type Options struct {
	// Offline skips GCS and BigQuery even when configured.
	Offline bool
	// Metrics receives the service's counters; nil disables them.
	Metrics *metrics.Metrics
}

// New connects every configured client and builds the service. A client
// that is configured but fails to connect is an error, except the rate
// cache, which is skipped with a warning.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Metrics: opts.Metrics}

	svcOpts := pipeline.Options{
		Metrics:      opts.Metrics,
		Location:     cfg.Location(),
		TemplatePath: cfg.GCS.TemplatePath,
		RateTimeout:  cfg.Rates.Timeout,
	}

	if cfg.HasGCS() && !opts.Offline {
		st, err := gcsuploader.NewGCSStorageService(ctx, cfg.GCS.Bucket)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("New: connect storage: %w", err)
		}
		a.Storage = st
		a.closers = append(a.closers, st.Close)
		svcOpts.Storage = st
	} else {
		log.Warn().Msg("No GCS bucket configured - artifacts will not be stored")
	}

	if cfg.HasBigQuery() && !opts.Offline {
		repo, err := infra.NewBigQueryPaymentPriorityRepository(ctx, cfg.ProjectID, cfg.BigQuery.Dataset, cfg.BigQuery.Table)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("New: connect bigquery: %w", err)
		}
		a.Warehouse = repo
		a.closers = append(a.closers, repo.Close)
		svcOpts.Warehouse = repo
	} else {
		log.Warn().Msg("No GCP project configured - warehouse load disabled")
	}

	if cfg.HasAreas() {
		loader, err := areas.NewSheetsLoader(ctx, cfg.Areas.SheetID, cfg.Areas.SheetName)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("New: connect sheets: %w", err)
		}
		a.Areas = loader
		svcOpts.Areas = loader
	} else {
		log.Warn().Msg("No area sheet configured - area codes will not be resolved")
	}

	a.Rates = a.newRateProvider(ctx, log)
	svcOpts.Rates = a.Rates

	a.Service = pipeline.NewService(svcOpts)
	return a, nil
}

func (a *App) newRateProvider(ctx context.Context, log zerolog.Logger) rates.Provider {
	cfg := a.Config
	var p rates.Provider = rates.NewHTTPProvider(&http.Client{Timeout: cfg.Rates.Timeout}, map[domain.Pair]rates.Source{
		domain.PairVESUSD: {URL: cfg.Rates.VESURL},
		domain.PairEURUSD: {URL: cfg.Rates.EURURL},
		domain.PairCOPUSD: {URL: cfg.Rates.COPURL},
	})
	if !cfg.HasRedis() {
		return p
	}

	client, err := rates.ConnectRedis(ctx, cfg.Rates.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("Rate cache unavailable - rates will be fetched on every batch")
		return p
	}
	a.closers = append(a.closers, client.Close)
	log.Info().Dur("ttl", cfg.Rates.CacheTTL).Msg("Rate cache enabled")
	return rates.NewCachedProvider(p, rates.NewRedisStore(client), cfg.Rates.CacheTTL)
}

// Close releases every connected client.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}
