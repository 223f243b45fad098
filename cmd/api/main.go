package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/prioridades-pago/internal/api/handlers"
	"github.com/dvloznov/prioridades-pago/internal/api/middleware"
	"github.com/dvloznov/prioridades-pago/internal/app"
	"github.com/dvloznov/prioridades-pago/internal/config"
	"github.com/dvloznov/prioridades-pago/internal/logger"
	"github.com/dvloznov/prioridades-pago/internal/metrics"
)

func main() {
	// Parse command-line flags
	var (
		envFile = flag.String("env", ".env", "Optional .env file to load before reading the environment")
		port    = flag.String("port", "", "HTTP server port (overrides PORT)")
	)
	flag.Parse()

	boot := logger.New()
	if err := config.LoadEnv(*envFile); err != nil {
		boot.Fatal().Err(err).Msg("Failed to load env file")
	}
	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *port != "" {
		cfg.Port = *port
	}

	// Initialize logger
	log := logger.Configure(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	m := metrics.New(nil)

	a, err := app.New(ctx, cfg, log, app.Options{Metrics: m})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize service")
	}
	defer a.Close()

	// Nil pointers must stay nil interfaces so they report not_configured.
	var (
		storage   handlers.StoragePinger
		warehouse handlers.WarehousePinger
	)
	if a.Storage != nil {
		storage = a.Storage
	}
	if a.Warehouse != nil {
		warehouse = a.Warehouse
	}

	info := handlers.ServiceInfo{
		Service:   "prioridades-pago",
		ProjectID: cfg.ProjectID,
		Bucket:    cfg.GCS.Bucket,
		Template:  a.Service.TemplatePath(),
		AreasID:   cfg.Areas.SheetID,
		RedisURL:  cfg.Rates.RedisURL,
	}
	if a.Warehouse != nil {
		info.Dataset = cfg.BigQuery.Dataset
		info.Table = cfg.BigQuery.Table
	}

	// Initialize handlers
	processHandler := handlers.NewProcessHandler(a.Service, cfg.GCS.Bucket, cfg.MaxUploadBytes(), log)
	healthHandler := handlers.NewHealthHandler(info, storage, warehouse, log)

	mux := handlers.NewRouter(processHandler, healthHandler, m.Handler())

	// Apply middleware
	handler := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
	)

	// Uploads and rate lookups take longer than the default timeouts allow.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("project_id", cfg.ProjectID).
			Str("bucket", cfg.GCS.Bucket).
			Str("template", a.Service.TemplatePath()).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
