package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finboard/internal/cache"
	"finboard/internal/cli"
	apphttp "finboard/internal/http"
	"finboard/internal/log"
	"finboard/internal/services"
	"finboard/internal/worker"
)

func main() {
	cfg, logger := cli.Setup(log.ComponentApp, os.Stdout)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	res := cli.OpenBackend(ctx, logger, cfg)
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	snapshots := cache.NewLRUCache[services.Reconciliation](cfg.CacheSize, cfg.CacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(snapshots)
	cacheManager.StartCleanup(cfg.CacheCleanupInterval)
	defer cacheManager.Stop()

	opts := services.LedgerOptions{
		Cache: snapshots,
		Engine: services.MetricsEngine{
			OtherCategory:       cfg.OtherCategoryLabel,
			UnknownCollaborator: cfg.UnknownCollaboratorLabel,
		},
		Location:  cfg.Location(),
		MaxMonths: cfg.MaxMetricsMonths,
		Logger:    logger,
	}
	if res.Events != nil {
		opts.Events = res.Events
	}
	ledger := services.NewLedgerService(res.Store, opts)

	// Other instances publish their changes; drop our snapshots when they do.
	if res.Events != nil {
		invalidator := worker.NewInvalidator(ledger, ledger.Origin(), logger)
		go func() {
			if err := invalidator.Run(ctx, res.Events); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Change consumption stopped", log.FieldError, err)
			}
		}()
	}

	srv := apphttp.NewServer(ledger, apphttp.Options{
		Addr:               ":" + cfg.Port,
		RequestTimeout:     cfg.RequestTimeout,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              res.Ready,
		Logger:             logger,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.RequestTimeout + 3*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting finboard server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", res.Events != nil,
		"origin", ledger.Origin())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		stop()
		<-stopped
		os.Exit(1)
	}

	<-stopped
	logger.Info("Server stopped gracefully")
}
