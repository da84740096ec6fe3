package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budget/internal/backend"
	"budget/internal/cache"
	"budget/internal/cli"
	"budget/internal/core"
	apphttp "budget/internal/http"
	applog "budget/internal/log"
	"budget/internal/services"
)

const (
	shutdownTimeout   = 30 * time.Second
	cacheCleanupEvery = time.Minute
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile(slog.Default())
	cfg := cli.LoadAndValidateConfig(slog.Default())

	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentApp)
	logger.Info("Starting budget", "backend", cfg.DataBackend, "port", cfg.Port)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).
		CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	cacheManager := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	opts := []services.Option{services.WithDefaultCurrency(core.Currency(cfg.DefaultCurrency))}
	if cfg.ViewCacheSize > 0 {
		views := cache.NewLRUCache[core.MonthView](cfg.ViewCacheSize, cfg.ViewCacheTTL)
		cacheManager.Register(views)
		opts = append(opts, services.WithViewCache(views))
	}

	ledger := services.NewLedgerService(result.Repository, result.Notifier, opts...)
	if err := ledger.Load(context.Background()); err != nil {
		logger.Error("Failed to load ledger", "error", err)
		if cerr := result.Close(); cerr != nil {
			logger.Error("Backend cleanup failed", "error", cerr)
		}
		os.Exit(1)
	}

	serverOpts := []apphttp.ServerOption{apphttp.WithLogger(logger.WithComponent(applog.ComponentHTTP))}
	if result.Readiness != nil {
		serverOpts = append(serverOpts, apphttp.WithReadiness(result.Readiness))
	}
	srv := apphttp.NewServer(":"+cfg.Port, ledger, serverOpts...)

	base, stop := context.WithCancel(context.Background())
	defer stop()
	ctx, done := cli.GracefulShutdown(base, logger.Logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return ledger.Run(gctx, cfg.DueCheckInterval)
	})
	g.Go(func() error {
		cacheManager.Run(gctx, cacheCleanupEvery)
		return nil
	})

	exitCode := 0
	if err := g.Wait(); err != nil {
		logger.Error("Service failed", "error", err)
		exitCode = 1
	}
	// Runs the shutdown path when a goroutine failed rather than a signal.
	stop()
	<-done

	if err := ledger.Close(); err != nil {
		logger.Error("Ledger close failed", "error", err)
	}
	if err := result.Close(); err != nil {
		logger.Error("Backend cleanup failed", "error", err)
		exitCode = 1
	}
	logger.Info("Server stopped gracefully")
	os.Exit(exitCode)
}
