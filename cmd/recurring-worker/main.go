// Command recurring-worker watches the ledger without serving the API. It
// reloads the templates from the shared backend on every check and publishes
// a due notice whenever a new pending occurrence is surfaced.
package main

import (
	"context"
	"os"
	"time"

	"budget/internal/backend"
	"budget/internal/cli"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/services"
)

func main() {
	boot := applog.New(applog.DefaultConfig()).Logger
	cli.LoadEnvFile(boot)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, "recurring-worker")

	if cfg.DataBackend == string(backend.MemoryBackend) && cfg.DataFile == "" {
		logger.Error("The worker needs a shared backend: set DATA_FILE, or use sqlite or sheets")
		os.Exit(1)
	}

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

	ledger := services.NewLedgerService(result.Repository, result.Notifier,
		services.WithDefaultCurrency(core.Currency(cfg.DefaultCurrency)))

	ctx, done := cli.GracefulShutdown(context.Background(), logger.Logger, 30*time.Second, nil)

	logger.Info("Starting recurring-worker",
		"backend", cfg.DataBackend,
		"interval", cfg.DueCheckInterval)
	run(ctx, logger, ledger, cfg.DueCheckInterval)

	<-done
	if err := ledger.Close(); err != nil {
		logger.Error("Ledger close failed", "error", err)
	}
	if err := result.Close(); err != nil {
		logger.Error("Backend cleanup failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

// run checks once at startup and then every interval until ctx is done.
// A failed reload keeps the previous snapshot.
func run(ctx context.Context, logger *applog.Logger, ledger *services.LedgerService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := ledger.Load(ctx); err != nil {
			logger.Error("Reload failed", "error", err)
		}
		ledger.Refresh(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
