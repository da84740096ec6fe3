package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"budget/internal/backend"
	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/services"
)

var (
	backendFlag  string
	dataFileFlag string
	dbPathFlag   string
	verbose      bool

	cfg    *config.Config
	logger *applog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "budgetctl",
	Short: "Review and settle recurring transactions",
	Long: `budgetctl works directly on the configured ledger backend. It shows
month views, manages transaction templates and records confirm or skip
decisions for pending occurrences.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Data backend (memory, sqlite, sheets); overrides DATA_BACKEND")
	rootCmd.PersistentFlags().StringVar(&dataFileFlag, "data-file", "", "Ledger file for the memory backend; overrides DATA_FILE")
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "SQLite database path; overrides SQLITE_DB_PATH")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	rootCmd.AddCommand(
		newMonthCmd(),
		newTemplatesCmd(),
		newAddCmd(),
		newEditCmd(),
		newDecisionCmd(core.Confirm),
		newDecisionCmd(core.Skip),
		newDueCmd(),
		newCurrencyCmd(),
		newNoticesCmd(),
	)
}

func setup(cmd *cobra.Command, args []string) error {
	cli.LoadEnvFile(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg = config.Load()
	if backendFlag != "" {
		cfg.DataBackend = backendFlag
	}
	if dataFileFlag != "" {
		cfg.DataFile = dataFileFlag
	}
	if dbPathFlag != "" {
		cfg.SQLiteDBPath = dbPathFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	// Logs go to stderr so command output stays clean.
	logger = applog.New(applog.Config{Level: level, Component: applog.ComponentCLI, Output: os.Stderr})
	applog.SetDefault(logger)
	return nil
}

// openLedger loads the ledger from the configured backend. Due notices are
// only logged: the CLI never publishes to the broker.
func openLedger(ctx context.Context) (*services.LedgerService, func(), error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	backendCfg.AMQPURL = ""

	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, nil, err
	}

	ledger := services.NewLedgerService(result.Repository, services.LogNotifier{},
		services.WithDefaultCurrency(core.Currency(cfg.DefaultCurrency)))
	closeAll := func() {
		if err := ledger.Close(); err != nil {
			logger.Warn("Ledger close failed", "error", err)
		}
		if err := result.Close(); err != nil {
			logger.Warn("Backend cleanup failed", "error", err)
		}
	}
	if err := ledger.Load(ctx); err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("load ledger: %w", err)
	}
	return ledger, closeAll, nil
}
