package main

import (
	"context"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tidy/internal/config"
	"github.com/JonMunkholm/tidy/internal/history"
	"github.com/JonMunkholm/tidy/internal/logging"
)

// app carries state shared by subcommands after the root pre-run.
type app struct {
	envFile   string
	logLevel  string
	logFormat string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tidy",
		Short: "Batch log-error extraction and CSV normalization",
		Long: `tidy is a small batch data-hygiene tool.

Commands:
  errors   - collect lines containing an error marker from a log directory
  csv      - clean a delimited customer export into a typed CSV
  serve    - expose CSV normalization over HTTP
  history  - list recorded runs

Settings come from the environment (and a .env file); flags override them.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format override (text, json)")

	root.AddCommand(
		newErrorsCmd(a),
		newCSVCmd(a),
		newServeCmd(a),
		newHistoryCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads the dotenv file and configuration and configures logging.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	// Overload lets the .env file win over the inherited environment.
	if a.envFile != "" {
		if err := godotenv.Overload(a.envFile); err != nil {
			slog.Debug("no .env file loaded", "path", a.envFile, "error", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	a.cfg = cfg
	return nil
}

// openHistory opens the run ledger, or returns nil when none is configured.
func (a *app) openHistory(ctx context.Context) (*history.Store, error) {
	if a.cfg.History.DB == "" {
		return nil, nil
	}
	return history.Open(ctx, a.cfg.History.DB)
}

// record stores run in the ledger when one is configured. Failures are
// logged and never fail the command.
func (a *app) record(ctx context.Context, run history.Run) {
	store, err := a.openHistory(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn("failed to open run history", "error", err)
		return
	}
	if store == nil {
		return
	}
	defer store.Close()

	if _, err := store.Record(ctx, run); err != nil {
		logging.FromContext(ctx).Warn("failed to record run", "error", err)
	}
}
