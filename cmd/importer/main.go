// Command importer loads CSV and XLSX transaction files into Postgres.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/transaction-importer/pkg/config"
	"github.com/FACorreiaa/transaction-importer/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// app carries what every command needs once flags are parsed
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "importer",
		Short: "Import transaction files and report on them",
		Long: `importer reads title,type,value,category files, stores every complete row
as a transaction and creates the categories it references. A file is deleted
once its transactions are committed.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}

	root.AddCommand(
		newImportCmd(a),
		newWatchCmd(a),
		newExportCmd(a),
		newBalanceCmd(a),
		newCategoriesCmd(a),
		newMigrateCmd(a),
	)
	return root
}

func (a *app) load(logOutput io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Logging.Format, cfg.Logging.Level, logOutput)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	a.cfg = cfg
	a.logger = log
	return nil
}

// withDependencies runs fn with database backed dependencies and releases
// them afterwards
func (a *app) withDependencies(fn func(deps *Dependencies) error) error {
	deps, err := InitDependencies(a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	return fn(deps)
}
