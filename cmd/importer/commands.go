package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/transaction-importer/internal/domain/categorization"
	"github.com/FACorreiaa/transaction-importer/internal/domain/export"
	"github.com/FACorreiaa/transaction-importer/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/transaction-importer/internal/domain/import/service"
	"github.com/FACorreiaa/transaction-importer/internal/domain/import/sniffer"
	"github.com/FACorreiaa/transaction-importer/pkg/config"
	"github.com/FACorreiaa/transaction-importer/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

type importFlags struct {
	keep        bool
	dryRun      bool
	detect      bool
	delimiter   string
	headerLines int
}

func newImportCmd(a *app) *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Import transaction files, deleting each one once it is stored",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.parserOptions(cmd, a.cfg)
			if err != nil {
				return err
			}

			initDeps := InitDependencies
			if flags.dryRun {
				initDeps = InitDryRunDependencies
			}
			deps, err := initDeps(a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer deps.Cleanup()

			var failed int
			for _, path := range args {
				fileOpts := opts
				if flags.detect && !parser.IsExcel(path) {
					fileOpts = a.detectLayout(path, opts)
				}

				result, err := deps.ImportService.ImportWithOptions(cmd.Context(), path, importservice.ImportOptions{
					Parser:     &fileOpts,
					KeepSource: flags.keep || flags.dryRun,
				})
				if result != nil {
					writeImportResult(cmd.OutOrStdout(), result, a.cfg.Currency.Code)
				}
				if err != nil {
					// Already logged by the service
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d files failed to import", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.keep, "keep", false, "Keep source files after a successful import")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Parse and validate files without touching the database")
	cmd.Flags().BoolVar(&flags.detect, "detect", false, "Detect delimiter and header lines from each file")
	cmd.Flags().StringVarP(&flags.delimiter, "delimiter", "d", "", `Field delimiter, \t for tab (default from IMPORT_DELIMITER)`)
	cmd.Flags().IntVar(&flags.headerLines, "header-lines", 0, "Leading lines to skip (default from IMPORT_HEADER_LINES)")
	return cmd
}

// parserOptions starts from the configured options and applies any flags the
// user set explicitly
func (f importFlags) parserOptions(cmd *cobra.Command, cfg *config.Config) (parser.Options, error) {
	opts := parser.Options{
		Delimiter:   cfg.Import.Delimiter,
		HeaderLines: cfg.Import.HeaderLines,
	}

	if cmd.Flags().Changed("delimiter") {
		d, err := config.ParseDelimiter(f.delimiter)
		if err != nil {
			return opts, fmt.Errorf("--delimiter: %w", err)
		}
		opts.Delimiter = d
	}
	if cmd.Flags().Changed("header-lines") {
		if f.headerLines < 0 {
			return opts, errors.New("--header-lines must not be negative")
		}
		opts.HeaderLines = f.headerLines
	}
	return opts, nil
}

// detectLayout sniffs the delimiter and header of a file, falling back to
// fallback when the file cannot be read or has no recognizable rows
func (a *app) detectLayout(path string, fallback parser.Options) parser.Options {
	f, err := os.Open(path)
	if err != nil {
		// The import itself reports the open failure
		return fallback
	}
	defer f.Close()

	layout, err := sniffer.DetectReader(f)
	if err != nil {
		a.logger.Warn("layout detection failed, using configured options",
			slog.String("file", path), slog.Any("error", err))
		return fallback
	}

	a.logger.Debug("layout detected",
		slog.String("file", path),
		slog.String("delimiter", string(layout.Delimiter)),
		slog.Int("skip_lines", layout.SkipLines),
		slog.Bool("header", layout.HasHeader),
	)
	return layout.ParserOptions()
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Import files dropped into the inbox on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			return a.withDependencies(func(deps *Dependencies) error {
				if err := deps.initInbox(ctx); err != nil {
					return err
				}
				if err := deps.Scheduler.Start(); err != nil {
					return fmt.Errorf("failed to start scheduler: %w", err)
				}
				deps.Scheduler.RunNow()

				var server *http.Server
				if a.cfg.Observability.MetricsEnabled {
					server = newMetricsServer(a.cfg.Observability.MetricsPort, deps)
					go func() {
						a.logger.Info("serving metrics", slog.String("addr", server.Addr))
						if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
							a.logger.Error("metrics server stopped", slog.Any("error", err))
						}
					}()
				}

				<-ctx.Done()
				a.logger.Info("shutting down")

				if server != nil {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()
					if err := server.Shutdown(shutdownCtx); err != nil {
						a.logger.Warn("metrics server shutdown", slog.Any("error", err))
					}
				}
				return nil
			})
		},
	}
}

func newMetricsServer(port int, deps *Dependencies) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(deps.Registry))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func newExportCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored transactions as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDependencies(func(deps *Dependencies) error {
				transactions, err := deps.ImportRepo.ListTransactions(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list transactions: %w", err)
				}

				w := cmd.OutOrStdout()
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return fmt.Errorf("failed to create %s: %w", out, err)
					}
					defer f.Close()
					w = f
				}

				if err := export.WriteCSV(w, transactions, export.Options{Delimiter: a.cfg.Import.Delimiter}); err != nil {
					return err
				}
				a.logger.Info("export completed", slog.Int("transactions", len(transactions)))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func newBalanceCmd(a *app) *cobra.Command {
	var byCategory bool

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Print income, outcome and total of stored transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDependencies(func(deps *Dependencies) error {
				b, err := deps.BalanceService.GetBalance(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to compute balance: %w", err)
				}

				if !byCategory {
					writeBalance(cmd.OutOrStdout(), *b, a.cfg.Currency.Code)
					return nil
				}

				categories, err := deps.BalanceService.GetCategoryBalances(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to compute category balances: %w", err)
				}
				return writeCategoryBalances(cmd.OutOrStdout(), *b, categories, a.cfg.Currency.Code)
			})
		},
	}

	cmd.Flags().BoolVar(&byCategory, "by-category", false, "Break the balance down per category")
	return cmd
}

func newCategoriesCmd(a *app) *cobra.Command {
	var similar bool

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDependencies(func(deps *Dependencies) error {
				categories, err := deps.ImportRepo.ListCategories(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list categories: %w", err)
				}

				titles := make([]string, len(categories))
				for i, c := range categories {
					titles[i] = c.Title
				}

				var hints map[string][]string
				if similar {
					hints = categorization.SimilarTitles(titles, titles)
				}
				writeCategories(cmd.OutOrStdout(), titles, hints)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&similar, "similar", false, "Show titles that look like near duplicates")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			// Migrations run while dependencies are initialized
			return a.withDependencies(func(*Dependencies) error {
				a.logger.Info("migrations applied")
				return nil
			})
		},
	}
}
