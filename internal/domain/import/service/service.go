// Package service provides the import orchestration logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/transaction-importer/internal/domain/import/parser"
	"github.com/FACorreiaa/transaction-importer/internal/domain/import/repository"
	"github.com/FACorreiaa/transaction-importer/pkg/metrics"
	"github.com/FACorreiaa/transaction-importer/pkg/storage"
)

const (
	tracerName = "github.com/FACorreiaa/transaction-importer/internal/domain/import/service"

	// A lost category race rolls the attempt back; the retry sees the
	// winner's rows.
	maxPersistAttempts = 2
)

var (
	// ErrUnresolvedCategory means an accepted row has no category after
	// resolution. It indicates a bug, not bad input.
	ErrUnresolvedCategory = errors.New("category could not be resolved")
	// ErrSourceNotRemoved is returned with a valid result when the import
	// committed but the source file could not be deleted.
	ErrSourceNotRemoved = errors.New("import committed but source file was not removed")
)

// SimilarityHinter finds existing category titles that resemble new ones
type SimilarityHinter interface {
	SimilarTitles(created, existing []string) map[string][]string
}

// ImportOptions allows callers to override service defaults for one import.
type ImportOptions struct {
	Parser     *parser.Options // nil uses the service options
	KeepSource bool            // Leave the file in place after a successful import
}

// ImportResult contains the result of an import operation
type ImportResult struct {
	JobID             uuid.UUID
	FileName          string
	Transactions      []repository.Transaction // In input order
	RowsTotal         int
	RowsImported      int
	RowsSkipped       int
	CategoriesCreated int
	Hints             map[string][]string // New title -> similar existing titles
	Duration          time.Duration
}

// ImportService reads transaction files and persists their rows
type ImportService struct {
	repo       repository.ImportRepository
	files      storage.Storage
	logger     *slog.Logger
	metrics    *metrics.ImportMetrics // Optional: nil records nothing
	hinter     SimilarityHinter       // Optional: nil if hints are disabled
	tracer     trace.Tracer
	parserOpts parser.Options
}

// acceptedRow is a complete, validated row waiting for its category
type acceptedRow struct {
	line     int
	title    string
	txType   repository.TransactionType
	value    decimal.Decimal
	category string
}

// NewImportService creates a new import service
func NewImportService(repo repository.ImportRepository, files storage.Storage, logger *slog.Logger) *ImportService {
	return &ImportService{
		repo:       repo,
		files:      files,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		parserOpts: parser.DefaultOptions(),
	}
}

// WithMetrics records import metrics
func (s *ImportService) WithMetrics(m *metrics.ImportMetrics) *ImportService {
	s.metrics = m
	return s
}

// WithSimilarityHinter logs near-duplicate titles for new categories
func (s *ImportService) WithSimilarityHinter(h SimilarityHinter) *ImportService {
	s.hinter = h
	return s
}

// WithParserOptions sets the default file decoding options
func (s *ImportService) WithParserOptions(opts parser.Options) *ImportService {
	s.parserOpts = opts
	return s
}

// ForStorage returns a copy of the service reading files from files
func (s *ImportService) ForStorage(files storage.Storage) *ImportService {
	clone := *s
	clone.files = files
	return &clone
}

// Import reads the file at path, persists its transactions and deletes the
// file. The returned transactions follow input order.
func (s *ImportService) Import(ctx context.Context, path string) ([]repository.Transaction, error) {
	result, err := s.ImportWithOptions(ctx, path, ImportOptions{})
	if result == nil {
		return nil, err
	}
	return result.Transactions, err
}

// ImportWithOptions is Import with per-call options and the full result.
//
// Nothing is written when the file cannot be read or holds an invalid row.
// Categories and transactions are written in one store transaction, so a
// failed import leaves no partial data and the file stays for a retry.
func (s *ImportService) ImportWithOptions(ctx context.Context, path string, opts ImportOptions) (*ImportResult, error) {
	start := time.Now()

	ctx, span := s.tracer.Start(ctx, "ImportService.Import", trace.WithAttributes(
		attribute.String("import.file", path),
	))
	defer span.End()

	fail := func(err error) (*ImportResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveImport(string(repository.ImportJobStatusFailed), time.Since(start))
		s.logger.Error("import failed", "file", path, "error", err)
		return nil, err
	}

	parserOpts := s.parserOpts
	if opts.Parser != nil {
		parserOpts = *opts.Parser
	}

	rows, total, skipped, err := s.readRows(ctx, path, parserOpts)
	if err != nil {
		return fail(err)
	}
	s.logger.Debug("import file parsed",
		"file", path,
		"rows_total", total,
		"rows_accepted", len(rows),
		"rows_skipped", skipped,
	)

	job := &repository.ImportJob{
		FileName:    path,
		RowsTotal:   total,
		RowsSkipped: skipped,
	}
	if err := s.repo.CreateImportJob(ctx, job); err != nil {
		return fail(fmt.Errorf("failed to create import job: %w", err))
	}
	span.SetAttributes(attribute.String("import.job_id", job.ID.String()))

	transactions, created, err := s.persistWithRetry(ctx, job.ID, rows)
	if err != nil {
		s.finishJob(ctx, job, repository.ImportJobStatusFailed, 0, 0, err)
		return fail(fmt.Errorf("failed to persist transactions: %w", err))
	}
	s.finishJob(ctx, job, repository.ImportJobStatusSucceeded, len(transactions), len(created), nil)

	result := &ImportResult{
		JobID:             job.ID,
		FileName:          path,
		Transactions:      transactions,
		RowsTotal:         total,
		RowsImported:      len(transactions),
		RowsSkipped:       skipped,
		CategoriesCreated: len(created),
		Hints:             s.similarityHints(ctx, created),
	}

	s.metrics.ObserveRows(result.RowsImported, result.RowsSkipped)
	s.metrics.AddCategoriesCreated(result.CategoriesCreated)
	span.SetAttributes(
		attribute.Int("import.rows_imported", result.RowsImported),
		attribute.Int("import.rows_skipped", result.RowsSkipped),
		attribute.Int("import.categories_created", result.CategoriesCreated),
	)

	var removeErr error
	if !opts.KeepSource {
		if err := s.files.Remove(ctx, path); err != nil {
			removeErr = fmt.Errorf("%w: %s: %w", ErrSourceNotRemoved, path, err)
			s.logger.Warn("failed to remove imported file", "file", path, "error", err)
		}
	}

	result.Duration = time.Since(start)
	s.metrics.ObserveImport(string(repository.ImportJobStatusSucceeded), result.Duration)
	s.logger.Info("import finished",
		"file", path,
		"job_id", job.ID,
		"transactions", result.RowsImported,
		"rows_skipped", result.RowsSkipped,
		"categories_created", result.CategoriesCreated,
		"duration", result.Duration,
	)

	return result, removeErr
}

// readRows drains the file iterator. Incomplete rows are counted and dropped;
// any other problem aborts the import before anything is written.
func (s *ImportService) readRows(ctx context.Context, path string, opts parser.Options) ([]acceptedRow, int, int, error) {
	rc, err := s.files.Open(ctx, path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open import file: %w", err)
	}
	defer rc.Close()

	var (
		accepted []acceptedRow
		total    int
		skipped  int
	)
	for row, err := range parser.RowsForFile(path, rc, opts) {
		if err != nil {
			return nil, 0, 0, fmt.Errorf("failed to read import file: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, 0, 0, err
		}

		total++
		if !row.Complete() {
			skipped++
			s.logger.Debug("skipping incomplete row", "file", path, "line", row.Line)
			continue
		}

		txType, value, err := row.Validate()
		if err != nil {
			return nil, 0, 0, fmt.Errorf("invalid row in import file: %w", err)
		}

		accepted = append(accepted, acceptedRow{
			line:     row.Line,
			title:    row.Title,
			txType:   txType,
			value:    value,
			category: row.Category,
		})
	}

	return accepted, total, skipped, nil
}

func (s *ImportService) persistWithRetry(ctx context.Context, jobID uuid.UUID, rows []acceptedRow) ([]repository.Transaction, []repository.Category, error) {
	var err error
	for attempt := 1; attempt <= maxPersistAttempts; attempt++ {
		var (
			transactions []repository.Transaction
			created      []repository.Category
		)
		err = s.repo.InTx(ctx, func(tx repository.ImportRepository) error {
			var txErr error
			transactions, created, txErr = s.persist(ctx, tx, jobID, rows)
			return txErr
		})
		if err == nil {
			return transactions, created, nil
		}
		if !errors.Is(err, repository.ErrDuplicateTitle) && !errors.Is(err, repository.ErrConflict) {
			break
		}
		s.logger.Warn("import raced a concurrent writer, retrying",
			"job_id", jobID,
			"attempt", attempt,
			"error", err,
		)
	}
	return nil, nil, err
}

// persist resolves categories and writes transactions using tx
func (s *ImportService) persist(ctx context.Context, tx repository.ImportRepository, jobID uuid.UUID, rows []acceptedRow) ([]repository.Transaction, []repository.Category, error) {
	if len(rows) == 0 {
		return nil, nil, nil
	}

	titles := uniqueTitles(rows)
	existing, err := tx.FindCategoriesByTitle(ctx, titles)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find categories: %w", err)
	}

	lookup := make(map[string]repository.Category, len(titles))
	for _, c := range existing {
		lookup[c.Title] = c
	}

	var missing []string
	for _, title := range titles {
		if _, ok := lookup[title]; !ok {
			missing = append(missing, title)
		}
	}

	var created []repository.Category
	if len(missing) > 0 {
		created, err = tx.CreateCategories(ctx, missing)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create categories: %w", err)
		}
		for _, c := range created {
			lookup[c.Title] = c
		}
	}

	drafts := make([]repository.TransactionDraft, len(rows))
	for i, row := range rows {
		category, ok := lookup[row.category]
		if !ok {
			return nil, nil, fmt.Errorf("line %d, category %q: %w", row.line, row.category, ErrUnresolvedCategory)
		}
		drafts[i] = repository.TransactionDraft{
			Title:       row.title,
			Type:        row.txType,
			Value:       row.value,
			CategoryID:  category.ID,
			ImportJobID: &jobID,
		}
	}

	transactions, err := tx.CreateTransactions(ctx, drafts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create transactions: %w", err)
	}
	if len(transactions) != len(rows) {
		return nil, nil, fmt.Errorf("store returned %d transactions for %d rows", len(transactions), len(rows))
	}

	for i := range transactions {
		category := lookup[rows[i].category]
		transactions[i].Category = &category
	}

	return transactions, created, nil
}

func (s *ImportService) finishJob(ctx context.Context, job *repository.ImportJob, status repository.ImportJobStatus, imported, created int, cause error) {
	job.Status = status
	job.RowsImported = imported
	job.CategoriesCreated = created
	if cause != nil {
		msg := cause.Error()
		job.Error = &msg
	}

	if err := s.repo.FinishImportJob(ctx, job); err != nil {
		s.logger.Warn("failed to finish import job", "job_id", job.ID, "error", err)
	}
}

// similarityHints is best effort; a failed lookup only loses the hints
func (s *ImportService) similarityHints(ctx context.Context, created []repository.Category) map[string][]string {
	if s.hinter == nil || len(created) == 0 {
		return nil
	}

	all, err := s.repo.ListCategories(ctx)
	if err != nil {
		s.logger.Warn("failed to load categories for similarity hints", "error", err)
		return nil
	}

	createdTitles := make([]string, len(created))
	for i, c := range created {
		createdTitles[i] = c.Title
	}
	existingTitles := make([]string, len(all))
	for i, c := range all {
		existingTitles[i] = c.Title
	}

	hints := s.hinter.SimilarTitles(createdTitles, existingTitles)
	for title, similar := range hints {
		s.logger.Info("new category resembles existing ones", "category", title, "similar", similar)
	}
	return hints
}

// uniqueTitles returns each category title once, in first-seen order.
// Matching is exact and case-sensitive.
func uniqueTitles(rows []acceptedRow) []string {
	seen := make(map[string]struct{}, len(rows))
	titles := make([]string, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.category]; ok {
			continue
		}
		seen[row.category] = struct{}{}
		titles = append(titles, row.category)
	}
	return titles
}
