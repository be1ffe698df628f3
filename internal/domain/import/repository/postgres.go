package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// DBTX is the subset of pgx shared by *pgxpool.Pool, pgx.Tx and pgxmock pools
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

var transactionColumns = []string{
	"id", "title", "type", "value", "category_id", "import_job_id", "created_at", "updated_at",
}

// PostgresImportRepository implements ImportRepository using PostgreSQL
type PostgresImportRepository struct {
	db DBTX
}

// NewPostgresImportRepository creates a new PostgreSQL import repository
func NewPostgresImportRepository(db DBTX) *PostgresImportRepository {
	return &PostgresImportRepository{db: db}
}

// InTx runs fn inside a database transaction
func (r *PostgresImportRepository) InTx(ctx context.Context, fn func(repo ImportRepository) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&PostgresImportRepository{db: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to rollback transaction: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapError(err))
	}
	return nil
}

// FindCategoriesByTitle returns the categories whose title is in titles
func (r *PostgresImportRepository) FindCategoriesByTitle(ctx context.Context, titles []string) ([]Category, error) {
	if len(titles) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, title, created_at, updated_at
		FROM categories
		WHERE title = ANY($1)
		ORDER BY title`

	rows, err := r.db.Query(ctx, query, titles)
	if err != nil {
		return nil, fmt.Errorf("failed to find categories: %w", err)
	}
	return scanCategories(rows)
}

// CreateCategories inserts the given titles in one statement. Titles that
// already exist, or that a concurrent import inserted first, are re-fetched.
// Rows are inserted in title order so overlapping imports lock index entries
// in the same sequence.
func (r *PostgresImportRepository) CreateCategories(ctx context.Context, titles []string) ([]Category, error) {
	if len(titles) == 0 {
		return nil, nil
	}

	query := `
		INSERT INTO categories (title)
		SELECT t FROM (SELECT DISTINCT unnest($1::text[]) AS t) s
		ORDER BY t
		ON CONFLICT (title) DO NOTHING
		RETURNING id, title, created_at, updated_at`

	rows, err := r.db.Query(ctx, query, titles)
	if err != nil {
		return nil, fmt.Errorf("failed to create categories: %w", mapError(err))
	}
	inserted, err := scanCategories(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to create categories: %w", mapError(err))
	}

	byTitle := make(map[string]Category, len(titles))
	for _, c := range inserted {
		byTitle[c.Title] = c
	}

	var lost []string
	for _, title := range titles {
		if _, ok := byTitle[title]; !ok {
			lost = append(lost, title)
		}
	}
	if len(lost) > 0 {
		existing, err := r.FindCategoriesByTitle(ctx, lost)
		if err != nil {
			return nil, err
		}
		for _, c := range existing {
			byTitle[c.Title] = c
		}
	}

	categories := make([]Category, 0, len(titles))
	seen := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}

		c, ok := byTitle[title]
		if !ok {
			return nil, fmt.Errorf("category %q: %w", title, ErrNotFound)
		}
		categories = append(categories, c)
	}
	return categories, nil
}

// ListCategories returns every category ordered by title
func (r *PostgresImportRepository) ListCategories(ctx context.Context) ([]Category, error) {
	query := `
		SELECT id, title, created_at, updated_at
		FROM categories
		ORDER BY title`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return scanCategories(rows)
}

// CreateTransactions bulk-inserts drafts with COPY. IDs and timestamps are
// assigned here so the result can be returned without a second round trip.
func (r *PostgresImportRepository) CreateTransactions(ctx context.Context, drafts []TransactionDraft) ([]Transaction, error) {
	if len(drafts) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	transactions := make([]Transaction, len(drafts))
	copyRows := make([][]any, len(drafts))

	for i, d := range drafts {
		transactions[i] = Transaction{
			ID:          uuid.New(),
			Title:       d.Title,
			Type:        d.Type,
			Value:       d.Value,
			CategoryID:  d.CategoryID,
			ImportJobID: d.ImportJobID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		copyRows[i] = []any{
			transactions[i].ID,
			d.Title,
			string(d.Type),
			toNumeric(d.Value),
			d.CategoryID,
			d.ImportJobID,
			now,
			now,
		}
	}

	copied, err := r.db.CopyFrom(ctx, pgx.Identifier{"transactions"}, transactionColumns, pgx.CopyFromRows(copyRows))
	if err != nil {
		return nil, fmt.Errorf("failed to create transactions: %w", mapError(err))
	}
	if copied != int64(len(drafts)) {
		return nil, fmt.Errorf("failed to create transactions: copied %d of %d rows", copied, len(drafts))
	}

	return transactions, nil
}

// ListTransactions returns every transaction with its category
func (r *PostgresImportRepository) ListTransactions(ctx context.Context) ([]Transaction, error) {
	query := `
		SELECT t.id, t.title, t.type, t.value::text, t.category_id, t.import_job_id,
			t.created_at, t.updated_at, c.title, c.created_at, c.updated_at
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		ORDER BY t.created_at, t.title`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		var (
			t        Transaction
			c        Category
			txType   string
			rawValue string
		)
		if err := rows.Scan(
			&t.ID,
			&t.Title,
			&txType,
			&rawValue,
			&t.CategoryID,
			&t.ImportJobID,
			&t.CreatedAt,
			&t.UpdatedAt,
			&c.Title,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		value, err := decimal.NewFromString(rawValue)
		if err != nil {
			return nil, fmt.Errorf("invalid value for transaction %s: %w", t.ID, err)
		}
		t.Type = TransactionType(txType)
		t.Value = value
		c.ID = t.CategoryID
		t.Category = &c

		transactions = append(transactions, t)
	}

	return transactions, rows.Err()
}

// CreateImportJob inserts a new import job
func (r *PostgresImportRepository) CreateImportJob(ctx context.Context, job *ImportJob) error {
	query := `
		INSERT INTO import_jobs (id, file_name, status, rows_total, rows_skipped)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = ImportJobStatusRunning
	}

	err := r.db.QueryRow(ctx, query,
		job.ID,
		job.FileName,
		string(job.Status),
		job.RowsTotal,
		job.RowsSkipped,
	).Scan(&job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}
	return nil
}

// FinishImportJob stores the final status and counters of a job
func (r *PostgresImportRepository) FinishImportJob(ctx context.Context, job *ImportJob) error {
	query := `
		UPDATE import_jobs
		SET status = $2, rows_imported = $3, rows_skipped = $4,
			categories_created = $5, error = $6, finished_at = now()
		WHERE id = $1
		RETURNING finished_at`

	var finishedAt time.Time
	err := r.db.QueryRow(ctx, query,
		job.ID,
		string(job.Status),
		job.RowsImported,
		job.RowsSkipped,
		job.CategoriesCreated,
		job.Error,
	).Scan(&finishedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("import job %s: %w", job.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to finish import job: %w", err)
	}

	job.FinishedAt = &finishedAt
	return nil
}

func scanCategories(rows pgx.Rows) ([]Category, error) {
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	return categories, rows.Err()
}

// mapError translates unique violations on category titles into ErrDuplicateTitle
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == uniqueViolation && pgErr.TableName == "categories":
		return fmt.Errorf("%w: %s", ErrDuplicateTitle, pgErr.Detail)
	case pgErr.Code == serializationFailure, pgErr.Code == deadlockDetected:
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
	}
	return err
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{
		Int:   d.Coefficient(),
		Exp:   d.Exponent(),
		Valid: true,
	}
}
