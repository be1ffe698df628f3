package balance

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Querier is the subset of pgx used by the balance queries
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Totals holds income and outcome sums
type Totals struct {
	Income  decimal.Decimal
	Outcome decimal.Decimal
}

// CategoryTotals holds the sums for a single category
type CategoryTotals struct {
	Category string
	Count    int
	Totals
}

// Repository handles balance queries
type Repository struct {
	db Querier
}

// NewRepository creates a new balance repository
func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

// GetTotals sums every persisted transaction by type
func (r *Repository) GetTotals(ctx context.Context) (Totals, error) {
	query := `
		SELECT
			COALESCE(SUM(value) FILTER (WHERE type = 'income'), 0)::text,
			COALESCE(SUM(value) FILTER (WHERE type = 'outcome'), 0)::text
		FROM transactions`

	var income, outcome string
	if err := r.db.QueryRow(ctx, query).Scan(&income, &outcome); err != nil {
		return Totals{}, fmt.Errorf("failed to sum transactions: %w", err)
	}

	return parseTotals(income, outcome)
}

// GetCategoryTotals sums transactions per category, ordered by title
func (r *Repository) GetCategoryTotals(ctx context.Context) ([]CategoryTotals, error) {
	query := `
		SELECT
			c.title,
			COUNT(t.id),
			COALESCE(SUM(t.value) FILTER (WHERE t.type = 'income'), 0)::text,
			COALESCE(SUM(t.value) FILTER (WHERE t.type = 'outcome'), 0)::text
		FROM categories c
		JOIN transactions t ON t.category_id = c.id
		GROUP BY c.title
		ORDER BY c.title`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to sum categories: %w", err)
	}
	defer rows.Close()

	var result []CategoryTotals
	for rows.Next() {
		var (
			ct              CategoryTotals
			income, outcome string
		)
		if err := rows.Scan(&ct.Category, &ct.Count, &income, &outcome); err != nil {
			return nil, fmt.Errorf("failed to scan category totals: %w", err)
		}

		ct.Totals, err = parseTotals(income, outcome)
		if err != nil {
			return nil, err
		}
		result = append(result, ct)
	}

	return result, rows.Err()
}

func parseTotals(income, outcome string) (Totals, error) {
	in, err := decimal.NewFromString(income)
	if err != nil {
		return Totals{}, fmt.Errorf("invalid income sum %q: %w", income, err)
	}
	out, err := decimal.NewFromString(outcome)
	if err != nil {
		return Totals{}, fmt.Errorf("invalid outcome sum %q: %w", outcome, err)
	}
	return Totals{Income: in, Outcome: out}, nil
}
