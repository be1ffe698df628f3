// Package balance reports income, outcome and total over persisted
// transactions. It never rejects a transaction.
package balance

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/transaction-importer/internal/domain/import/repository"
)

// Balance is the income, outcome and difference of a set of transactions
type Balance struct {
	Income  decimal.Decimal
	Outcome decimal.Decimal
	Total   decimal.Decimal // Income - Outcome
}

// CategoryBalance is the balance of one category
type CategoryBalance struct {
	Category     string
	Transactions int
	Balance
}

// BalanceRepository is implemented by Repository
type BalanceRepository interface {
	GetTotals(ctx context.Context) (Totals, error)
	GetCategoryTotals(ctx context.Context) ([]CategoryTotals, error)
}

// Service handles balance business logic
type Service struct {
	repo BalanceRepository
}

// NewService creates a new balance service
func NewService(repo BalanceRepository) *Service {
	return &Service{repo: repo}
}

// GetBalance computes the balance over every persisted transaction
func (s *Service) GetBalance(ctx context.Context) (*Balance, error) {
	totals, err := s.repo.GetTotals(ctx)
	if err != nil {
		return nil, err
	}

	b := newBalance(totals)
	return &b, nil
}

// GetCategoryBalances computes one balance per category
func (s *Service) GetCategoryBalances(ctx context.Context) ([]CategoryBalance, error) {
	totals, err := s.repo.GetCategoryTotals(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]CategoryBalance, len(totals))
	for i, ct := range totals {
		result[i] = CategoryBalance{
			Category:     ct.Category,
			Transactions: ct.Count,
			Balance:      newBalance(ct.Totals),
		}
	}
	return result, nil
}

// FromTransactions computes the balance of an in-memory slice, such as the
// result of a single import
func FromTransactions(transactions []repository.Transaction) Balance {
	var totals Totals
	for _, t := range transactions {
		switch t.Type {
		case repository.TransactionTypeIncome:
			totals.Income = totals.Income.Add(t.Value)
		case repository.TransactionTypeOutcome:
			totals.Outcome = totals.Outcome.Add(t.Value)
		}
	}
	return newBalance(totals)
}

func newBalance(t Totals) Balance {
	return Balance{
		Income:  t.Income,
		Outcome: t.Outcome,
		Total:   t.Income.Sub(t.Outcome),
	}
}
