package balance

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/transaction-importer/internal/domain/import/repository"
)

// MockBalanceRepository implements a mock for testing
type MockBalanceRepository struct {
	totals         Totals
	categoryTotals []CategoryTotals
	err            error
}

func (m *MockBalanceRepository) GetTotals(ctx context.Context) (Totals, error) {
	return m.totals, m.err
}

func (m *MockBalanceRepository) GetCategoryTotals(ctx context.Context) ([]CategoryTotals, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.categoryTotals, nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestGetBalance(t *testing.T) {
	mock := &MockBalanceRepository{
		totals: Totals{Income: d("5000"), Outcome: d("1250.50")},
	}
	svc := NewService(mock)

	b, err := svc.GetBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, d("5000").Equal(b.Income))
	assert.True(t, d("1250.50").Equal(b.Outcome))
	assert.True(t, d("3749.50").Equal(b.Total))
}

func TestGetBalance_NegativeTotalIsReported(t *testing.T) {
	svc := NewService(&MockBalanceRepository{
		totals: Totals{Income: d("10"), Outcome: d("25")},
	})

	b, err := svc.GetBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, d("-15").Equal(b.Total))
}

func TestGetBalance_Error(t *testing.T) {
	svc := NewService(&MockBalanceRepository{err: errors.New("db down")})

	_, err := svc.GetBalance(context.Background())
	assert.Error(t, err)

	_, err = svc.GetCategoryBalances(context.Background())
	assert.Error(t, err)
}

func TestGetCategoryBalances(t *testing.T) {
	svc := NewService(&MockBalanceRepository{
		categoryTotals: []CategoryTotals{
			{Category: "Salary", Count: 1, Totals: Totals{Income: d("5000"), Outcome: decimal.Zero}},
			{Category: "Transport", Count: 2, Totals: Totals{Income: decimal.Zero, Outcome: d("62.30")}},
		},
	})

	balances, err := svc.GetCategoryBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, "Transport", balances[1].Category)
	assert.Equal(t, 2, balances[1].Transactions)
	assert.True(t, d("-62.30").Equal(balances[1].Total))
}

func TestFromTransactions(t *testing.T) {
	categoryID := uuid.New()
	transactions := []repository.Transaction{
		{Title: "Bus", Type: repository.TransactionTypeOutcome, Value: d("50"), CategoryID: categoryID},
		{Title: "Salary", Type: repository.TransactionTypeIncome, Value: d("5000"), CategoryID: categoryID},
		{Title: "Bus", Type: repository.TransactionTypeOutcome, Value: d("0.10"), CategoryID: categoryID},
	}

	b := FromTransactions(transactions)
	assert.True(t, d("5000").Equal(b.Income))
	assert.True(t, d("50.10").Equal(b.Outcome))
	assert.True(t, d("4949.90").Equal(b.Total))

	empty := FromTransactions(nil)
	assert.True(t, empty.Total.IsZero())
}

func TestRepository_GetTotals(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM transactions`).
		WillReturnRows(pgxmock.NewRows([]string{"income", "outcome"}).AddRow("5000.00", "50.00"))

	totals, err := NewRepository(mock).GetTotals(context.Background())
	require.NoError(t, err)
	assert.True(t, d("5000").Equal(totals.Income))
	assert.True(t, d("50").Equal(totals.Outcome))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetCategoryTotals(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`GROUP BY c.title`).
		WillReturnRows(pgxmock.NewRows([]string{"title", "count", "income", "outcome"}).
			AddRow("Salary", 1, "5000", "0").
			AddRow("Transport", 2, "0", "62.30"))

	totals, err := NewRepository(mock).GetCategoryTotals(context.Background())
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, "Transport", totals[1].Category)
	assert.Equal(t, 2, totals[1].Count)
	assert.True(t, d("62.3").Equal(totals[1].Outcome))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetTotals_InvalidSum(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM transactions`).
		WillReturnRows(pgxmock.NewRows([]string{"income", "outcome"}).AddRow("NaN", "0"))

	_, err = NewRepository(mock).GetTotals(context.Background())
	assert.ErrorContains(t, err, "invalid income sum")
}
