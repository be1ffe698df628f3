// Package repository provides persistence for categories, transactions and
// import jobs.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrDuplicateTitle is returned when a category title is already taken.
	ErrDuplicateTitle = errors.New("category title already exists")
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when the database aborted a transaction that
	// raced another one. Retrying the whole transaction is safe.
	ErrConflict = errors.New("transaction conflict")
)

// TransactionType tells whether money came in or went out
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeOutcome TransactionType = "outcome"
)

// Valid reports whether t is a known transaction type
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeOutcome
}

// Category groups transactions; titles are unique across the store
type Category struct {
	ID        uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction is a persisted financial record
type Transaction struct {
	ID          uuid.UUID
	Title       string
	Type        TransactionType
	Value       decimal.Decimal
	CategoryID  uuid.UUID
	Category    *Category // Populated by the importer and list queries
	ImportJobID *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TransactionDraft is a transaction waiting for batch creation
type TransactionDraft struct {
	Title       string
	Type        TransactionType
	Value       decimal.Decimal
	CategoryID  uuid.UUID
	ImportJobID *uuid.UUID
}

// ImportJobStatus is the lifecycle state of an import job
type ImportJobStatus string

const (
	ImportJobStatusRunning   ImportJobStatus = "running"
	ImportJobStatusSucceeded ImportJobStatus = "succeeded"
	ImportJobStatusFailed    ImportJobStatus = "failed"
)

// ImportJob records one import attempt that reached the persistence stage
type ImportJob struct {
	ID                uuid.UUID
	FileName          string
	Status            ImportJobStatus
	RowsTotal         int
	RowsImported      int
	RowsSkipped       int
	CategoriesCreated int
	Error             *string
	CreatedAt         time.Time
	FinishedAt        *time.Time
}

// ImportRepository defines the store operations the importer relies on.
//
// CreateCategories is idempotent: titles that already exist, including ones
// inserted concurrently by another writer, are returned instead of failing.
// Stores that cannot guarantee this report ErrDuplicateTitle and callers
// re-fetch.
type ImportRepository interface {
	FindCategoriesByTitle(ctx context.Context, titles []string) ([]Category, error)
	CreateCategories(ctx context.Context, titles []string) ([]Category, error)
	ListCategories(ctx context.Context) ([]Category, error)

	CreateTransactions(ctx context.Context, drafts []TransactionDraft) ([]Transaction, error)
	ListTransactions(ctx context.Context) ([]Transaction, error)

	CreateImportJob(ctx context.Context, job *ImportJob) error
	FinishImportJob(ctx context.Context, job *ImportJob) error

	// InTx runs fn against a repository bound to a single store transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(repo ImportRepository) error) error
}
