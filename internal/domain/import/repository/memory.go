package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryImportRepository is an in-process ImportRepository used by tests and
// dry runs. Transactions work on a private copy that is merged back on commit;
// a category title claimed by someone else in the meantime fails the commit
// with ErrDuplicateTitle, the same way a unique index would.
type MemoryImportRepository struct {
	mu   *sync.Mutex
	txMu *sync.Mutex
	data *memoryData

	parent *MemoryImportRepository // Set on transaction-bound copies
}

type memoryData struct {
	categories   []Category
	transactions []Transaction
	jobs         map[uuid.UUID]ImportJob
	dirtyJobs    map[uuid.UUID]struct{}
}

// NewMemoryImportRepository creates an empty in-memory repository
func NewMemoryImportRepository() *MemoryImportRepository {
	return &MemoryImportRepository{
		mu:   &sync.Mutex{},
		txMu: &sync.Mutex{},
		data: &memoryData{
			jobs:      make(map[uuid.UUID]ImportJob),
			dirtyJobs: make(map[uuid.UUID]struct{}),
		},
	}
}

// InTx runs fn against a private copy of the data and merges it back when fn
// succeeds. Transactions are serialized.
func (r *MemoryImportRepository) InTx(ctx context.Context, fn func(repo ImportRepository) error) error {
	if r.parent != nil {
		return fn(r)
	}

	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapshot := r.data.clone()
	r.mu.Unlock()

	child := &MemoryImportRepository{
		mu:     &sync.Mutex{},
		data:   snapshot,
		parent: r,
	}
	if err := fn(child); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return r.merge(child.data)
}

func (r *MemoryImportRepository) merge(staged *memoryData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	knownCategories := make(map[uuid.UUID]struct{}, len(r.data.categories))
	titles := make(map[string]uuid.UUID, len(r.data.categories))
	for _, c := range r.data.categories {
		knownCategories[c.ID] = struct{}{}
		titles[c.Title] = c.ID
	}

	var newCategories []Category
	for _, c := range staged.categories {
		if _, ok := knownCategories[c.ID]; ok {
			continue
		}
		if _, taken := titles[c.Title]; taken {
			return fmt.Errorf("%w: %q", ErrDuplicateTitle, c.Title)
		}
		newCategories = append(newCategories, c)
	}

	knownTransactions := make(map[uuid.UUID]struct{}, len(r.data.transactions))
	for _, t := range r.data.transactions {
		knownTransactions[t.ID] = struct{}{}
	}

	r.data.categories = append(r.data.categories, newCategories...)
	for _, t := range staged.transactions {
		if _, ok := knownTransactions[t.ID]; !ok {
			r.data.transactions = append(r.data.transactions, t)
		}
	}
	for id := range staged.dirtyJobs {
		r.data.jobs[id] = staged.jobs[id]
	}

	return nil
}

// FindCategoriesByTitle returns the categories whose title is in titles
func (r *MemoryImportRepository) FindCategoriesByTitle(_ context.Context, titles []string) ([]Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found []Category
	for _, c := range r.data.categories {
		if slices.Contains(titles, c.Title) {
			found = append(found, c)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Title < found[j].Title })
	return found, nil
}

// CreateCategories creates missing titles and returns existing ones as-is
func (r *MemoryImportRepository) CreateCategories(_ context.Context, titles []string) ([]Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byTitle := make(map[string]Category, len(r.data.categories))
	for _, c := range r.data.categories {
		byTitle[c.Title] = c
	}

	now := time.Now().UTC()
	categories := make([]Category, 0, len(titles))
	seen := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}

		c, ok := byTitle[title]
		if !ok {
			c = Category{ID: uuid.New(), Title: title, CreatedAt: now, UpdatedAt: now}
			r.data.categories = append(r.data.categories, c)
			byTitle[title] = c
		}
		categories = append(categories, c)
	}
	return categories, nil
}

// ListCategories returns every category ordered by title
func (r *MemoryImportRepository) ListCategories(_ context.Context) ([]Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	categories := slices.Clone(r.data.categories)
	sort.Slice(categories, func(i, j int) bool { return categories[i].Title < categories[j].Title })
	return categories, nil
}

// CreateTransactions stores drafts; every draft must reference a known category
func (r *MemoryImportRepository) CreateTransactions(_ context.Context, drafts []TransactionDraft) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	known := make(map[uuid.UUID]struct{}, len(r.data.categories))
	for _, c := range r.data.categories {
		known[c.ID] = struct{}{}
	}

	now := time.Now().UTC()
	transactions := make([]Transaction, len(drafts))
	for i, d := range drafts {
		if _, ok := known[d.CategoryID]; !ok {
			return nil, fmt.Errorf("category %s: %w", d.CategoryID, ErrNotFound)
		}
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
	}

	r.data.transactions = append(r.data.transactions, transactions...)
	return slices.Clone(transactions), nil
}

// ListTransactions returns every transaction in insertion order with its category
func (r *MemoryImportRepository) ListTransactions(_ context.Context) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID := make(map[uuid.UUID]Category, len(r.data.categories))
	for _, c := range r.data.categories {
		byID[c.ID] = c
	}

	transactions := slices.Clone(r.data.transactions)
	for i := range transactions {
		if c, ok := byID[transactions[i].CategoryID]; ok {
			transactions[i].Category = &c
		}
	}
	return transactions, nil
}

// CreateImportJob stores a new import job
func (r *MemoryImportRepository) CreateImportJob(_ context.Context, job *ImportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = ImportJobStatusRunning
	}
	job.CreatedAt = time.Now().UTC()

	r.data.jobs[job.ID] = *job
	r.data.dirtyJobs[job.ID] = struct{}{}
	return nil
}

// FinishImportJob stores the final status and counters of a job
func (r *MemoryImportRepository) FinishImportJob(_ context.Context, job *ImportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data.jobs[job.ID]; !ok {
		return fmt.Errorf("import job %s: %w", job.ID, ErrNotFound)
	}

	finishedAt := time.Now().UTC()
	job.FinishedAt = &finishedAt
	r.data.jobs[job.ID] = *job
	r.data.dirtyJobs[job.ID] = struct{}{}
	return nil
}

// ImportJob returns a stored job by id
func (r *MemoryImportRepository) ImportJob(id uuid.UUID) (ImportJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.data.jobs[id]
	return job, ok
}

func (d *memoryData) clone() *memoryData {
	jobs := make(map[uuid.UUID]ImportJob, len(d.jobs))
	for id, job := range d.jobs {
		jobs[id] = job
	}
	return &memoryData{
		categories:   slices.Clone(d.categories),
		transactions: slices.Clone(d.transactions),
		jobs:         jobs,
		dirtyJobs:    make(map[uuid.UUID]struct{}),
	}
}
