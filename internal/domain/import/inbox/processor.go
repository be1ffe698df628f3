// Package inbox imports every pending file found in a storage location.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/transaction-importer/internal/domain/import/parser"
	"github.com/FACorreiaa/transaction-importer/internal/domain/import/service"
	"github.com/FACorreiaa/transaction-importer/pkg/storage"
)

// FileImporter imports a single file. *service.ImportService implements it.
type FileImporter interface {
	ImportWithOptions(ctx context.Context, path string, opts service.ImportOptions) (*service.ImportResult, error)
}

// FileOutcome is the result of importing one file
type FileOutcome struct {
	Name   string
	Result *service.ImportResult // nil when nothing was committed
	Err    error
}

// SweepResult summarizes one pass over the inbox
type SweepResult struct {
	Files    []FileOutcome // In listing order
	Imported int
	Failed   int
}

// Processor sweeps a storage location and imports the files it finds.
// Files that fail stay where they are and are retried on the next sweep.
type Processor struct {
	files       storage.Storage
	importer    FileImporter
	logger      *slog.Logger
	concurrency int

	sweepMu sync.Mutex

	// Files whose import committed but that could not be removed. They are
	// never imported again; removal is retried instead.
	mu        sync.Mutex
	committed map[string]struct{}
}

// NewProcessor creates a processor importing up to concurrency files at once
func NewProcessor(files storage.Storage, importer FileImporter, logger *slog.Logger, concurrency int) *Processor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Processor{
		files:       files,
		importer:    importer,
		logger:      logger,
		concurrency: concurrency,
		committed:   make(map[string]struct{}),
	}
}

// Sweep imports every supported file currently in the inbox. Only a failure
// to list the inbox is returned as an error; per-file failures are reported
// in the result.
func (p *Processor) Sweep(ctx context.Context) (*SweepResult, error) {
	p.sweepMu.Lock()
	defer p.sweepMu.Unlock()

	listed, err := p.files.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}

	var pending []string
	for _, f := range listed {
		if !parser.Supported(f.Name) {
			continue
		}
		if p.retryRemoval(ctx, f.Name) {
			continue
		}
		pending = append(pending, f.Name)
	}

	result := &SweepResult{Files: make([]FileOutcome, len(pending))}
	if len(pending) == 0 {
		return result, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, name := range pending {
		g.Go(func() error {
			result.Files[i] = p.importFile(gctx, name)
			return nil
		})
	}
	_ = g.Wait() // Workers never fail the group

	for _, outcome := range result.Files {
		if outcome.Result != nil {
			result.Imported++
		} else {
			result.Failed++
		}
	}

	p.logger.Info("inbox sweep completed",
		slog.Int("files_imported", result.Imported),
		slog.Int("files_failed", result.Failed),
	)
	return result, nil
}

func (p *Processor) importFile(ctx context.Context, name string) FileOutcome {
	res, err := p.importer.ImportWithOptions(ctx, name, service.ImportOptions{})
	if errors.Is(err, service.ErrSourceNotRemoved) {
		p.mu.Lock()
		p.committed[name] = struct{}{}
		p.mu.Unlock()
	}
	if err != nil {
		p.logger.Warn("failed to import inbox file",
			slog.String("file", name),
			slog.Any("error", err),
		)
	}
	return FileOutcome{Name: name, Result: res, Err: err}
}

// retryRemoval reports whether name was already imported, trying once more
// to remove it
func (p *Processor) retryRemoval(ctx context.Context, name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.committed[name]; !ok {
		return false
	}

	if err := p.files.Remove(ctx, name); err != nil {
		p.logger.Warn("imported file still not removed",
			slog.String("file", name),
			slog.Any("error", err),
		)
		return true
	}
	delete(p.committed, name)
	return true
}
