// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/transaction-importer/internal/domain/import/inbox"
)

// DefaultSchedule sweeps the inbox every minute
const DefaultSchedule = "@every 1m"

// Sweeper imports pending files. *inbox.Processor implements it.
type Sweeper interface {
	Sweep(ctx context.Context) (*inbox.SweepResult, error)
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	schedule string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a new job scheduler. An empty schedule uses
// DefaultSchedule; a zero timeout means sweeps only stop when Stop is called.
func NewScheduler(sweeper Sweeper, schedule string, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		cron:     c,
		sweeper:  sweeper,
		schedule: schedule,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweepInbox); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("schedule", s.schedule),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs. The returned context is done
// once running sweeps have finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers an inbox sweep.
func (s *Scheduler) RunNow() {
	go s.sweepInbox()
}

func (s *Scheduler) sweepInbox() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Debug("starting inbox sweep")

	result, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("inbox sweep failed", slog.Any("error", err))
		return
	}

	if len(result.Files) > 0 {
		s.logger.Info("inbox sweep imported files",
			slog.Int("files_imported", result.Imported),
			slog.Int("files_failed", result.Failed),
		)
	}
}
