package cron

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/transaction-importer/internal/domain/import/inbox"
)

type MockSweeper struct {
	calls chan struct{}
	err   error
}

func (m *MockSweeper) Sweep(ctx context.Context) (*inbox.SweepResult, error) {
	m.calls <- struct{}{}
	if m.err != nil {
		return nil, m.err
	}
	return &inbox.SweepResult{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForSweep(t *testing.T, calls <-chan struct{}) {
	t.Helper()
	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep was not triggered")
	}
}

func TestScheduler_RunNow(t *testing.T) {
	sweeper := &MockSweeper{calls: make(chan struct{}, 1)}
	s := NewScheduler(sweeper, "", time.Minute, testLogger())

	s.RunNow()
	waitForSweep(t, sweeper.calls)
}

func TestScheduler_RunNow_SweepError(t *testing.T) {
	sweeper := &MockSweeper{calls: make(chan struct{}, 1), err: errors.New("bucket gone")}
	s := NewScheduler(sweeper, "", 0, testLogger())

	s.RunNow()
	waitForSweep(t, sweeper.calls)
}

func TestScheduler_StartRunsOnSchedule(t *testing.T) {
	sweeper := &MockSweeper{calls: make(chan struct{}, 10)}
	s := NewScheduler(sweeper, "@every 1s", time.Minute, testLogger())

	require.NoError(t, s.Start())
	waitForSweep(t, sweeper.calls)

	<-s.Stop().Done()
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(&MockSweeper{}, "every now and then", 0, testLogger())
	assert.Error(t, s.Start())
}
