package ingestion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midgard-history/internal/service"
)

// countingService records how many cycles were run.
type countingService struct {
	cycles atomic.Int32
}

func (s *countingService) RunCycle(ctx context.Context) service.CycleReport {
	s.cycles.Add(1)
	return service.CycleReport{ID: uuid.New(), Started: time.Now()}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunner_RunOnStart(t *testing.T) {
	svc := &countingService{}
	runner := NewRunner(RunnerOptions{
		Service:    svc,
		Interval:   time.Hour,
		RunOnStart: true,
		Logger:     testLogger(),
	})

	_, ok := runner.LastReport()
	assert.False(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := runner.Run(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, int32(1), svc.cycles.Load())

	report, ok := runner.LastReport()
	require.True(t, ok)
	assert.NotEqual(t, uuid.Nil, report.ID)
}

func TestRunner_Ticks(t *testing.T) {
	svc := &countingService{}
	runner := NewRunner(RunnerOptions{
		Service:  svc,
		Interval: 10 * time.Millisecond,
		Logger:   testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	assert.Eventually(t, func() bool { return svc.cycles.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}

// slowService blocks each cycle until release is closed.
type slowService struct {
	started  chan struct{}
	release  chan struct{}
	finished atomic.Bool
}

func (s *slowService) RunCycle(ctx context.Context) service.CycleReport {
	close(s.started)
	<-s.release
	s.finished.Store(true)
	return service.CycleReport{ID: uuid.New(), Started: time.Now()}
}

func TestRunner_StartWaitsForInFlightCycle(t *testing.T) {
	svc := &slowService{started: make(chan struct{}), release: make(chan struct{})}
	runner := NewRunner(RunnerOptions{
		Service:    svc,
		Interval:   time.Hour,
		RunOnStart: true,
		Logger:     testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := runner.Start(ctx)

	<-svc.started
	cancel()

	select {
	case <-done:
		t.Fatal("runner stopped while a cycle was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(svc.release)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after the cycle finished")
	}
	assert.True(t, svc.finished.Load())

	_, ok := <-done
	assert.False(t, ok)
}

func TestRunner_NoCycleWithoutRunOnStart(t *testing.T) {
	svc := &countingService{}
	runner := NewRunner(RunnerOptions{Service: svc, Interval: time.Hour, Logger: testLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, runner.Run(ctx), context.Canceled)
	assert.Equal(t, int32(0), svc.cycles.Load())
}

func TestNewRunner_Defaults(t *testing.T) {
	runner := NewRunner(RunnerOptions{Service: &countingService{}})
	assert.Equal(t, DefaultInterval, runner.interval)
	assert.NotNil(t, runner.logger)
}
