// Package ingestion schedules periodic ingestion cycles.
package ingestion

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"midgard-history/internal/service"
)

// DefaultInterval is the cycle period used when none is configured.
const DefaultInterval = time.Hour

// CycleRunner runs one ingestion cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) service.CycleReport
}

// Runner triggers ingestion cycles on a fixed interval.
type Runner struct {
	service    CycleRunner
	interval   time.Duration
	runOnStart bool
	logger     *slog.Logger

	mu   sync.RWMutex
	last *service.CycleReport
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Service    CycleRunner
	Interval   time.Duration // Default: 1h
	RunOnStart bool          // Run a cycle before the first tick
	Logger     *slog.Logger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		service:    opts.Service,
		interval:   interval,
		runOnStart: opts.RunOnStart,
		logger:     logger,
	}
}

// Run triggers cycles until ctx is cancelled.
// Cycles do not overlap because each one runs on this goroutine.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("ingestion runner started", "interval", r.interval, "run_on_start", r.runOnStart)

	if r.runOnStart {
		r.runCycle(ctx)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("ingestion runner stopping")
			return ctx.Err()
		case <-ticker.C:
			r.runCycle(ctx)
		}
	}
}

// Start runs the loop on a new goroutine. The returned channel receives the
// result of Run and is closed once any in-flight cycle has finished.
func (r *Runner) Start(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- r.Run(ctx)
	}()
	return done
}

// LastReport returns the report of the most recent cycle, if any.
func (r *Runner) LastReport() (service.CycleReport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return service.CycleReport{}, false
	}
	return *r.last, true
}

func (r *Runner) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report := r.service.RunCycle(ctx)

	r.mu.Lock()
	r.last = &report
	r.mu.Unlock()
}
