/*
scheduler.go - Automated daily reconciliation

PURPOSE:
  Periodically runs the routine-job reconciler for "today" in the
  configured zone so completions accrue and cycles pay out without a
  manual trigger.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once on start, then on every tick
  - A day is marked done only when its run completed with no failed job;
    otherwise the next tick retries. Runs are idempotent, so a retry only
    repairs or finishes what the failed attempt left.
  - Every run is recorded (see RunReconciliation) for audit

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReconciliationScheduler(handler, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerReconcile endpoint (manual reconciliation)
  - routine/reconciler.go: Reconciler
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/life-planner/generic"
	"github.com/warp/life-planner/logger"
)

// ReconciliationScheduler runs the reconciler once per day.
type ReconciliationScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool
	Log           zerolog.Logger

	lastDay generic.Day
	lastRun time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	runMu  sync.Mutex
}

// NewReconciliationScheduler creates a new scheduler.
func NewReconciliationScheduler(handler *Handler, log zerolog.Logger) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Log:           log.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins the scheduler.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Log.Info().Msg("scheduler disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	rs.Log.Info().Dur("interval", rs.CheckInterval).Msg("scheduler started")
}

// Stop stops the scheduler and waits for an in-flight run.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.Log.Info().Msg("scheduler stopped")
	}
}

func (rs *ReconciliationScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndProcess()

	for {
		select {
		case <-ticker.C:
			rs.checkAndProcess()
		case <-stop:
			return
		}
	}
}

// checkAndProcess reports whether a reconciliation ran.
func (rs *ReconciliationScheduler) checkAndProcess() bool {
	rs.runMu.Lock()
	defer rs.runMu.Unlock()

	today := rs.Handler.Today()
	if !rs.lastDay.IsZero() && today.Equal(rs.lastDay) {
		return false
	}

	ctx, cancel := context.WithTimeout(logger.WithContext(context.Background(), rs.Log), rs.timeout())
	defer cancel()

	rs.lastRun = rs.Handler.Now()
	run, err := rs.Handler.RunReconciliation(ctx, today)
	if err != nil {
		rs.Log.Error().Err(err).Str("day", today.String()).Msg("scheduled reconciliation failed")
		return true
	}

	ev := rs.Log.Info()
	if run.Failed > 0 {
		ev = rs.Log.Warn()
	}
	ev.Str("run_id", run.ID).
		Str("day", run.Day).
		Int("jobs", run.Jobs).
		Int("accrued", run.Accrued).
		Int("paid_out", run.PaidOut).
		Int("skipped", run.Skipped).
		Int("failed", run.Failed).
		Msg("scheduled reconciliation completed")

	if run.Failed == 0 {
		rs.lastDay = today
	}
	return true
}

func (rs *ReconciliationScheduler) timeout() time.Duration {
	if rs.CheckInterval > 0 && rs.CheckInterval < 5*time.Minute {
		return rs.CheckInterval
	}
	return 5 * time.Minute
}

// RunNow triggers an immediate check (for testing/admin).
func (rs *ReconciliationScheduler) RunNow() bool {
	return rs.checkAndProcess()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (rs *ReconciliationScheduler) GetNextRunTime() time.Time {
	rs.runMu.Lock()
	defer rs.runMu.Unlock()
	if rs.lastRun.IsZero() {
		return rs.Handler.Now()
	}
	return rs.lastRun.Add(rs.CheckInterval)
}
