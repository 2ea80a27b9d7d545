/*
scheduler.go - Periodic overdue sweep

PURPOSE:
  Periodically reconciles every scheduled event, publishes the overdue count
  as a gauge and records the pass as a SweepRun. The sweep only reads: it
  never creates work orders or changes an event.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Runs once immediately on Start
  - A failed pass is recorded with status "failed" and its error

USAGE:
  sweeper := NewOverdueSweeper(svc, store, metrics, logger)
  sweeper.Interval = cfg.SweepInterval
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: ListOverdue (same computation on demand), ListSweepRuns
  - maintenance/reconcile.go: Reconcile
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/asset-engine/generic"
	"github.com/warp/asset-engine/maintenance"
	"go.uber.org/zap"
)

// OverdueSweeper recomputes overdue events on a ticker.
type OverdueSweeper struct {
	Service  *maintenance.Service
	Runs     maintenance.SweepLog
	Metrics  *Metrics
	Logger   *zap.Logger
	Interval time.Duration
	Clock    func() generic.TimePoint

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewOverdueSweeper creates a sweeper with a one hour interval.
func NewOverdueSweeper(svc *maintenance.Service, runs maintenance.SweepLog, metrics *Metrics, logger *zap.Logger) *OverdueSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverdueSweeper{
		Service:  svc,
		Runs:     runs,
		Metrics:  metrics,
		Logger:   logger,
		Interval: time.Hour,
		Clock:    generic.Today,
	}
}

// Start begins sweeping. Calling Start twice is a no-op.
func (s *OverdueSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}
	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.Info("overdue sweeper started", zap.Duration("interval", s.Interval))
}

// Stop halts the sweeper and waits for an in-flight pass.
func (s *OverdueSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.Logger.Info("overdue sweeper stopped")
}

func (s *OverdueSweeper) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow performs one sweep and returns its record.
func (s *OverdueSweeper) RunNow(ctx context.Context) maintenance.SweepRun {
	today := generic.Today()
	if s.Clock != nil {
		today = s.Clock()
	}
	run := maintenance.SweepRun{
		ID:        uuid.NewString(),
		AsOf:      today,
		StartedAt: time.Now(),
	}

	views, err := s.Service.Overdue(ctx, today)
	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
		s.Logger.Error("overdue sweep failed", zap.Error(err))
	} else {
		run.Status = "completed"
		run.Overdue = len(views)
		for _, v := range views {
			run.MaxDaysOverdue = max(run.MaxDaysOverdue, v.Reconciliation.DaysOverdue)
		}
		s.Metrics.SetOverdue(run.Overdue)
		s.Logger.Info("overdue sweep",
			zap.Stringer("as_of", today),
			zap.Int("overdue", run.Overdue),
			zap.Int("max_days_overdue", run.MaxDaysOverdue))
	}
	run.CompletedAt = time.Now()

	if s.Runs != nil {
		if err := s.Runs.SaveSweepRun(ctx, run); err != nil {
			s.Logger.Warn("failed to record sweep run", zap.Error(err))
		}
	}
	return run
}

// NextRunTime returns when the next sweep will occur.
func (s *OverdueSweeper) NextRunTime() time.Time {
	return time.Now().Add(s.Interval)
}
