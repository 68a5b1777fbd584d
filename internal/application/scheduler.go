package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oms-platform/reconciliation-service/internal/domain"
	"github.com/oms-platform/reconciliation-service/pkg/logging"
	"github.com/oms-platform/reconciliation-service/pkg/metrics"
)

// ErrRunInProgress is returned when a manual run is requested while a
// reconciliation run is already in flight.
var ErrRunInProgress = errors.New("reconciliation run already in progress")

// RunSummary describes the most recent reconciliation run.
type RunSummary struct {
	RunID         string    `json:"runId"`
	Trigger       string    `json:"trigger"`
	StartedAt     time.Time `json:"startedAt"`
	Duration      string    `json:"duration"`
	Updates       int       `json:"updates"`
	NotFound      int       `json:"notFound"`
	Skipped       int       `json:"skipped"`
	Errors        int       `json:"errors"`
	FetchedOrders int       `json:"fetchedOrders"`
	PagesFetched  int       `json:"pagesFetched"`
	Error         string    `json:"error,omitempty"`
}

// SchedulerStatus is the externally visible scheduler state.
type SchedulerStatus struct {
	Running  bool        `json:"running"`
	InFlight bool        `json:"inFlight"`
	Interval string      `json:"interval"`
	LastRun  *RunSummary `json:"lastRun,omitempty"`
}

// Scheduler fires the reconcile service once at startup and then on a fixed
// interval. Overlapping ticks are no-ops: at most one run is ever in
// flight, and a run that outlasts its tick simply delays the next one.
type Scheduler struct {
	service  *ReconcileService
	interval time.Duration
	logger   *logging.Logger
	metrics  *metrics.Metrics

	mu       sync.RWMutex
	running  bool
	inFlight bool
	lastRun  *RunSummary
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewScheduler creates a scheduler.
func NewScheduler(service *ReconcileService, interval time.Duration, logger *logging.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		service:  service,
		interval: interval,
		logger:   logger.WithComponent("scheduler"),
		metrics:  m,
	}
}

// Start launches the scheduling loop, running once immediately.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	stop, done := s.stopChan, s.doneChan
	s.mu.Unlock()

	s.logger.Info("Scheduler started", "interval", s.interval.String())

	go func() {
		defer close(done)

		s.runOnce("startup")

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.runOnce("interval")
			}
		}
	}()

	return nil
}

// Stop halts the scheduling loop and waits for it to exit. An in-flight
// run finishes before the loop exits.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	done := s.doneChan
	s.mu.Unlock()

	<-done
	s.logger.Info("Scheduler stopped")
}

// RunNow triggers a manual run, sharing the overlap guard with the ticker.
func (s *Scheduler) RunNow(ctx context.Context, window domain.FeedWindow) (*ReconcileResult, error) {
	if !s.tryBegin() {
		return nil, ErrRunInProgress
	}
	defer s.end()

	return s.execute(ctx, "manual", window)
}

// Status reports the scheduler state and the last run summary.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := SchedulerStatus{
		Running:  s.running,
		InFlight: s.inFlight,
		Interval: s.interval.String(),
	}
	if s.lastRun != nil {
		summary := *s.lastRun
		status.LastRun = &summary
	}
	return status
}

func (s *Scheduler) runOnce(trigger string) {
	if !s.tryBegin() {
		s.logger.Debug("Reconciliation tick skipped, run in progress", "trigger", trigger)
		return
	}
	defer s.end()

	_, _ = s.execute(context.Background(), trigger, domain.FeedWindow{})
}

func (s *Scheduler) execute(ctx context.Context, trigger string, window domain.FeedWindow) (*ReconcileResult, error) {
	start := time.Now()

	result, err := s.service.ReconcilePending(ctx, window)
	duration := time.Since(start)

	summary := &RunSummary{
		Trigger:   trigger,
		StartedAt: start.UTC(),
		Duration:  duration.String(),
	}
	if err != nil {
		summary.Error = err.Error()
		s.logger.WithError(err).Error("Reconciliation run failed", "trigger", trigger)
	} else {
		summary.RunID = result.RunID
		summary.Updates = len(result.Updates)
		summary.NotFound = len(result.NotFound)
		summary.Skipped = len(result.Skipped)
		summary.Errors = len(result.Errors)
		summary.FetchedOrders = result.FetchedOrders
		summary.PagesFetched = result.PagesFetched
	}

	s.metrics.RecordReconcileRun(trigger, err == nil, duration)

	s.mu.Lock()
	s.lastRun = summary
	s.mu.Unlock()

	return result, err
}

func (s *Scheduler) tryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	s.inFlight = true
	return true
}

func (s *Scheduler) end() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}
