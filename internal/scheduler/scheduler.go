// Package scheduler runs the daily lending and reminder sweeps in the
// background.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/kimhsiao/homeinv/backend/internal/errors"
	"github.com/kimhsiao/homeinv/backend/internal/logging"
	"github.com/kimhsiao/homeinv/backend/internal/models"
	"github.com/kimhsiao/homeinv/backend/internal/notify"
	"github.com/kimhsiao/homeinv/backend/internal/telemetry"
)

// LendingSweeper advances overdue lendings.
type LendingSweeper interface {
	SweepOverdue(ctx context.Context, day models.Date) ([]*models.LendingRecord, error)
}

// ReminderSweeper moves due reminders to sent.
type ReminderSweeper interface {
	ProcessExpired(ctx context.Context, day models.Date) ([]*models.Reminder, error)
}

// Config holds scheduler configuration.
type Config struct {
	Interval   time.Duration // default: 24 hours
	RunOnStart bool
	Timeout    time.Duration // per run; default: 5 minutes
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		Interval:   24 * time.Hour,
		RunOnStart: true,
		Timeout:    5 * time.Minute,
	}
}

// RunResult summarizes one sweep run.
type RunResult struct {
	Day           models.Date   `json:"day"`
	Overdue       int           `json:"overdue"`
	RemindersSent int           `json:"reminders_sent"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration_ns"`
	Error         string        `json:"error,omitempty"`
}

// Status is a snapshot of the scheduler state.
type Status struct {
	IsRunning     bool          `json:"is_running"`
	RunInProgress bool          `json:"run_in_progress"`
	Interval      time.Duration `json:"interval_ns"`
	Runs          int           `json:"runs"`
	LastRun       *RunResult    `json:"last_run,omitempty"`
}

// Scheduler runs both sweeps once per interval.
type Scheduler struct {
	lendings  LendingSweeper
	reminders ReminderSweeper
	notifier  notify.Notifier
	now       func() time.Time

	interval   time.Duration
	runOnStart bool
	timeout    time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu            sync.RWMutex
	isRunning     bool
	runInProgress bool
	runs          int
	lastRun       *RunResult
}

// New creates a Scheduler. A nil notifier discards events.
func New(lendings LendingSweeper, reminders ReminderSweeper, notifier notify.Notifier, config *Config) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	defaults := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &Scheduler{
		lendings:   lendings,
		reminders:  reminders,
		notifier:   notifier,
		now:        time.Now,
		interval:   config.Interval,
		runOnStart: config.RunOnStart,
		timeout:    config.Timeout,
	}
}

// WithClock replaces the clock that decides the sweep day.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Start starts the background loop. Calling Start on a running scheduler
// does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(ctx, stopCh)

	logging.Info("sweep scheduler started", map[string]interface{}{
		"interval": s.interval.String(),
	})
}

// Stop stops the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	logging.Info("sweep scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	if s.runOnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunNow(ctx); err != nil && apperrors.Is(err, apperrors.ErrConflict) {
		logging.Debug("sweep already in progress, skipping")
	}
}

// RunNow runs both sweeps for today and waits for them. It returns a
// Conflict error when another run is in progress.
func (s *Scheduler) RunNow(ctx context.Context) (*RunResult, error) {
	s.mu.Lock()
	if s.runInProgress {
		s.mu.Unlock()
		return nil, apperrors.Conflict("sweep already in progress")
	}
	s.runInProgress = true
	s.mu.Unlock()

	result, err := s.run(ctx)

	s.mu.Lock()
	s.runInProgress = false
	s.runs++
	s.lastRun = result
	s.mu.Unlock()
	return result, err
}

// run executes the lending sweep then the reminder sweep. A failing sweep
// does not prevent the other one.
func (s *Scheduler) run(ctx context.Context) (*RunResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := s.now()
	result := &RunResult{Day: models.DateOf(started), StartedAt: started}
	timer := time.Now()

	var errs []error
	overdue, err := s.lendings.SweepOverdue(runCtx, result.Day)
	if err != nil {
		errs = append(errs, err)
		s.fail("lendings", result.Day, err)
	}
	result.Overdue = len(overdue)
	for _, rec := range overdue {
		s.notifier.Publish(rec.OwnerID, notify.EventLendingOverdue, map[string]interface{}{
			"lending_id":           rec.ID,
			"item_id":              rec.ItemID,
			"borrower":             rec.Borrower,
			"expected_return_date": rec.ExpectedReturnDate.String(),
		})
	}

	sent, err := s.reminders.ProcessExpired(runCtx, result.Day)
	if err != nil {
		errs = append(errs, err)
		s.fail("reminders", result.Day, err)
	}
	result.RemindersSent = len(sent)
	for _, rem := range sent {
		s.notifier.Publish(rem.OwnerID, notify.EventReminderSent, map[string]interface{}{
			"reminder_id": rem.ID,
			"item_id":     rem.ItemID,
			"type":        string(rem.Type),
			"title":       rem.Title,
			"remind_date": rem.RemindDate.String(),
		})
	}

	result.Duration = time.Since(timer)
	telemetry.RecordCount("scheduler.runs", 1, nil)
	telemetry.RecordCount("scheduler.lendings_overdue", result.Overdue, nil)
	telemetry.RecordCount("scheduler.reminders_sent", result.RemindersSent, nil)
	telemetry.RecordTiming("scheduler.run", result.Duration, nil)

	joined := errors.Join(errs...)
	if joined != nil {
		result.Error = joined.Error()
		telemetry.RecordCount("scheduler.failures", 1, nil)
		return result, apperrors.Wrap(apperrors.ErrSweepFailed, "sweep run failed", joined)
	}

	logging.Info("sweep run completed", map[string]interface{}{
		"day":            result.Day.String(),
		"overdue":        result.Overdue,
		"reminders_sent": result.RemindersSent,
		"duration_ms":    result.Duration.Milliseconds(),
	})
	return result, nil
}

func (s *Scheduler) fail(sweep string, day models.Date, err error) {
	logging.ErrorWithCode("sweep failed", string(apperrors.ErrSweepFailed), err, map[string]interface{}{
		"sweep": sweep,
		"day":   day.String(),
	})
}

// Status returns the current state of the scheduler.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		IsRunning:     s.isRunning,
		RunInProgress: s.runInProgress,
		Interval:      s.interval,
		Runs:          s.runs,
	}
	if s.lastRun != nil {
		last := *s.lastRun
		status.LastRun = &last
	}
	return status
}

// IsRunning returns whether the background loop is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
