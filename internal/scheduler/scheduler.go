// Package scheduler fires the digest pipeline once a day at a configurable
// local time, with pause/resume and manual triggering.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kalambet/ytdigest/internal/pipeline"
	"github.com/kalambet/ytdigest/internal/storage"
)

// ErrRunInProgress is returned when a trigger arrives while a run is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// Runner is the work the scheduler triggers.
type Runner interface {
	Run(ctx context.Context) pipeline.Report
}

// Scheduler owns the daily timer. Trigger time and paused state live in
// storage and survive restarts; changes take effect at the next tick
// computation.
type Scheduler struct {
	store  *storage.Store
	runner Runner
	logger *slog.Logger
	now    func() time.Time

	// runMu is held for the duration of a run. TryLock makes concurrent
	// triggers fail fast instead of queueing.
	runMu sync.Mutex

	// wake interrupts the wait loop after a schedule change.
	wake chan struct{}
}

func New(store *storage.Store, runner Runner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:  store,
		runner: runner,
		logger: logger,
		now:    time.Now,
		wake:   make(chan struct{}, 1),
	}
}

// Start blocks until ctx is canceled, firing a run at each scheduled time.
func (s *Scheduler) Start(ctx context.Context) error {
	for {
		state, err := s.store.GetScheduleState()
		if err != nil {
			return err
		}
		now := s.now()
		next := nextFire(now, state.TriggerHour, state.TriggerMinute)
		s.logger.Info("next scheduled run", "at", next, "paused", state.Paused)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-s.wake:
			timer.Stop()
			continue
		case <-timer.C:
		}

		// Re-read: the schedule may have been paused while waiting.
		state, err = s.store.GetScheduleState()
		if err != nil {
			return err
		}
		if state.Paused {
			s.logger.Info("scheduled run skipped, schedule is paused")
			continue
		}

		if err := s.trigger(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
			s.logger.Error("scheduled run failed", "error", err)
		}
	}
}

// RunNow triggers a run immediately, regardless of the paused state.
func (s *Scheduler) RunNow(ctx context.Context) (pipeline.Report, error) {
	if !s.runMu.TryLock() {
		return pipeline.Report{}, ErrRunInProgress
	}
	defer s.runMu.Unlock()
	return s.run(ctx), nil
}

func (s *Scheduler) trigger(ctx context.Context) error {
	if !s.runMu.TryLock() {
		return ErrRunInProgress
	}
	defer s.runMu.Unlock()
	s.run(ctx)
	return nil
}

func (s *Scheduler) run(ctx context.Context) pipeline.Report {
	report := s.runner.Run(ctx)
	if err := s.store.RecordRun(report.StartedAt, report.String()); err != nil {
		s.logger.Error("recording run outcome failed", "error", err)
	}
	return report
}

// Pause suppresses scheduled runs until Resume. Manual runs stay available.
func (s *Scheduler) Pause() error {
	if err := s.store.SetPaused(true); err != nil {
		return err
	}
	s.poke()
	return nil
}

func (s *Scheduler) Resume() error {
	if err := s.store.SetPaused(false); err != nil {
		return err
	}
	s.poke()
	return nil
}

// SetTime changes the daily trigger time. The running wait loop recomputes
// its timer right away.
func (s *Scheduler) SetTime(hour, minute int) error {
	if err := s.store.SetTriggerTime(hour, minute); err != nil {
		return err
	}
	s.poke()
	return nil
}

// Status reports the persisted schedule plus the computed next fire time.
func (s *Scheduler) Status() (storage.ScheduleState, time.Time, error) {
	state, err := s.store.GetScheduleState()
	if err != nil {
		return storage.ScheduleState{}, time.Time{}, err
	}
	return state, nextFire(s.now(), state.TriggerHour, state.TriggerMinute), nil
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// nextFire returns the next occurrence of hour:minute strictly after now.
func nextFire(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
