// Package reminder fires scheduled reminders once their send time has passed.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shift-notify/internal/common/logger"
	"shift-notify/internal/common/metrics"
	"shift-notify/internal/models"
	"shift-notify/internal/notify/dispatch"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

type Store interface {
	DueReminders(ctx context.Context, now time.Time) ([]models.Reminder, error)
	ReminderDue(ctx context.Context, id int64, now time.Time) (bool, error)
	MarkReminderSent(ctx context.Context, id int64) (bool, error)
	ShiftIDsForWeek(ctx context.Context, weekCode string) ([]int64, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (*dispatch.Run, error)
}

// Scheduler scans for due reminders on a fixed interval. Ticks may overlap.
// A reminder is claimed in process, re-read from the store and only then
// dispatched, so a tick working through a stale due list never fires a
// reminder another tick already sent. Once dispatched, a reminder is never
// dispatched again by this process; a failed mark is retried on its own.
type Scheduler struct {
	store      Store
	dispatcher Dispatcher
	interval   time.Duration
	logger     logger.Logger
	now        func() time.Time

	mu       sync.Mutex
	claimed  map[int64]bool
	inFlight map[int64]bool
	unmarked map[int64]bool

	cron   *cron.Cron
	cancel context.CancelFunc
}

func New(store Store, dispatcher Dispatcher, interval time.Duration, log logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		interval:   interval,
		logger:     log,
		now:        time.Now,
		claimed:    make(map[int64]bool),
		inFlight:   make(map[int64]bool),
		unmarked:   make(map[int64]bool),
	}
}

// Start schedules Tick every interval until Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.cron = cron.New()
	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.Tick(ctx)
	}))
	s.cron.Start()

	s.logger.Info("Reminder scheduler started", map[string]interface{}{
		"interval": s.interval.String(),
	})
}

// Stop prevents new ticks and waits for running ones until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Reminder scheduler stopped before running ticks finished", nil)
	}
	s.cancel()
	s.logger.Info("Reminder scheduler stopped", nil)
}

// Tick processes every due reminder once and returns how many fired.
// Errors are logged per reminder and never stop the remaining ones.
func (s *Scheduler) Tick(ctx context.Context) int {
	s.retryMarks(ctx)

	now := s.now()
	due, err := s.store.DueReminders(ctx, now)
	if err != nil {
		s.logger.Error("Failed to load due reminders", map[string]interface{}{
			"error": err.Error(),
		})
		return 0
	}
	s.pruneClaims(due)

	fired := 0
	for _, r := range due {
		if !r.Due(now) {
			continue
		}
		if s.fire(ctx, r, now) {
			fired++
		}
	}
	if len(due) > 0 {
		s.logger.Info("Reminder tick finished", map[string]interface{}{
			"due":   len(due),
			"fired": fired,
		})
	}
	return fired
}

type dispatchResult struct {
	run *dispatch.Run
	err error
}

func (s *Scheduler) fire(ctx context.Context, r models.Reminder, now time.Time) (fired bool) {
	log := s.logger.WithFields(map[string]interface{}{
		"reminderId": r.ID,
		"weekCode":   r.WeekCode,
		"templateId": r.TemplateID,
	})

	if !s.claim(r.ID) {
		log.Debug("Reminder already claimed by an earlier tick", nil)
		return false
	}
	defer s.settle(r.ID)

	started := false
	defer func() {
		if rec := recover(); rec != nil {
			if started {
				s.deferMark(r.ID)
			} else {
				s.release(r.ID)
			}
			metrics.RemindersProcessed.WithLabelValues("panic").Inc()
			log.Error("Reminder processing panicked", map[string]interface{}{"panic": fmt.Sprint(rec)})
			fired = false
		}
	}()

	stillDue, err := s.store.ReminderDue(ctx, r.ID, now)
	if err != nil {
		s.release(r.ID)
		metrics.RemindersProcessed.WithLabelValues("failed").Inc()
		log.Error("Failed to re-check reminder", map[string]interface{}{"error": err.Error()})
		return false
	}
	if !stillDue {
		log.Debug("Reminder no longer due", nil)
		return false
	}

	shiftIDs, err := s.store.ShiftIDsForWeek(ctx, r.WeekCode)
	if err != nil {
		s.release(r.ID)
		metrics.RemindersProcessed.WithLabelValues("failed").Inc()
		log.Error("Failed to load shifts for reminder", map[string]interface{}{"error": err.Error()})
		return false
	}

	runID := uuid.NewString()
	done := make(chan dispatchResult, 1)
	started = true
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- dispatchResult{err: fmt.Errorf("dispatch panicked: %v", rec)}
			}
		}()
		run, err := s.dispatcher.Dispatch(ctx, dispatch.Request{
			RunID:      runID,
			Trigger:    dispatch.TriggerReminder,
			TemplateID: r.TemplateID,
			ShiftIDs:   shiftIDs,
			WeekCode:   r.WeekCode,
		})
		done <- dispatchResult{run: run, err: err}
	}()

	marked, err := s.store.MarkReminderSent(ctx, r.ID)
	switch {
	case err != nil:
		s.deferMark(r.ID)
		log.Error("Failed to mark reminder as sent, retrying the mark on the next tick", map[string]interface{}{
			"runId": runID,
			"error": err.Error(),
		})
	case !marked:
		log.Warn("Reminder was already marked as sent", map[string]interface{}{"runId": runID})
	}

	res := <-done
	fields := map[string]interface{}{"runId": runID, "shiftIds": len(shiftIDs)}
	if res.run != nil {
		fields["status"] = string(res.run.Status)
		fields["recipients"] = res.run.Counters.Recipients
	}
	if res.err != nil {
		fields["error"] = res.err.Error()
		metrics.RemindersProcessed.WithLabelValues("dispatch_failed").Inc()
		log.Error("Reminder dispatch failed", fields)
		return true
	}

	metrics.RemindersProcessed.WithLabelValues("fired").Inc()
	log.Info("Reminder fired", fields)
	return true
}

// retryMarks flips is_sent for reminders that were dispatched but whose
// mark failed. Their claims are held until the mark lands.
func (s *Scheduler) retryMarks(ctx context.Context) {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.unmarked))
	for id := range s.unmarked {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if _, err := s.store.MarkReminderSent(ctx, id); err != nil {
			s.logger.Warn("Retrying reminder mark failed", map[string]interface{}{
				"reminderId": id,
				"error":      err.Error(),
			})
			continue
		}
		s.mu.Lock()
		delete(s.unmarked, id)
		s.mu.Unlock()
		s.logger.Info("Reminder marked as sent on retry", map[string]interface{}{"reminderId": id})
	}
}

func (s *Scheduler) claim(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed[id] {
		return false
	}
	s.claimed[id] = true
	s.inFlight[id] = true
	return true
}

func (s *Scheduler) settle(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

func (s *Scheduler) release(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claimed, id)
}

func (s *Scheduler) deferMark(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unmarked[id] = true
}

// pruneClaims forgets settled, marked ids the store no longer reports as due.
func (s *Scheduler) pruneClaims(due []models.Reminder) {
	current := make(map[int64]bool, len(due))
	for _, r := range due {
		current[r.ID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.claimed {
		if !current[id] && !s.inFlight[id] && !s.unmarked[id] {
			delete(s.claimed, id)
		}
	}
}
