package reminder

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"shift-notify/internal/common/logger"
	"shift-notify/internal/models"
	"shift-notify/internal/notify/dispatch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type memReminders struct {
	mu        sync.Mutex
	reminders map[int64]*models.Reminder
	shifts    map[string][]int64
	shiftErr  map[string]error
	markErr   error
	dueErr    error
}

func newMemReminders(rs ...models.Reminder) *memReminders {
	m := &memReminders{
		reminders: make(map[int64]*models.Reminder),
		shifts:    make(map[string][]int64),
		shiftErr:  make(map[string]error),
	}
	for i := range rs {
		r := rs[i]
		m.reminders[r.ID] = &r
	}
	return m
}

func (m *memReminders) DueReminders(ctx context.Context, now time.Time) ([]models.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reminder
	for _, r := range m.reminders {
		if r.Due(now) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memReminders) ReminderDue(ctx context.Context, id int64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dueErr != nil {
		return false, m.dueErr
	}
	r, ok := m.reminders[id]
	return ok && r.Due(now), nil
}

func (m *memReminders) MarkReminderSent(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return false, m.markErr
	}
	r, ok := m.reminders[id]
	if !ok || r.IsSent {
		return false, nil
	}
	r.IsSent = true
	return true, nil
}

func (m *memReminders) ShiftIDsForWeek(ctx context.Context, weekCode string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.shiftErr[weekCode]; err != nil {
		return nil, err
	}
	return m.shifts[weekCode], nil
}

func (m *memReminders) setMarkErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markErr = err
}

func (m *memReminders) sent(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reminders[id].IsSent
}

type recordingDispatcher struct {
	mu       sync.Mutex
	requests []dispatch.Request
	delay    time.Duration
	err      error
	panics   bool

	// Dispatches for holdWeek signal entered and wait for hold to close.
	holdWeek string
	hold     chan struct{}
	entered  chan struct{}
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, req dispatch.Request) (*dispatch.Run, error) {
	if d.hold != nil && req.WeekCode == d.holdWeek {
		d.entered <- struct{}{}
		<-d.hold
	}
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if d.panics {
		panic("boom")
	}
	d.mu.Lock()
	d.requests = append(d.requests, req)
	d.mu.Unlock()
	return &dispatch.Run{ID: req.RunID, Status: dispatch.RunCompleted}, d.err
}

func (d *recordingDispatcher) calls() []dispatch.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatch.Request(nil), d.requests...)
}

func (d *recordingDispatcher) callsPerWeek() map[string]int {
	out := make(map[string]int)
	for _, c := range d.calls() {
		out[c.WeekCode]++
	}
	return out
}

func newScheduler(t *testing.T, store Store, d Dispatcher) *Scheduler {
	s := New(store, d, time.Second, logger.NewTestLogger(t))
	s.now = func() time.Time { return baseTime }
	return s
}

func TestTick_FiresDueReminderOnce(t *testing.T) {
	store := newMemReminders(models.Reminder{
		ID: 1, WeekCode: "2025-W11", TemplateID: 7,
		SendAt: baseTime.Add(-time.Minute), IsActive: true,
	})
	store.shifts["2025-W11"] = []int64{10, 11}
	d := &recordingDispatcher{}
	s := newScheduler(t, store, d)

	assert.Equal(t, 1, s.Tick(context.Background()))
	assert.Equal(t, 0, s.Tick(context.Background()))
	assert.Equal(t, 0, s.Tick(context.Background()))

	calls := d.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, dispatch.TriggerReminder, calls[0].Trigger)
	assert.Equal(t, int64(7), calls[0].TemplateID)
	assert.Equal(t, []int64{10, 11}, calls[0].ShiftIDs)
	assert.Equal(t, "2025-W11", calls[0].WeekCode)
	assert.Empty(t, calls[0].Channel)
	assert.NotEmpty(t, calls[0].RunID)
	assert.True(t, store.sent(1))
}

func TestTick_SkipsFutureInactiveAndSent(t *testing.T) {
	store := newMemReminders(
		models.Reminder{ID: 1, TemplateID: 1, SendAt: baseTime.Add(time.Minute), IsActive: true},
		models.Reminder{ID: 2, TemplateID: 1, SendAt: baseTime.Add(-time.Minute), IsActive: false},
		models.Reminder{ID: 3, TemplateID: 1, SendAt: baseTime.Add(-time.Minute), IsActive: true, IsSent: true},
	)
	d := &recordingDispatcher{}
	s := newScheduler(t, store, d)

	assert.Equal(t, 0, s.Tick(context.Background()))
	assert.Empty(t, d.calls())
}

func TestTick_WeekWithoutShiftsStillFires(t *testing.T) {
	store := newMemReminders(models.Reminder{
		ID: 4, WeekCode: "2025-W12", TemplateID: 2,
		SendAt: baseTime, IsActive: true,
	})
	d := &recordingDispatcher{}
	s := newScheduler(t, store, d)

	assert.Equal(t, 1, s.Tick(context.Background()))
	calls := d.calls()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].ShiftIDs)
	assert.True(t, store.sent(4))
}

func TestTick_IsolatesPerReminderFailures(t *testing.T) {
	store := newMemReminders(
		models.Reminder{ID: 1, WeekCode: "broken", TemplateID: 1, SendAt: baseTime, IsActive: true},
		models.Reminder{ID: 2, WeekCode: "ok", TemplateID: 1, SendAt: baseTime, IsActive: true},
	)
	store.shiftErr["broken"] = errors.New("connection reset")
	d := &recordingDispatcher{}
	s := newScheduler(t, store, d)

	assert.Equal(t, 1, s.Tick(context.Background()))
	assert.False(t, store.sent(1), "unfired reminder must stay pending for the next tick")
	assert.True(t, store.sent(2))

	delete(store.shiftErr, "broken")
	assert.Equal(t, 1, s.Tick(context.Background()))
	assert.True(t, store.sent(1))
	assert.Len(t, d.calls(), 2)
}

func TestTick_DispatchErrorStillMarksSent(t *testing.T) {
	store := newMemReminders(models.Reminder{ID: 5, TemplateID: 99, SendAt: baseTime, IsActive: true})
	d := &recordingDispatcher{err: errors.New("template not found")}
	s := newScheduler(t, store, d)

	assert.Equal(t, 1, s.Tick(context.Background()))
	assert.True(t, store.sent(5))
	assert.Equal(t, 0, s.Tick(context.Background()))
}

func TestTick_RecoversDispatchPanic(t *testing.T) {
	store := newMemReminders(models.Reminder{ID: 6, TemplateID: 1, SendAt: baseTime, IsActive: true})
	d := &recordingDispatcher{panics: true}
	s := newScheduler(t, store, d)

	assert.NotPanics(t, func() { s.Tick(context.Background()) })
	assert.True(t, store.sent(6))
}

func TestTick_MarkFailureRetriesMarkWithoutRedispatch(t *testing.T) {
	store := newMemReminders(models.Reminder{ID: 7, TemplateID: 1, SendAt: baseTime, IsActive: true})
	store.markErr = errors.New("deadlock detected")
	d := &recordingDispatcher{}
	s := newScheduler(t, store, d)

	assert.Equal(t, 1, s.Tick(context.Background()))
	assert.False(t, store.sent(7))

	assert.Equal(t, 0, s.Tick(context.Background()), "reminder still due but already dispatched")
	assert.False(t, store.sent(7))

	store.setMarkErr(nil)
	assert.Equal(t, 0, s.Tick(context.Background()))
	assert.True(t, store.sent(7))
	assert.Equal(t, 0, s.Tick(context.Background()))

	assert.Len(t, d.calls(), 1)
}

func TestTick_RecheckFailureLeavesReminderPending(t *testing.T) {
	store := newMemReminders(models.Reminder{ID: 12, TemplateID: 1, SendAt: baseTime, IsActive: true})
	store.dueErr = errors.New("connection reset")
	d := &recordingDispatcher{}
	s := newScheduler(t, store, d)

	assert.Equal(t, 0, s.Tick(context.Background()))
	assert.Empty(t, d.calls())
	assert.False(t, store.sent(12))

	store.mu.Lock()
	store.dueErr = nil
	store.mu.Unlock()

	assert.Equal(t, 1, s.Tick(context.Background()))
	assert.Len(t, d.calls(), 1)
	assert.True(t, store.sent(12))
}

func TestTick_StaleDueListDoesNotRefire(t *testing.T) {
	store := newMemReminders(
		models.Reminder{ID: 1, WeekCode: "slow", TemplateID: 1, SendAt: baseTime, IsActive: true},
		models.Reminder{ID: 2, WeekCode: "fast", TemplateID: 1, SendAt: baseTime, IsActive: true},
	)
	d := &recordingDispatcher{
		holdWeek: "slow",
		hold:     make(chan struct{}),
		entered:  make(chan struct{}, 1),
	}
	s := newScheduler(t, store, d)

	first := make(chan int, 1)
	go func() { first <- s.Tick(context.Background()) }()

	select {
	case <-d.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first tick never reached the held dispatch")
	}

	// The first tick still holds reminder 2 in its due list.
	assert.Equal(t, 1, s.Tick(context.Background()))
	assert.True(t, store.sent(2))
	assert.Equal(t, 0, s.Tick(context.Background()))

	close(d.hold)
	select {
	case fired := <-first:
		assert.Equal(t, 1, fired)
	case <-time.After(2 * time.Second):
		t.Fatal("first tick did not finish")
	}

	assert.Equal(t, map[string]int{"slow": 1, "fast": 1}, d.callsPerWeek())
	assert.True(t, store.sent(1))
}

func TestTick_OverlappingTicksFireOnce(t *testing.T) {
	store := newMemReminders(models.Reminder{ID: 8, TemplateID: 1, SendAt: baseTime, IsActive: true})
	d := &recordingDispatcher{delay: 50 * time.Millisecond}
	s := newScheduler(t, store, d)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Tick(context.Background())
		}()
	}
	wg.Wait()
	s.Tick(context.Background())

	assert.Len(t, d.calls(), 1)
	assert.True(t, store.sent(8))
}

func TestStartStop(t *testing.T) {
	store := newMemReminders(models.Reminder{ID: 9, TemplateID: 1, SendAt: baseTime, IsActive: true})
	d := &recordingDispatcher{}
	s := newScheduler(t, store, d)

	s.Start(context.Background())
	require.Eventually(t, func() bool { return store.sent(9) }, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.Len(t, d.calls(), 1)
}
