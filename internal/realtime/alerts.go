package realtime

import (
	"sync"
	"time"
)

// AlertTracker runs one countdown per open booking alert. When a countdown
// reaches its deadline without being disarmed, onExpire is called exactly once
// with the booking id, on its own goroutine.
type AlertTracker struct {
	onExpire func(bookingID string)
	now      func() time.Time

	mu      sync.Mutex
	timers  map[string]*alertTimer
	stopped bool
	wg      sync.WaitGroup
}

type alertTimer struct {
	timer    *time.Timer
	deadline time.Time
}

func NewAlertTracker(onExpire func(bookingID string)) *AlertTracker {
	return &AlertTracker{
		onExpire: onExpire,
		now:      time.Now,
		timers:   make(map[string]*alertTimer),
	}
}

// Arm starts (or restarts) the countdown for bookingID. A deadline in the past
// fires immediately.
func (t *AlertTracker) Arm(bookingID string, deadline time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	if existing, ok := t.timers[bookingID]; ok {
		if existing.timer.Stop() {
			t.wg.Done()
		}
		delete(t.timers, bookingID)
	}

	entry := &alertTimer{deadline: deadline}
	t.wg.Add(1)
	entry.timer = time.AfterFunc(deadline.Sub(t.now()), func() {
		defer t.wg.Done()
		t.fire(bookingID, entry)
	})
	t.timers[bookingID] = entry
}

func (t *AlertTracker) fire(bookingID string, entry *alertTimer) {
	t.mu.Lock()
	current, ok := t.timers[bookingID]
	if !ok || current != entry || t.stopped {
		t.mu.Unlock()
		return
	}
	delete(t.timers, bookingID)
	t.mu.Unlock()

	t.onExpire(bookingID)
}

// Disarm cancels the countdown; it reports whether one was running
func (t *AlertTracker) Disarm(bookingID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.timers[bookingID]
	if !ok {
		return false
	}
	if entry.timer.Stop() {
		t.wg.Done()
	}
	delete(t.timers, bookingID)
	return true
}

// Active returns the deadline of a running countdown
func (t *AlertTracker) Active(bookingID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.timers[bookingID]
	if !ok {
		return time.Time{}, false
	}
	return entry.deadline, true
}

// Len returns the number of running countdowns
func (t *AlertTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// Stop cancels every countdown and waits for expiry callbacks already running
func (t *AlertTracker) Stop() {
	t.mu.Lock()
	t.stopped = true
	for id, entry := range t.timers {
		if entry.timer.Stop() {
			t.wg.Done()
		}
		delete(t.timers, id)
	}
	t.mu.Unlock()

	t.wg.Wait()
}
