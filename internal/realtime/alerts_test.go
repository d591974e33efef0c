package realtime

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertTracker_FiresOnce(t *testing.T) {
	var mu sync.Mutex
	var fired []string

	tracker := NewAlertTracker(func(id string) {
		mu.Lock()
		fired = append(fired, id)
		mu.Unlock()
	})
	defer tracker.Stop()

	tracker.Arm("b-1", time.Now().Add(20*time.Millisecond))
	deadline, ok := tracker.Active("b-1")
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(20*time.Millisecond), deadline, 15*time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fired) == 1
	}, time.Second, 5*time.Millisecond)

	_, ok = tracker.Active("b-1")
	assert.False(t, ok)
	assert.Equal(t, 0, tracker.Len())

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"b-1"}, fired)
	mu.Unlock()
}

func TestAlertTracker_Disarm(t *testing.T) {
	var calls atomic.Int32
	tracker := NewAlertTracker(func(string) { calls.Add(1) })
	defer tracker.Stop()

	tracker.Arm("b-1", time.Now().Add(30*time.Millisecond))
	assert.True(t, tracker.Disarm("b-1"))
	assert.False(t, tracker.Disarm("b-1"))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestAlertTracker_RearmReplacesDeadline(t *testing.T) {
	var calls atomic.Int32
	tracker := NewAlertTracker(func(string) { calls.Add(1) })
	defer tracker.Stop()

	tracker.Arm("b-1", time.Now().Add(20*time.Millisecond))
	later := time.Now().Add(time.Hour)
	tracker.Arm("b-1", later)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	deadline, ok := tracker.Active("b-1")
	require.True(t, ok)
	assert.Equal(t, later, deadline)
}

func TestAlertTracker_PastDeadlineFiresImmediately(t *testing.T) {
	done := make(chan string, 1)
	tracker := NewAlertTracker(func(id string) { done <- id })
	defer tracker.Stop()

	tracker.Arm("b-late", time.Now().Add(-time.Second))

	select {
	case id := <-done:
		assert.Equal(t, "b-late", id)
	case <-time.After(time.Second):
		t.Fatal("expired alert did not fire")
	}
}

func TestAlertTracker_Stop(t *testing.T) {
	var calls atomic.Int32
	tracker := NewAlertTracker(func(string) { calls.Add(1) })

	for _, id := range []string{"b-1", "b-2", "b-3"} {
		tracker.Arm(id, time.Now().Add(50*time.Millisecond))
	}
	assert.Equal(t, 3, tracker.Len())

	tracker.Stop()
	assert.Equal(t, 0, tracker.Len())

	tracker.Arm("b-4", time.Now())
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}
