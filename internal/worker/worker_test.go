package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/events"
	"github.com/cuongbtq/homeserve-be/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type settlement struct {
	tag     uint64
	ack     bool
	requeue bool
}

// recordingAcknowledger captures how each delivery was settled
type recordingAcknowledger struct {
	mu      sync.Mutex
	settled []settlement
}

func (a *recordingAcknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settled = append(a.settled, settlement{tag: tag, ack: true})
	return nil
}

func (a *recordingAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settled = append(a.settled, settlement{tag: tag, requeue: requeue})
	return nil
}

func (a *recordingAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *recordingAcknowledger) byTag() map[uint64]settlement {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[uint64]settlement, len(a.settled))
	for _, s := range a.settled {
		out[s.tag] = s
	}
	return out
}

type fakeConsumer struct {
	deliveries chan amqp.Delivery
}

func (c *fakeConsumer) Consume(string) (<-chan amqp.Delivery, error) {
	return c.deliveries, nil
}

type fakeStore struct {
	mu         sync.Mutex
	vendors    map[string][]string
	inserted   map[string][]string // event id -> recipients
	insertErr  error
	expired    []domain.ExpiredBooking
	expireErr  error
	expireSeen time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{vendors: make(map[string][]string), inserted: make(map[string][]string)}
}

func (s *fakeStore) ActiveVendorIDs(_ context.Context, category string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vendors[category], nil
}

func (s *fakeStore) InsertNotifications(_ context.Context, ev *events.Event, recipients []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	s.inserted[ev.ID] = recipients
	return int64(len(recipients)), nil
}

func (s *fakeStore) ExpireOverdueBookings(_ context.Context, now time.Time, _ int) ([]domain.ExpiredBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireSeen = now
	out := s.expired
	s.expired = nil
	return out, s.expireErr
}

func (s *fakeStore) recipients(eventID string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.inserted[eventID]
	return r, ok
}

type fakePublisher struct {
	mu     sync.Mutex
	bodies [][]byte
	keys   []string
}

func (p *fakePublisher) PublishWithRetry(_ context.Context, routingKey, _ string, body []byte, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	p.bodies = append(p.bodies, body)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestWorker(store Store, consumer Consumer, publisher Publisher) *Worker {
	return NewWorker(&Config{
		Logger:       testLogger(),
		Store:        store,
		Consumer:     consumer,
		Publisher:    publisher,
		WorkerID:     "worker-test",
		QueueName:    "marketplace.notifications",
		Concurrency:  3,
		EventTimeout: time.Second,
	})
}

func mustEvent(t *testing.T, eventType, actor string) *events.Event {
	t.Helper()
	ev, err := events.New(eventType, actor, "title", "message", map[string]string{"k": "v"})
	require.NoError(t, err)
	return ev
}

func delivery(t *testing.T, ack amqp.Acknowledger, tag uint64, ev any, redelivered bool) amqp.Delivery {
	t.Helper()
	var body []byte
	switch v := ev.(type) {
	case []byte:
		body = v
	default:
		var err error
		body, err = json.Marshal(v)
		require.NoError(t, err)
	}
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  tag,
		Body:         body,
		Redelivered:  redelivered,
	}
}

func TestWorker_ConsumesEvents(t *testing.T) {
	store := newFakeStore()
	store.vendors["plumbing"] = []string{"v-1", "v-2", "u-actor"}

	consumer := &fakeConsumer{deliveries: make(chan amqp.Delivery)}
	ack := &recordingAcknowledger{}
	w := newTestWorker(store, consumer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	direct := mustEvent(t, events.BookingAccepted, "v-1").To("u-1", "v-1")
	broadcast := mustEvent(t, events.BookingCreated, "u-actor").ToCategory("plumbing")

	consumer.deliveries <- delivery(t, ack, 1, direct, false)
	consumer.deliveries <- delivery(t, ack, 2, broadcast, false)
	consumer.deliveries <- delivery(t, ack, 3, []byte("{not json"), false)
	consumer.deliveries <- delivery(t, ack, 4, map[string]string{"type": "booking.created"}, false)

	require.Eventually(t, func() bool { return len(ack.byTag()) == 4 }, 2*time.Second, 10*time.Millisecond)

	settled := ack.byTag()
	assert.True(t, settled[1].ack)
	assert.True(t, settled[2].ack)
	assert.Equal(t, settlement{tag: 3}, settled[3], "malformed is dead-lettered")
	assert.Equal(t, settlement{tag: 4}, settled[4], "missing id is dead-lettered")

	got, ok := store.recipients(direct.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"u-1"}, got, "actor is not notified")

	got, ok = store.recipients(broadcast.ID)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"v-1", "v-2"}, got)

	cancel()
	require.NoError(t, <-done)
}

func TestWorker_RetriesTransientFailuresOnce(t *testing.T) {
	store := newFakeStore()
	store.insertErr = errors.New("connection reset by peer")

	consumer := &fakeConsumer{deliveries: make(chan amqp.Delivery)}
	ack := &recordingAcknowledger{}
	w := newTestWorker(store, consumer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	ev := mustEvent(t, events.WalletCredited, "").To("u-1")
	consumer.deliveries <- delivery(t, ack, 1, ev, false)
	consumer.deliveries <- delivery(t, ack, 2, ev, true)

	require.Eventually(t, func() bool { return len(ack.byTag()) == 2 }, 2*time.Second, 10*time.Millisecond)

	settled := ack.byTag()
	assert.Equal(t, settlement{tag: 1, requeue: true}, settled[1])
	assert.Equal(t, settlement{tag: 2, requeue: false}, settled[2])

	cancel()
	require.NoError(t, <-done)
}

func TestWorker_StopsWhenBrokerClosesChannel(t *testing.T) {
	consumer := &fakeConsumer{deliveries: make(chan amqp.Delivery)}
	w := newTestWorker(newFakeStore(), consumer, nil)

	done := make(chan error, 1)
	go func() { done <- w.Start(context.Background()) }()

	close(consumer.deliveries)

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestShouldRequeue(t *testing.T) {
	retryable := domain.Transient("store notifications", errors.New("timeout"))

	tests := []struct {
		name        string
		err         error
		redelivered bool
		want        bool
	}{
		{"retryable first attempt", retryable, false, true},
		{"retryable redelivered", retryable, true, false},
		{"invalid event", domain.ErrInvalidEvent, false, false},
		{"wrapped transient", fmt.Errorf("handle: %w", retryable), false, true},
		{"unknown error", errors.New("boom"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldRequeue(tt.err, tt.redelivered))
		})
	}
}

func TestWorker_Sweep(t *testing.T) {
	store := newFakeStore()
	store.expired = []domain.ExpiredBooking{
		{ID: "b-1", UserID: "u-1", Category: "cleaning", Amount: 3000},
		{ID: "b-2", UserID: "u-2", Category: "painting", Amount: 9000},
	}
	publisher := &fakePublisher{}

	w := newTestWorker(store, nil, publisher)
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	n, err := w.sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, fixed, store.expireSeen)

	require.Len(t, publisher.bodies, 2)
	assert.Equal(t, []string{events.BookingExpired, events.BookingExpired}, publisher.keys)

	ev, err := events.Decode(publisher.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"u-1"}, ev.Recipients)
	assert.JSONEq(t, `{"booking_id":"b-1","category":"cleaning","status":"expired","amount":3000}`, string(ev.Data))

	store.expireErr = errors.New("db down")
	_, err = w.sweep(context.Background())
	assert.Error(t, err)
}

// blockingStore holds every insert until release is closed
type blockingStore struct {
	*fakeStore
	release chan struct{}

	mu      sync.Mutex
	entered int
}

func (s *blockingStore) InsertNotifications(ctx context.Context, ev *events.Event, recipients []string) (int64, error) {
	s.mu.Lock()
	s.entered++
	s.mu.Unlock()
	<-s.release
	return s.fakeStore.InsertNotifications(ctx, ev, recipients)
}

func (s *blockingStore) inFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entered
}

func TestWorker_RequeuesBufferedEventsOnShutdown(t *testing.T) {
	store := &blockingStore{fakeStore: newFakeStore(), release: make(chan struct{})}
	consumer := &fakeConsumer{deliveries: make(chan amqp.Delivery)}
	ack := &recordingAcknowledger{}
	w := newTestWorker(store, consumer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	sent := make([]*events.Event, 6)
	for i := range sent {
		sent[i] = mustEvent(t, events.WalletCredited, "").To("u-1")
		consumer.deliveries <- delivery(t, ack, uint64(i+1), sent[i], false)
	}

	// three workers are stuck in the store and three events wait in the buffer
	require.Eventually(t, func() bool {
		return store.inFlight() == 3 && len(w.eventsChan) == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	close(store.release)
	require.NoError(t, <-done)

	settled := ack.byTag()
	require.Len(t, settled, 6)

	var acked, requeued int
	for tag, s := range settled {
		switch {
		case s.ack:
			acked++
			_, ok := store.recipients(sent[tag-1].ID)
			assert.True(t, ok, "acked event %d was stored", tag)
		case s.requeue:
			requeued++
			_, ok := store.recipients(sent[tag-1].ID)
			assert.False(t, ok, "requeued event %d was not stored", tag)
		}
	}
	assert.Equal(t, 3, acked)
	assert.Equal(t, 3, requeued)
	assert.Zero(t, len(w.eventsChan))
}
