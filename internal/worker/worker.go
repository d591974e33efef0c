package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/events"
	"github.com/cuongbtq/homeserve-be/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer is the broker side the worker reads from
type Consumer interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Publisher is used by the sweeper to emit booking.expired events
type Publisher interface {
	PublishWithRetry(ctx context.Context, routingKey, messageID string, body []byte, contentType string) error
}

// Store is the worker's database surface
type Store interface {
	ActiveVendorIDs(ctx context.Context, category string) ([]string, error)
	InsertNotifications(ctx context.Context, ev *events.Event, recipients []string) (int64, error)
	ExpireOverdueBookings(ctx context.Context, now time.Time, limit int) ([]domain.ExpiredBooking, error)
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Store         Store
	Consumer      Consumer
	Publisher     Publisher
	WorkerID      string
	QueueName     string
	Concurrency   int
	EventTimeout  time.Duration
	SweepInterval time.Duration
	SweepBatch    int
}

// Worker consumes domain events into the notification inbox and sweeps
// booking alerts nobody accepted in time
type Worker struct {
	logger        *slog.Logger
	storage       Store
	consumer      Consumer
	publisher     Publisher
	workerID      string
	queueName     string
	concurrency   int
	eventTimeout  time.Duration
	sweepInterval time.Duration
	sweepBatch    int
	now           func() time.Time

	eventsChan chan *domain.EventMessage
	wg         sync.WaitGroup
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	w := &Worker{
		logger:        cfg.Logger,
		storage:       cfg.Store,
		consumer:      cfg.Consumer,
		publisher:     cfg.Publisher,
		workerID:      cfg.WorkerID,
		queueName:     cfg.QueueName,
		concurrency:   cfg.Concurrency,
		eventTimeout:  cfg.EventTimeout,
		sweepInterval: cfg.SweepInterval,
		sweepBatch:    cfg.SweepBatch,
		now:           time.Now,
	}

	if w.concurrency <= 0 {
		w.concurrency = 1
	}
	if w.eventTimeout <= 0 {
		w.eventTimeout = 10 * time.Second
	}
	if w.sweepBatch <= 0 {
		w.sweepBatch = 100
	}
	w.eventsChan = make(chan *domain.EventMessage, w.concurrency)

	return w
}

// Start consumes until ctx is canceled or the broker closes the delivery
// channel, then waits for in-flight events to finish
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("event_timeout", w.eventTimeout),
		slog.Duration("sweep_interval", w.sweepInterval),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.spawnWorkerPool(ctx)

	if w.sweepInterval > 0 && w.publisher != nil {
		w.wg.Add(1)
		go w.runSweeper(ctx)
	}

	closed := w.startMessageDispatcher(ctx, deliveries)

	cancel()
	w.wg.Wait()
	if n := w.drainEvents(); n > 0 {
		w.logger.Info("Requeued buffered events", slog.Int("count", n))
	}
	w.logger.Info("Worker stopped", slog.String("worker_id", w.workerID))

	if closed {
		return errors.New("delivery channel closed by broker")
	}
	return nil
}

func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	deliveries, err := w.consumer.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.String("queue", w.queueName),
	)

	return deliveries, nil
}
