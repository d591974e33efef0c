package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/homeserve-be/internal/metrics"
	"github.com/cuongbtq/homeserve-be/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned",
		slog.Int("worker_count", w.concurrency),
	)
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg := <-w.eventsChan:
			if ctx.Err() != nil {
				w.requeue(msg)
				continue
			}
			w.handle(ctx, workerName, msg)
		}
	}
}

// drainEvents requeues every message still buffered once the pool has stopped
func (w *Worker) drainEvents() int {
	n := 0
	for {
		select {
		case msg := <-w.eventsChan:
			w.requeue(msg)
			n++
		default:
			return n
		}
	}
}

func (w *Worker) requeue(msg *domain.EventMessage) {
	metrics.IncreaseEventsConsumed(msg.Event.Type, metrics.ResultRetried)
	if err := msg.Delivery.Nack(false, true); err != nil {
		w.logger.Error("Failed to NACK message on shutdown",
			slog.String("event_id", msg.Event.ID),
			slog.Any("error", err),
		)
	}
}

// handle processes one event and settles its delivery
func (w *Worker) handle(ctx context.Context, workerName string, msg *domain.EventMessage) {
	ev := msg.Event
	logger := w.logger.With(
		slog.String("worker_name", workerName),
		slog.String("event_id", ev.ID),
		slog.String("event_type", ev.Type),
	)

	err := w.processEvent(ctx, ev)
	if err == nil {
		metrics.IncreaseEventsConsumed(ev.Type, metrics.ResultOK)
		if ackErr := msg.Delivery.Ack(false); ackErr != nil {
			logger.Error("Failed to ACK message", slog.Any("error", ackErr))
		}
		return
	}

	requeue := shouldRequeue(err, msg.Delivery.Redelivered)
	result := metrics.ResultError
	if requeue {
		result = metrics.ResultRetried
	}
	metrics.IncreaseEventsConsumed(ev.Type, result)

	logger.Error("Event processing failed",
		slog.Any("error", err),
		slog.Bool("redelivered", msg.Delivery.Redelivered),
		slog.Bool("requeue", requeue),
	)

	if nackErr := msg.Delivery.Nack(false, requeue); nackErr != nil {
		logger.Error("Failed to NACK message", slog.Any("error", nackErr))
	}
}

// shouldRequeue gives transient failures one more attempt; a redelivered
// message that fails again is dead-lettered
func shouldRequeue(err error, redelivered bool) bool {
	if redelivered {
		return false
	}

	if errors.Is(err, domain.ErrInvalidEvent) {
		return false
	}

	return domain.IsTransient(err)
}
