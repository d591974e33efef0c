package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrNacked = errors.New("broker refused the message")

// backoff yields the wait before each retry
type backoff struct {
	next time.Duration
	mult float64
}

func newBackoff(base time.Duration, mult float64) *backoff {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if mult < 1 {
		mult = 2
	}
	return &backoff{next: base, mult: mult}
}

func (b *backoff) Next() time.Duration {
	d := b.next
	b.next = time.Duration(float64(b.next) * b.mult)
	return d
}

// Publish sends body once under routingKey as a persistent message
func (c *Client) Publish(ctx context.Context, routingKey, messageID string, body []byte, contentType string) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}

	msg := amqp.Publishing{
		ContentType:  contentType,
		MessageId:    messageID,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
	}

	if !c.config.PublisherConfirms {
		if err := c.channel.PublishWithContext(ctx, c.config.ExchangeName, routingKey, false, false, msg); err != nil {
			return fmt.Errorf("failed to publish %s: %w", routingKey, err)
		}
		return nil
	}

	confirm, err := c.channel.PublishWithDeferredConfirmWithContext(ctx, c.config.ExchangeName, routingKey, false, false, msg)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to confirm %s: %w", routingKey, err)
	}
	if !acked {
		return fmt.Errorf("failed to publish %s: %w", routingKey, ErrNacked)
	}
	return nil
}

// PublishWithRetry retries Publish with exponential backoff until the
// configured attempts run out or ctx is done
func (c *Client) PublishWithRetry(ctx context.Context, routingKey, messageID string, body []byte, contentType string) error {
	retries := c.config.PublishRetries
	if retries <= 0 {
		retries = 3
	}
	wait := newBackoff(c.config.PublishRetryDelay, c.config.PublishBackoffMult)

	var err error
	for attempt := 1; ; attempt++ {
		err = c.Publish(ctx, routingKey, messageID, body, contentType)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("Event published after retry",
					slog.String("routing_key", routingKey),
					slog.String("message_id", messageID),
					slog.Int("attempt", attempt),
				)
			}
			return nil
		}
		if errors.Is(err, ErrNotConnected) || attempt > retries {
			break
		}

		delay := wait.Next()
		c.logger.Warn("Publish failed, retrying",
			slog.String("routing_key", routingKey),
			slog.Int("attempt", attempt),
			slog.Duration("retry_after", delay),
			slog.Any("error", err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("publish canceled: %w", ctx.Err())
		}
	}

	return fmt.Errorf("failed to publish %s after retries: %w", routingKey, err)
}
