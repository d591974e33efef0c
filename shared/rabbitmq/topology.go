package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// declarer is the subset of *amqp.Channel used to build the topology
type declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// DeadLetterQueue names the queue that collects rejected events for queue
func DeadLetterQueue(queue string) string {
	return queue + ".dead"
}

func declareTopology(ch declarer, cfg *Config) error {
	kind := cfg.ExchangeType
	if kind == "" {
		kind = amqp.ExchangeTopic
	}

	if err := ch.ExchangeDeclare(cfg.ExchangeName, kind, cfg.ExchangeDurable, cfg.ExchangeAutoDelete, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %q: %w", cfg.ExchangeName, err)
	}

	if cfg.QueueName == "" {
		return nil
	}

	var args amqp.Table
	if dlx := cfg.DeadLetterExchange; dlx != "" {
		if err := ch.ExchangeDeclare(dlx, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare dead letter exchange %q: %w", dlx, err)
		}
		dead := DeadLetterQueue(cfg.QueueName)
		if _, err := ch.QueueDeclare(dead, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare dead letter queue %q: %w", dead, err)
		}
		if err := ch.QueueBind(dead, "", dlx, false, nil); err != nil {
			return fmt.Errorf("failed to bind dead letter queue %q: %w", dead, err)
		}
		args = amqp.Table{"x-dead-letter-exchange": dlx}
	}

	if _, err := ch.QueueDeclare(cfg.QueueName, cfg.QueueDurable, cfg.QueueAutoDelete, cfg.QueueExclusive, false, args); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", cfg.QueueName, err)
	}

	keys := cfg.BindingKeys
	if len(keys) == 0 {
		keys = []string{"#"}
	}
	for _, key := range keys {
		if err := ch.QueueBind(cfg.QueueName, key, cfg.ExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue with key %q: %w", key, err)
		}
	}

	return nil
}
