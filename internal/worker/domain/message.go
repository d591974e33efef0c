package domain

import (
	"github.com/cuongbtq/homeserve-be/internal/events"
	amqp "github.com/rabbitmq/amqp091-go"
)

// EventMessage is a decoded event together with the delivery it came from
type EventMessage struct {
	Event    *events.Event
	Delivery amqp.Delivery
}

// ExpiredBooking is a booking the sweeper moved to expired
type ExpiredBooking struct {
	ID       string `db:"id"`
	UserID   string `db:"user_id"`
	Category string `db:"category"`
	Amount   int64  `db:"amount"`
}
