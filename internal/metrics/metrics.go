package metrics

import (
	"database/sql"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	namespace = "marketplace"

	// Labels
	categoryLabel  = "category"
	transportLabel = "transport"
	typeLabel      = "type"
	resultLabel    = "result"
)

// Results recorded for published and consumed events
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultDropped = "dropped"
	ResultRetried = "retried"
)

/**
* Metrics definition
**/
var bookingsCreatedMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bookings_created_total",
		Help:      "number of bookings created",
	},
	[]string{categoryLabel},
)

var bookingAlertsExpiredMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "booking_alerts_expired_total",
		Help:      "number of booking alerts that ran out without an acceptance",
	},
)

var realtimeConnectionsMetric = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_connections",
		Help:      "currently open realtime connections",
	},
	[]string{transportLabel},
)

var eventsPublishedMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "domain events published to the broker",
	},
	[]string{typeLabel, resultLabel},
)

var eventsConsumedMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_consumed_total",
		Help:      "domain events consumed by the worker",
	},
	[]string{typeLabel, resultLabel},
)

func IncreaseBookingsCreated(category string) {
	bookingsCreatedMetric.With(prometheus.Labels{categoryLabel: category}).Inc()
}

func IncreaseBookingAlertsExpired() {
	bookingAlertsExpiredMetric.Inc()
}

func RealtimeConnectionOpened(transport string) {
	realtimeConnectionsMetric.With(prometheus.Labels{transportLabel: transport}).Inc()
}

func RealtimeConnectionClosed(transport string) {
	realtimeConnectionsMetric.With(prometheus.Labels{transportLabel: transport}).Dec()
}

func IncreaseEventsPublished(eventType, result string) {
	eventsPublishedMetric.With(prometheus.Labels{typeLabel: eventType, resultLabel: result}).Inc()
}

func IncreaseEventsConsumed(eventType, result string) {
	eventsConsumedMetric.With(prometheus.Labels{typeLabel: eventType, resultLabel: result}).Inc()
}

// RegisterDBStats exports the connection pool statistics of db
func RegisterDBStats(db *sql.DB, name string) error {
	err := prometheus.Register(collectors.NewDBStatsCollector(db, name))
	if are := (prometheus.AlreadyRegisteredError{}); errors.As(err, &are) {
		return nil
	}
	return err
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(bookingsCreatedMetric)
	prometheus.MustRegister(bookingAlertsExpiredMetric)
	prometheus.MustRegister(realtimeConnectionsMetric)
	prometheus.MustRegister(eventsPublishedMetric)
	prometheus.MustRegister(eventsConsumedMetric)
	prometheus.MustRegister(httpRequestsMetric)
	prometheus.MustRegister(httpLatencyMetric)
}
