// Package metrics provides Prometheus metrics for syncbox.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	commandsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncbox_commands_received_total",
			Help: "Total number of commands read from accepted connections",
		},
		[]string{"command"},
	)

	commandReadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncbox_command_read_failures_total",
			Help: "Total number of accepted connections that didn't carry a valid command",
		},
	)

	commandsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncbox_commands_sent_total",
			Help: "Total number of outgoing commands by result",
		},
		[]string{"command", "status"},
	)

	bytesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncbox_content_bytes_sent_total",
			Help: "Total file content bytes written to peers",
		},
	)

	bytesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncbox_content_bytes_received_total",
			Help: "Total file content bytes stored from peers",
		},
	)

	activeUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncbox_active_users",
			Help: "Number of users with at least one session",
		},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncbox_active_sessions",
			Help: "Number of connected client sessions",
		},
	)

	suppressedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncbox_watcher_suppressed_events_total",
			Help: "Total filesystem events dropped because syncbox wrote the file itself",
		},
	)
)

// RecordReceived counts a command read by the dispatcher.
func RecordReceived(command string) {
	commandsReceived.WithLabelValues(command).Inc()
}

// RecordReadFailure counts a connection whose command couldn't be decoded.
func RecordReadFailure() {
	commandReadFailures.Inc()
}

// RecordSent counts an outgoing command.
func RecordSent(command string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	commandsSent.WithLabelValues(command, status).Inc()
}

// RecordBytesSent adds to the outgoing content byte counter.
func RecordBytesSent(n int64) {
	bytesSent.Add(float64(n))
}

// RecordBytesReceived adds to the incoming content byte counter.
func RecordBytesReceived(n int64) {
	bytesReceived.Add(float64(n))
}

// SetActive sets the user and session gauges.
func SetActive(users, sessions int) {
	activeUsers.Set(float64(users))
	activeSessions.Set(float64(sessions))
}

// RecordSuppressedEvent counts a watcher event dropped by the ignore set.
func RecordSuppressedEvent() {
	suppressedEvents.Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
