// Package metrics provides Prometheus metrics for the fleet API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors, registered on their own registry
// so tests can create isolated instances.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal *prometheus.CounterVec

	TripsStarted   prometheus.Counter
	TripsCompleted prometheus.Counter

	TelemetryReports   prometheus.Counter
	BroadcastDelivered prometheus.Counter
	BroadcastDropped   prometheus.Counter

	LiveSubscribers prometheus.Gauge
}

// New creates and registers all application metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleet_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		TripsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_trips_started_total",
			Help: "Trips moved to IN_PROGRESS",
		}),
		TripsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_trips_completed_total",
			Help: "Trips moved to COMPLETED",
		}),
		TelemetryReports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_telemetry_reports_total",
			Help: "Accepted vehicle location reports",
		}),
		BroadcastDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_broadcast_delivered_total",
			Help: "Live updates delivered to topic subscribers",
		}),
		BroadcastDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_broadcast_dropped_total",
			Help: "Live updates dropped because a subscriber buffer was full",
		}),
		LiveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleet_live_subscribers",
			Help: "Currently connected live-stream subscribers",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.TripsStarted,
		m.TripsCompleted,
		m.TelemetryReports,
		m.BroadcastDelivered,
		m.BroadcastDropped,
		m.LiveSubscribers,
	)
	return m
}
