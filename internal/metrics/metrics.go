package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcspace_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dcspace_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// RentTransitionsTotal counts workflow operations by outcome kind
	// ("ok" or an apperror kind).
	RentTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcspace_rent_transitions_total",
			Help: "Rent workflow operations by operation and result.",
		},
		[]string{"operation", "result"},
	)

	OverdueInvoicesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dcspace_overdue_invoices_total",
			Help: "Overdue invoice entries reported by the scanner.",
		},
	)

	OverdueScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dcspace_overdue_scan_duration_seconds",
			Help:    "Duration of one overdue scan.",
			Buckets: prometheus.DefBuckets,
		},
	)

	EventHubClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dcspace_event_hub_clients",
			Help: "Connected websocket event subscribers.",
		},
	)

	DBPoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dcspace_db_pool_connections",
			Help: "Database pool connections by state.",
		},
		[]string{"state"},
	)
)
