package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_created_total",
		Help: "Total number of checkout sessions created",
	}, []string{"method"})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of checkout creations that failed",
	}, []string{"kind"})

	EntitlementShortCircuitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entitlement_short_circuits_total",
		Help: "Total number of flows bypassed because the user already holds a paid package",
	}, []string{"route"})

	StatusCallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_status_calls_total",
		Help: "Total number of status lookups issued to the backend",
	})

	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliations_total",
		Help: "Total number of reconciliations by terminal outcome",
	}, []string{"outcome", "kind"})

	GuardRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_guard_rejections_total",
		Help: "Re-renders that found the reconciliation already claimed",
	}, []string{"scope"})

	StaleResponsesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_stale_responses_dropped_total",
		Help: "Status responses that arrived after the result view was unmounted",
	})

	MountedResultViews = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "result_views_mounted",
		Help: "Result views currently mounted",
	})

	QRIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qr_codes_issued_total",
		Help: "Total number of QR snapshots handed to the QR view",
	})

	LedgerEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_events_total",
		Help: "Checkout lifecycle events projected into the ledger",
	}, []string{"type", "result"})

	BackendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backend_request_duration_seconds",
		Help:    "Latency of calls to the car-wash backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
