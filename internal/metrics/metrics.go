package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// TripTransitions counts trip lifecycle transitions by action and outcome
	TripTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trip_transitions_total", Help: "Trip lifecycle transitions by action and outcome."},
		[]string{"action", "outcome"},
	)
	// EligibilityRejections counts dispatch rejections by rule
	EligibilityRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "eligibility_rejections_total", Help: "Dispatch eligibility rejections by rule."},
		[]string{"rule"},
	)
	// MaintenanceEvents counts maintenance workflow events
	MaintenanceEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "maintenance_events_total", Help: "Maintenance workflow events by kind."},
		[]string{"kind"},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors on the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(TripTransitions)
		Registry.MustRegister(EligibilityRejections)
		Registry.MustRegister(MaintenanceEvents)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
