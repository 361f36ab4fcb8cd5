package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, route pattern, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Iterations counts LNS iterations by acceptance outcome
	Iterations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "lns_iterations_total", Help: "LNS iterations by outcome (improved, accepted, rejected)."},
		[]string{"outcome"},
	)
	// OperatorSelections counts roulette picks by operator kind and name
	OperatorSelections = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "lns_operator_selections_total", Help: "Destroy and repair operator selections."},
		[]string{"kind", "operator"},
	)
	// SolveDuration tracks wall time of complete searches
	SolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "lns_solve_duration_seconds", Help: "Duration of complete searches in seconds.", Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}},
	)
	// RunsInFlight reports searches currently executing
	RunsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "lns_runs_in_flight", Help: "Searches currently executing."},
	)
	// BestCost reports the best cost of the most recently finished search
	BestCost = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "lns_best_cost", Help: "Best cost of the last finished search."},
	)

	// WebhookDeliveries counts completion callbacks by event and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook delivery attempts."},
		[]string{"event", "status"},
	)
	// WebhookLatency records callback latency in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in milliseconds.", Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000}},
		[]string{"event", "code"},
	)
)

// RegisterDefault registers collectors to the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Iterations)
		Registry.MustRegister(OperatorSelections)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(RunsInFlight)
		Registry.MustRegister(BestCost)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
