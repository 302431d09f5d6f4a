package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	realtimeConnections   prometheus.Counter
	realtimeEventsSent    *prometheus.CounterVec
	consensusReachedTotal prometheus.Counter
	reportsGenerated      prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		realtimeConnections = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_connections_total",
			Help: "Total number of websocket connections accepted.",
		})

		realtimeEventsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_events_sent_total",
			Help: "Total number of realtime events broadcast, by event name.",
		}, []string{"event"})

		consensusReachedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consensus_reached_total",
			Help: "Total number of group scores finalized by consensus.",
		})

		reportsGenerated = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reports_generated_total",
			Help: "Total number of grade reports generated.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			realtimeConnections,
			realtimeEventsSent,
			consensusReachedTotal,
			reportsGenerated,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// RealtimeConnectionsTotal exposes the websocket connection counter.
func RealtimeConnectionsTotal() prometheus.Counter {
	RegisterMetrics()
	return realtimeConnections
}

// RealtimeEventsSent exposes the per-event broadcast counter.
func RealtimeEventsSent() *prometheus.CounterVec {
	RegisterMetrics()
	return realtimeEventsSent
}

// ConsensusReachedTotal exposes the consensus finalization counter.
func ConsensusReachedTotal() prometheus.Counter {
	RegisterMetrics()
	return consensusReachedTotal
}

// ReportsGenerated exposes the report generation counter.
func ReportsGenerated() prometheus.Counter {
	RegisterMetrics()
	return reportsGenerated
}
