// Package metrics provides Prometheus collectors for the HTTP server, the bag
// calculation and the offline asset cache:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//   - calculations_total: Counter with an outcome label
//   - calculation_bags: Histogram of bag counts handed out
//   - asset_cache_requests_total: Counter with a result label (hit, miss)
//   - asset_cache_installs_total: Counter with an outcome label
//   - asset_cache_evictions_total: Counter of caches deleted on activate
//
// All collectors are registered with the Prometheus default registry during
// package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome label values.
const (
	OutcomeOK              = "ok"
	OutcomeInvalidPatients = "invalid_patients"
	OutcomeInvalidRates    = "invalid_rates"
	OutcomeError           = "error"

	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheBypass = "bypass"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	CalculationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calculations_total",
			Help: "Bag calculations by outcome",
		},
		[]string{"outcome"},
	)

	CalculationBags = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "calculation_bags",
			Help:    "Bags per successful calculation",
			Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16, 24, 32},
		},
	)

	AssetCacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_cache_requests_total",
			Help: "Cacheable requests by cache result",
		},
		[]string{"result"},
	)

	AssetCacheInstalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_cache_installs_total",
			Help: "Asset cache install attempts by outcome",
		},
		[]string{"outcome"},
	)

	AssetCacheEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_cache_evictions_total",
			Help: "Outdated asset caches deleted on activate",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(CalculationsTotal)
	prometheus.MustRegister(CalculationBags)
	prometheus.MustRegister(AssetCacheRequests)
	prometheus.MustRegister(AssetCacheInstalls)
	prometheus.MustRegister(AssetCacheEvictions)
}
