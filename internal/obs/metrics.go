package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Client-side API metrics. Paths are canonicalized so per-record URLs do not
// explode label cardinality.
var (
	apiInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "console_api_in_flight_requests",
		Help: "In-flight API requests issued by the console.",
	})

	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_api_requests_total",
			Help: "Total API requests issued by the console.",
		},
		[]string{"method", "path", "status"},
	)

	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_api_request_duration_seconds",
			Help:    "API request latencies observed by the console.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	cacheEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_cache_events_total",
			Help: "Local cache events (hit, miss, write, invalidate, corrupt).",
		},
		[]string{"key", "event"},
	)

	tokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_token_refresh_total",
			Help: "Access-token refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

var initOnce sync.Once

// Init registers the console metrics in the default registry.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			apiInFlight,
			apiRequestsTotal,
			apiRequestDuration,
			cacheEventsTotal,
			tokenRefreshTotal,
		)
	})
}

// Handler serves the Prometheus scrape endpoint for the debug listener.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RequestStarted marks an API request as in flight and returns a function
// that records its outcome.
func RequestStarted(method, path string) func(status int) {
	apiInFlight.Inc()
	start := time.Now()
	canonical := CanonicalPath(path)
	return func(status int) {
		apiInFlight.Dec()
		code := strconv.Itoa(status)
		apiRequestsTotal.WithLabelValues(method, canonical, code).Inc()
		apiRequestDuration.WithLabelValues(method, canonical, code).Observe(time.Since(start).Seconds())
	}
}

// CacheEvent records a local cache event. The filter suffix of a query-keyed
// cache entry is dropped to keep the label set small.
func CacheEvent(key, event string) {
	if i := strings.IndexByte(key, '?'); i >= 0 {
		key = key[:i]
	}
	cacheEventsTotal.WithLabelValues(key, event).Inc()
}

// RefreshOutcome records the result of a token refresh ("success" or
// "failure").
func RefreshOutcome(outcome string) {
	tokenRefreshTotal.WithLabelValues(outcome).Inc()
}

// CanonicalPath collapses numeric path segments to :id so metrics stay
// bounded. Query strings are dropped.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if _, err := strconv.ParseInt(seg, 10, 64); err == nil {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}
