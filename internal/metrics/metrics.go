package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skywatch_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	providerCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_provider_calls_total",
			Help: "Celestial mechanics provider calls by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	providerDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skywatch_provider_duration_seconds",
			Help:    "Celestial mechanics provider call duration in seconds.",
			Buckets: []float64{.00001, .0001, .001, .01, .1, 1},
		},
		[]string{"op"},
	)

	breakerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skywatch_provider_breaker_state",
		Help: "Provider circuit breaker state (0 closed, 1 half-open, 2 open).",
	})

	samplerFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_sampler_fallbacks_total",
			Help: "Daily path samplings that fell back to the full-day window, by reason.",
		},
		[]string{"reason"},
	)

	samplerSamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_sampler_samples_total",
			Help: "Daily path samples by result (retained, below_horizon, error).",
		},
		[]string{"result"},
	)

	cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skywatch_cache_hits_total",
		Help: "Daily object cache hits.",
	})

	cacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skywatch_cache_misses_total",
		Help: "Daily object cache misses.",
	})

	cacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skywatch_cache_evictions_total",
		Help: "Daily object cache entries evicted.",
	})

	cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skywatch_cache_entries",
		Help: "Days currently held in the daily object cache.",
	})

	cacheRebuildErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skywatch_cache_rebuild_errors_total",
		Help: "Bodies that failed during a cache rebuild.",
	})

	cacheRebuildDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skywatch_cache_rebuild_duration_seconds",
		Help:    "Duration of a full daily cache rebuild.",
		Buckets: []float64{.01, .05, .1, .5, 1, 5, 10},
	})

	catalogStars = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skywatch_catalog_stars",
		Help: "Stars in the loaded catalog.",
	})

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_stream_connections_total",
			Help: "SSE connection events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skywatch_streams_active",
		Help: "Open SSE streams.",
	})

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skywatch_stream_messages_total",
		Help: "SSE data messages sent.",
	})

	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skywatch_stream_bytes_total",
		Help: "SSE bytes written, including keepalives.",
	})

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_stream_errors_total",
			Help: "SSE errors by type.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		providerCallsTotal,
		providerDurationSeconds,
		breakerState,
		samplerFallbacksTotal,
		samplerSamplesTotal,
		cacheHitsTotal,
		cacheMissesTotal,
		cacheEvictionsTotal,
		cacheEntries,
		cacheRebuildErrorsTotal,
		cacheRebuildDurationSeconds,
		catalogStars,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// ObserveProviderCall records one provider call.
func ObserveProviderCall(op, outcome string, d time.Duration) {
	providerCallsTotal.WithLabelValues(op, outcome).Inc()
	providerDurationSeconds.WithLabelValues(op).Observe(d.Seconds())
}

func SetBreakerState(state int) { breakerState.Set(float64(state)) }

func IncSamplerFallback(reason string) { samplerFallbacksTotal.WithLabelValues(reason).Inc() }

func AddSamplerSamples(result string, n int) {
	if n > 0 {
		samplerSamplesTotal.WithLabelValues(result).Add(float64(n))
	}
}

func IncCacheHits()                  { cacheHitsTotal.Inc() }
func IncCacheMisses()                { cacheMissesTotal.Inc() }
func AddCacheEvictions(n int)        { cacheEvictionsTotal.Add(float64(n)) }
func SetCacheEntries(n int)          { cacheEntries.Set(float64(n)) }
func AddCacheRebuildErrors(n int)    { cacheRebuildErrorsTotal.Add(float64(n)) }
func SetCatalogStars(n int)          { catalogStars.Set(float64(n)) }
func IncStreamConnections(ev string) { streamConnectionsTotal.WithLabelValues(ev).Inc() }
func IncStreamsActive()              { streamsActive.Inc() }
func DecStreamsActive()              { streamsActive.Dec() }
func IncStreamMessages()             { streamMessagesTotal.Inc() }
func AddStreamBytes(n int64)         { streamBytesTotal.Add(float64(n)) }
func IncStreamErrors(kind string)    { streamErrorsTotal.WithLabelValues(kind).Inc() }

func ObserveCacheRebuildDuration(d time.Duration) {
	cacheRebuildDurationSeconds.Observe(d.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

var knownRoutes = map[string]bool{
	"/healthz":                   true,
	"/readyz":                    true,
	"/metrics":                   true,
	"/api/v1/daily-positions":    true,
	"/api/v1/realtime-positions": true,
	"/api/v1/celestial-data":     true,
	"/api/v1/stars":              true,
	"/api/v1/cache/stats":        true,
	"/api/v1/stream/positions":   true,
}

// normalizeRoute maps a request path to a bounded set of label values.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if name, ok := strings.CutPrefix(path, "/api/v1/objects/"); ok && name != "" && !strings.Contains(name, "/") {
		return "/api/v1/objects/{name}"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
