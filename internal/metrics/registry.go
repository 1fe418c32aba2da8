package metrics

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// Registry holds all Prometheus metrics for contentrun
type Registry struct {
	// Engine step metrics
	StepDuration *prometheus.HistogramVec
	StepTotal    *prometheus.CounterVec

	// Content metrics
	ScoreOverall     *prometheus.HistogramVec
	FormatTotal      *prometheus.CounterVec
	EntriesGenerated *prometheus.CounterVec

	// Cache performance metrics
	CacheHitRatio prometheus.Gauge
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec

	// Adapter metrics
	SupplierRequests *prometheus.CounterVec
	BreakerState     *prometheus.GaugeVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	FeedClients      prometheus.Gauge

	gatherer prometheus.Gatherer

	mu         sync.Mutex
	cacheTypes map[string]struct{}
}

// New creates the registry and registers every collector with reg. A nil
// reg gets a private prometheus.Registry.
func New(reg *prometheus.Registry) *Registry {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Registry{
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contentrun_step_duration_seconds",
				Help:    "Duration of each engine step in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"step", "result"},
		),

		StepTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentrun_steps_total",
				Help: "Total number of engine steps executed",
			},
			[]string{"step", "result"},
		),

		ScoreOverall: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contentrun_score_overall",
				Help:    "Overall draft scores by platform",
				Buckets: prometheus.LinearBuckets(10, 10, 10),
			},
			[]string{"platform"},
		),

		FormatTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentrun_format_total",
				Help: "Total number of drafts formatted by platform",
			},
			[]string{"platform"},
		),

		EntriesGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentrun_schedule_entries_total",
				Help: "Total number of schedule entries generated by platform",
			},
			[]string{"platform"},
		),

		CacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "contentrun_cache_hit_ratio",
				Help: "Current cache hit ratio (0.0 to 1.0)",
			},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentrun_cache_hits_total",
				Help: "Total number of cache hits by cache type",
			},
			[]string{"cache_type"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentrun_cache_misses_total",
				Help: "Total number of cache misses by cache type",
			},
			[]string{"cache_type"},
		),

		SupplierRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentrun_supplier_requests_total",
				Help: "Draft supplier requests by platform and result",
			},
			[]string{"platform", "result"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "contentrun_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"breaker"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentrun_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"method", "route", "code"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contentrun_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		FeedClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "contentrun_schedule_feed_clients",
				Help: "Connected schedule feed websocket clients",
			},
		),

		gatherer:   reg,
		cacheTypes: make(map[string]struct{}),
	}

	reg.MustRegister(
		m.StepDuration,
		m.StepTotal,
		m.ScoreOverall,
		m.FormatTotal,
		m.EntriesGenerated,
		m.CacheHitRatio,
		m.CacheHits,
		m.CacheMisses,
		m.SupplierRequests,
		m.BreakerState,
		m.HTTPRequests,
		m.HTTPDuration,
		m.FeedClients,
	)

	return m
}

// Step names
const (
	StepScore    = "score"
	StepFormat   = "format"
	StepSchedule = "schedule"
)

// Step results
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// StepTimer tracks execution time for engine steps
type StepTimer struct {
	metrics *Registry
	step    string
	start   time.Time
}

// StartStepTimer begins timing an engine step
func (m *Registry) StartStepTimer(step string) *StepTimer {
	return &StepTimer{
		metrics: m,
		step:    step,
		start:   time.Now(),
	}
}

// Stop completes the step timing and records the metric
func (st *StepTimer) Stop(result string) {
	duration := time.Since(st.start)
	st.metrics.StepDuration.WithLabelValues(st.step, result).Observe(duration.Seconds())
	st.metrics.StepTotal.WithLabelValues(st.step, result).Inc()

	log.Debug().
		Str("step", st.step).
		Str("result", result).
		Dur("duration", duration).
		Msg("Engine step completed")
}

// ObserveScore records an overall score
func (m *Registry) ObserveScore(platform string, overall int) {
	m.ScoreOverall.WithLabelValues(platform).Observe(float64(overall))
}

// ObserveFormat counts a formatted draft
func (m *Registry) ObserveFormat(platform string) {
	m.FormatTotal.WithLabelValues(platform).Inc()
}

// ObserveEntry counts a generated schedule entry
func (m *Registry) ObserveEntry(platform string) {
	m.EntriesGenerated.WithLabelValues(platform).Inc()
}

// RecordCacheHit records a cache hit for the specified cache type
func (m *Registry) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabelValues(cacheType).Inc()
	m.updateCacheHitRatio(cacheType)
}

// RecordCacheMiss records a cache miss for the specified cache type
func (m *Registry) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabelValues(cacheType).Inc()
	m.updateCacheHitRatio(cacheType)
}

// RecordSupplierRequest counts one supplier call
func (m *Registry) RecordSupplierRequest(platform, result string) {
	m.SupplierRequests.WithLabelValues(platform, result).Inc()
}

// SetBreakerState publishes a breaker state as 0 closed, 1 half-open, 2 open
func (m *Registry) SetBreakerState(name string, state int) {
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// ObserveHTTP records one served request
func (m *Registry) ObserveHTTP(method, route string, code int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, httpCode(code)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// FeedClientConnected and FeedClientDisconnected track websocket clients
func (m *Registry) FeedClientConnected()    { m.FeedClients.Inc() }
func (m *Registry) FeedClientDisconnected() { m.FeedClients.Dec() }

// CurrentCacheHitRatio returns the hit ratio gauge value
func (m *Registry) CurrentCacheHitRatio() float64 {
	metric := &io_prometheus_client.Metric{}
	if err := m.CacheHitRatio.Write(metric); err != nil {
		return 0
	}
	return metric.GetGauge().GetValue()
}

// updateCacheHitRatio recomputes the ratio across every cache type seen
func (m *Registry) updateCacheHitRatio(cacheType string) {
	m.mu.Lock()
	m.cacheTypes[cacheType] = struct{}{}
	types := make([]string, 0, len(m.cacheTypes))
	for t := range m.cacheTypes {
		types = append(types, t)
	}
	m.mu.Unlock()
	sort.Strings(types)

	totalHits := 0.0
	totalMisses := 0.0
	for _, t := range types {
		totalHits += counterValue(m.CacheHits, t)
		totalMisses += counterValue(m.CacheMisses, t)
	}

	if total := totalHits + totalMisses; total > 0 {
		m.CacheHitRatio.Set(totalHits / total)
	}
}

func counterValue(vec *prometheus.CounterVec, label string) float64 {
	counter, err := vec.GetMetricWithLabelValues(label)
	if err != nil {
		return 0
	}
	metric := &io_prometheus_client.Metric{}
	if err := counter.Write(metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}

// Handler returns an HTTP handler exposing the registry in text format
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func httpCode(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
