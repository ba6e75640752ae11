package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pos"

// Metrics holds the collectors of the service. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	SalesCommitted     prometheus.Counter
	SalesRejected      *prometheus.CounterVec
	CommitRetries      prometheus.Counter
	CommitDuration     prometheus.Histogram
	StockMovements     *prometheus.CounterVec
	ChainVerifications *prometheus.CounterVec

	ProfileCacheLookups *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.SalesCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sales_committed_total",
		Help:      "Sales committed to the ledger",
	})
	m.SalesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_rejected_total",
			Help:      "Sale attempts rejected, by reason",
		},
		[]string{"reason"},
	)
	m.CommitRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commit_retries_total",
		Help:      "Transactions retried after a serialization conflict",
	})
	m.CommitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sale_commit_duration_seconds",
		Help:      "Time to commit a sale, retries included",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})
	m.StockMovements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_movements_total",
			Help:      "Stock movements appended, by kind",
		},
		[]string{"kind"},
	)
	m.ChainVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_verifications_total",
			Help:      "Fiscal chain verifications, by result",
		},
		[]string{"result"},
	)
	m.ProfileCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_cache_lookups_total",
			Help:      "Authorization profile lookups, by cache result",
		},
		[]string{"result"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration,
		m.SalesCommitted, m.SalesRejected, m.CommitRetries, m.CommitDuration,
		m.StockMovements, m.ChainVerifications, m.ProfileCacheLookups,
	)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) SaleCommitted(d time.Duration) {
	if m == nil {
		return
	}
	m.SalesCommitted.Inc()
	m.CommitDuration.Observe(d.Seconds())
}

func (m *Metrics) SaleRejected(reason string) {
	if m == nil {
		return
	}
	m.SalesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.CommitRetries.Inc()
}

func (m *Metrics) Movement(kind string) {
	if m == nil {
		return
	}
	m.StockMovements.WithLabelValues(kind).Inc()
}

func (m *Metrics) ChainVerified(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "violation"
	}
	m.ChainVerifications.WithLabelValues(result).Inc()
}

// ProfileLookup counts a profile cache hit or miss.
func (m *Metrics) ProfileLookup(hit bool) {
	if m == nil {
		return
	}
	result := "hit"
	if !hit {
		result = "miss"
	}
	m.ProfileCacheLookups.WithLabelValues(result).Inc()
}

// Instrument records request count and latency for one route. The route
// pattern is the path label, which keeps label cardinality bounded.
func (m *Metrics) Instrument(pattern string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
