package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Redemption outcome labels.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// MetricsService encapsulates Prometheus instrumentation. A nil receiver is a no-op.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec
	redemptions     *prometheus.CounterVec
	qrIssued        prometheus.Counter
	ledgerResets    *prometheus.CounterVec
	resetRows       prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups partitioned by result",
	}, []string{"result"})

	redemptions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "qr_redemptions_total",
		Help: "QR redemption attempts partitioned by outcome and rejection code",
	}, []string{"outcome", "code"})

	qrIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qr_sessions_issued_total",
		Help: "QR sessions issued by teachers",
	})

	ledgerResets := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_resets_total",
		Help: "Ledger resets partitioned by trigger",
	}, []string{"trigger"})

	resetRows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_reset_rows_total",
		Help: "Ledger rows removed by resets",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups,
		redemptions, qrIssued, ledgerResets, resetRows, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheLookups:    cacheLookups,
		redemptions:     redemptions,
		qrIssued:        qrIssued,
		ledgerResets:    ledgerResets,
		resetRows:       resetRows,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordRedemption counts a scan attempt. code is empty for accepted scans.
func (m *MetricsService) RecordRedemption(outcome, code string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(outcome, code).Inc()
}

// RecordQRIssued counts an issued session.
func (m *MetricsService) RecordQRIssued() {
	if m == nil {
		return
	}
	m.qrIssued.Inc()
}

// RecordReset counts a ledger reset and the rows it removed.
func (m *MetricsService) RecordReset(trigger string, removed int64) {
	if m == nil {
		return
	}
	m.ledgerResets.WithLabelValues(trigger).Inc()
	if removed > 0 {
		m.resetRows.Add(float64(removed))
	}
}
