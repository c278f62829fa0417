package observability

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/slidedeck-backend/internal/platform/filestore"
)

const namespace = "slidedeck"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	storeOps     *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec
	storeBytes   *prometheus.CounterVec

	inconsistencies *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"method", "route"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "inflight_requests",
			Help:      "Requests currently being served",
		}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Asset store operations by outcome",
		}, []string{"op", "category", "result"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Asset store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		storeBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "written_bytes_total",
			Help:      "Bytes written to the asset store",
		}, []string{"category"}),
		inconsistencies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "inconsistencies_total",
			Help:      "Record/file mismatches observed",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		m.apiRequests,
		m.apiLatency,
		m.apiInflight,
		m.storeOps,
		m.storeLatency,
		m.storeBytes,
		m.inconsistencies,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ApiInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) ApiInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

// ObserveStoreOp implements filestore.Observer.
func (m *Metrics) ObserveStoreOp(op string, category filestore.Category, err error, bytes int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.storeOps.WithLabelValues(op, string(category), storeResult(err)).Inc()
	m.storeLatency.WithLabelValues(op).Observe(elapsed.Seconds())
	if err == nil && bytes > 0 {
		m.storeBytes.WithLabelValues(string(category)).Add(float64(bytes))
	}
}

func (m *Metrics) IncInconsistency(kind string) {
	if m != nil {
		m.inconsistencies.WithLabelValues(kind).Inc()
	}
}

func storeResult(err error) string {
	var fe *filestore.Error
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &fe):
		return string(fe.Kind)
	default:
		return "error"
	}
}
