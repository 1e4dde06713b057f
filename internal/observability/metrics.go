package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors for the service.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     prometheus.Histogram
	ErrorsTotal         *prometheus.CounterVec
	StatusAdvancesTotal prometheus.Counter
}

// NewMetrics registers collectors under the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "The total number of handled HTTP requests",
		}, []string{"path", "method", "status"}),
		RequestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time taken to handle HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of request errors by code",
		}, []string{"path", "method", "code"}),
		StatusAdvancesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_advances_total",
			Help:      "The total number of package status advances",
		}),
	}
}

// RecordRequest increments request counters.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.RequestDuration.Observe(duration.Seconds())
}

// RecordStatusAdvance counts one package status advance.
func (m *Metrics) RecordStatusAdvance() {
	if m == nil {
		return
	}
	m.StatusAdvancesTotal.Inc()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(path, method, code).Inc()
}
