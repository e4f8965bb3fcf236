package metrics

import (
	"net/http"
	"time"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "parking"

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	registry       *prometheus.Registry
	operations     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	lockContention prometheus.Counter
	expired        prometheus.Counter
	cache          *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_operations_total",
			Help:      "Reservation engine operations by outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reservation_operation_duration_seconds",
			Help:      "Latency of reservation engine operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		lockContention: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spot_lock_contention_total",
			Help:      "Attempts that found the spot lock already held.",
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_expired_total",
			Help:      "Reservations expired because their hold lapsed.",
		}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_cache_requests_total",
			Help:      "Availability cache lookups by entry kind and result.",
		}, []string{"kind", "result"}),
	}
	m.registry.MustRegister(
		m.operations,
		m.duration,
		m.lockContention,
		m.expired,
		m.cache,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOperation records the outcome and latency of one engine call.
// The outcome label is "ok" or the error kind.
func (m *Metrics) ObserveOperation(op string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	if domain.IsRetryable(err) {
		m.lockContention.Inc()
	}
}

func (m *Metrics) Expired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}

func (m *Metrics) CacheHit(kind string) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(kind, "hit").Inc()
}

func (m *Metrics) CacheMiss(kind string) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(kind, "miss").Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
