package timewheel

import "github.com/prometheus/client_golang/prometheus"

// subsystemTimeWheel is the metrics subsystem name shared by every collector
// registered by this package, following the namespace/subsystem convention
// used by internal/dnsserver/prometheus in the teacher repository.
const subsystemTimeWheel = "timewheel"

// MetricsListener is implemented by callers that want visibility into the
// wheel's scheduling activity.  Implementations must be thread-safe: the
// tick goroutine, the pool, and every caller's goroutine may invoke these
// methods concurrently.
type MetricsListener interface {
	// OnScheduled is called every time Schedule places a new timer.
	OnScheduled()

	// OnFired is called once per timer delivered to its callback, whether
	// inline or through the pool.
	OnFired()

	// OnCanceled is called once per successful Cancel.
	OnCanceled()
}

// PrometheusMetricsListener implements [MetricsListener] by incrementing
// Prometheus counters, mirroring the CacheMetricsListener pattern in
// internal/dnsserver/prometheus/cache.go.
type PrometheusMetricsListener struct {
	scheduledTotal prometheus.Counter
	firedTotal     prometheus.Counter
	canceledTotal  prometheus.Counter
}

// type check
var _ MetricsListener = (*PrometheusMetricsListener)(nil)

// NewPrometheusMetricsListener returns a new *PrometheusMetricsListener
// registered with reg under namespace.  As long as this function registers
// Prometheus collectors, it must be called only once per namespace/reg
// pair.
func NewPrometheusMetricsListener(
	namespace string,
	reg prometheus.Registerer,
) (l *PrometheusMetricsListener, err error) {
	l = &PrometheusMetricsListener{
		scheduledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "scheduled_total",
			Namespace: namespace,
			Subsystem: subsystemTimeWheel,
			Help:      "The total number of timers scheduled.",
		}),
		firedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "fired_total",
			Namespace: namespace,
			Subsystem: subsystemTimeWheel,
			Help:      "The total number of timers fired.",
		}),
		canceledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "canceled_total",
			Namespace: namespace,
			Subsystem: subsystemTimeWheel,
			Help:      "The total number of timers canceled before firing.",
		}),
	}

	for _, c := range []prometheus.Collector{l.scheduledTotal, l.firedTotal, l.canceledTotal} {
		if err = reg.Register(c); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// OnScheduled implements the [MetricsListener] interface for
// *PrometheusMetricsListener.
func (l *PrometheusMetricsListener) OnScheduled() { l.scheduledTotal.Inc() }

// OnFired implements the [MetricsListener] interface for
// *PrometheusMetricsListener.
func (l *PrometheusMetricsListener) OnFired() { l.firedTotal.Inc() }

// OnCanceled implements the [MetricsListener] interface for
// *PrometheusMetricsListener.
func (l *PrometheusMetricsListener) OnCanceled() { l.canceledTotal.Inc() }
