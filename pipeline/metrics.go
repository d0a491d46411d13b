package pipeline

import "github.com/prometheus/client_golang/prometheus"

// subsystemPipeline is the metrics subsystem name shared by every collector
// registered by this package, following the namespace/subsystem convention
// used by internal/dnsserver/prometheus in the teacher repository.
const subsystemPipeline = "pipeline"

// MetricsListener is implemented by callers that want visibility into query
// lifecycle events: queued, sent, completed, timed out, or dropped, per
// spec.md §4.5's state machine.
type MetricsListener interface {
	// OnQueued is called once per task pushed onto the task queue.
	OnQueued()

	// OnSent is called once per task successfully written to the socket.
	OnSent()

	// OnCompleted is called once per response successfully correlated to a
	// pending request.
	OnCompleted()

	// OnTimedOut is called once per pending request whose timer fires before
	// a response arrives.
	OnTimedOut()

	// OnDropped is called once per task that failed to be packed or sent,
	// and once per inbound packet that could not be correlated to any
	// pending request (wire errors, unexpected sources, or unmatched
	// transaction IDs).
	OnDropped()
}

// PrometheusMetricsListener implements [MetricsListener] by incrementing
// Prometheus counters, mirroring the CacheMetricsListener pattern in
// internal/dnsserver/prometheus/cache.go.
type PrometheusMetricsListener struct {
	queuedTotal    prometheus.Counter
	sentTotal      prometheus.Counter
	completedTotal prometheus.Counter
	timedOutTotal  prometheus.Counter
	droppedTotal   prometheus.Counter
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
		queuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "queued_total",
			Namespace: namespace,
			Subsystem: subsystemPipeline,
			Help:      "The total number of queries queued for sending.",
		}),
		sentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "sent_total",
			Namespace: namespace,
			Subsystem: subsystemPipeline,
			Help:      "The total number of queries written to the socket.",
		}),
		completedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "completed_total",
			Namespace: namespace,
			Subsystem: subsystemPipeline,
			Help:      "The total number of queries completed with a response.",
		}),
		timedOutTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "timed_out_total",
			Namespace: namespace,
			Subsystem: subsystemPipeline,
			Help:      "The total number of queries that timed out.",
		}),
		droppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "dropped_total",
			Namespace: namespace,
			Subsystem: subsystemPipeline,
			Help:      "The total number of failed sends and inbound packets dropped as unmatched.",
		}),
	}

	collectors := []prometheus.Collector{
		l.queuedTotal, l.sentTotal, l.completedTotal, l.timedOutTotal, l.droppedTotal,
	}
	for _, c := range collectors {
		if err = reg.Register(c); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// OnQueued implements the [MetricsListener] interface for
// *PrometheusMetricsListener.
func (l *PrometheusMetricsListener) OnQueued() { l.queuedTotal.Inc() }

// OnSent implements the [MetricsListener] interface for
// *PrometheusMetricsListener.
func (l *PrometheusMetricsListener) OnSent() { l.sentTotal.Inc() }

// OnCompleted implements the [MetricsListener] interface for
// *PrometheusMetricsListener.
func (l *PrometheusMetricsListener) OnCompleted() { l.completedTotal.Inc() }

// OnTimedOut implements the [MetricsListener] interface for
// *PrometheusMetricsListener.
func (l *PrometheusMetricsListener) OnTimedOut() { l.timedOutTotal.Inc() }

// OnDropped implements the [MetricsListener] interface for
// *PrometheusMetricsListener.
func (l *PrometheusMetricsListener) OnDropped() { l.droppedTotal.Inc() }

// noopMetricsListener is used when a [Config] supplies no MetricsListener.
type noopMetricsListener struct{}

// type check
var _ MetricsListener = noopMetricsListener{}

func (noopMetricsListener) OnQueued()    {}
func (noopMetricsListener) OnSent()      {}
func (noopMetricsListener) OnCompleted() {}
func (noopMetricsListener) OnTimedOut()  {}
func (noopMetricsListener) OnDropped()   {}
