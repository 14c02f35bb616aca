// Package metrics exposes Prometheus collectors for the engine loop and the
// saga controller.
//
// Metrics implements engine.Observer and saga.Hooks, so a single value can be
// passed to both engine.WithObserver and saga.WithHooks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/nsaga/internal/ir"
)

const namespace = "nsaga"

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	events         *prometheus.CounterVec
	effectFailures *prometheus.CounterVec
	tasksActive    prometheus.Gauge
	taskStarts     *prometheus.CounterVec
	notifications  *prometheus.CounterVec
}

// New registers the collectors on reg. Use prometheus.NewRegistry in tests to
// keep registrations isolated.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Labels: namespace (event namespace, "" for the root)
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_total",
			Help:      "Events processed by the dispatch loop",
		}, []string{"namespace"}),

		effectFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "effect_failures_total",
			Help:      "Scheduled effects that returned an error",
		}, []string{"namespace"}),

		tasksActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "saga",
			Name:      "tasks_active",
			Help:      "Namespaces with a mounted task",
		}),

		taskStarts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "saga",
			Name:      "task_starts_total",
			Help:      "Tasks started",
		}, []string{"namespace"}),

		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "saga",
			Name:      "notifications_total",
			Help:      "Subscriber invocations on publish",
		}, []string{"namespace"}),
	}
}

// Processed counts a processed event.
func (m *Metrics) Processed(_ int64, ev ir.Event) {
	m.events.WithLabelValues(ev.Namespace).Inc()
}

// Failed counts a failed effect.
func (m *Metrics) Failed(_ int64, ev ir.Event, _ error) {
	m.effectFailures.WithLabelValues(ev.Namespace).Inc()
}

// TaskStarted records a mount.
func (m *Metrics) TaskStarted(ns string) {
	m.tasksActive.Inc()
	m.taskStarts.WithLabelValues(ns).Inc()
}

// TaskStopped records an unmount.
func (m *Metrics) TaskStopped(string) {
	m.tasksActive.Dec()
}

// Notified records the subscribers invoked by one publish.
func (m *Metrics) Notified(ns string, subscribers int) {
	m.notifications.WithLabelValues(ns).Add(float64(subscribers))
}
