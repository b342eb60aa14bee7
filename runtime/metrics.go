package runtime

import (
	"github.com/prometheus/client_golang/prometheus"
)

// engineMetrics is nil when no Registerer is configured; every inc
// method tolerates the nil receiver.
type engineMetrics struct {
	dispatches  prometheus.Counter
	completions prometheus.Counter
	failures    prometheus.Counter
	retries     prometheus.Counter
	checkpoints prometheus.Counter
}

func newEngineMetrics(reg prometheus.Registerer) *engineMetrics {
	if reg == nil {
		return nil
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aep",
			Subsystem: "engine",
			Name:      name,
			Help:      help,
		})
	}
	m := &engineMetrics{
		dispatches:  counter("dispatches_total", "Tasks dispatched."),
		completions: counter("completions_total", "Awaitable completions applied."),
		failures:    counter("task_failures_total", "Tasks that permanently failed."),
		retries:     counter("task_retries_total", "Task re-dispatches after a failure."),
		checkpoints: counter("checkpoints_total", "Checkpoint snapshots written."),
	}
	reg.MustRegister(m.dispatches, m.completions, m.failures, m.retries, m.checkpoints)
	return m
}

func (m *engineMetrics) incDispatch() {
	if m != nil {
		m.dispatches.Inc()
	}
}

func (m *engineMetrics) incCompletion() {
	if m != nil {
		m.completions.Inc()
	}
}

func (m *engineMetrics) incFailure() {
	if m != nil {
		m.failures.Inc()
	}
}

func (m *engineMetrics) incRetry() {
	if m != nil {
		m.retries.Inc()
	}
}

func (m *engineMetrics) incCheckpoint() {
	if m != nil {
		m.checkpoints.Inc()
	}
}
