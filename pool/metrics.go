package pool

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "batchpool"

// collectorRefs counts the live pools using each registered collector. Pools
// sharing a name share collectors, which stay registered until the last of
// them releases.
var (
	collectorMu   sync.Mutex
	collectorRefs = map[prometheus.Collector]int{}
)

// poolMetrics holds the Prometheus collectors for one pool. A nil
// *poolMetrics is valid and records nothing.
type poolMetrics struct {
	reg   prometheus.Registerer
	owned []prometheus.Collector // referenced by this pool, released on Destroy

	submitted    prometheus.Counter
	completed    prometheus.Counter
	panicked     prometheus.Counter
	discarded    prometheus.Counter
	queueDepth   prometheus.Gauge
	busyWorkers  prometheus.Gauge
	taskDuration prometheus.Histogram
	submitWait   prometheus.Histogram
}

func newPoolMetrics(reg prometheus.Registerer, name string) (*poolMetrics, error) {
	if reg == nil {
		return nil, nil
	}

	labels := prometheus.Labels{"pool": name}
	m := &poolMetrics{reg: reg}

	var err error
	if m.submitted, err = registerCollector(m, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Name:        "tasks_submitted_total",
		Help:        "Tasks accepted into the queue.",
		ConstLabels: labels,
	})); err != nil {
		return nil, err
	}
	if m.completed, err = registerCollector(m, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Name:        "tasks_completed_total",
		Help:        "Tasks whose work function returned, including recovered panics.",
		ConstLabels: labels,
	})); err != nil {
		return nil, err
	}
	if m.panicked, err = registerCollector(m, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Name:        "tasks_panicked_total",
		Help:        "Tasks whose work function panicked.",
		ConstLabels: labels,
	})); err != nil {
		return nil, err
	}
	if m.discarded, err = registerCollector(m, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Name:        "tasks_discarded_total",
		Help:        "Pending tasks dropped without running by Reset or Destroy.",
		ConstLabels: labels,
	})); err != nil {
		return nil, err
	}
	if m.queueDepth, err = registerCollector(m, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Name:        "queue_depth",
		Help:        "Tasks waiting in the bounded queue.",
		ConstLabels: labels,
	})); err != nil {
		return nil, err
	}
	if m.busyWorkers, err = registerCollector(m, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Name:        "busy_workers",
		Help:        "Workers currently executing a task.",
		ConstLabels: labels,
	})); err != nil {
		return nil, err
	}
	if m.taskDuration, err = registerCollector(m, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   metricsNamespace,
		Name:        "task_duration_seconds",
		Help:        "Time spent inside work functions.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: labels,
	})); err != nil {
		return nil, err
	}
	if m.submitWait, err = registerCollector(m, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   metricsNamespace,
		Name:        "submit_wait_seconds",
		Help:        "Time Submit spent blocked on a full queue.",
		Buckets:     prometheus.ExponentialBuckets(0.0001, 4, 10),
		ConstLabels: labels,
	})); err != nil {
		return nil, err
	}

	return m, nil
}

// registerCollector registers c, reusing an identical collector that another
// pool with the same name already registered.
func registerCollector[C prometheus.Collector](m *poolMetrics, c C) (C, error) {
	collectorMu.Lock()
	if err := m.reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				collectorRefs[existing]++
				m.owned = append(m.owned, existing)
				collectorMu.Unlock()
				return existing, nil
			}
		}
		collectorMu.Unlock()
		m.release()
		var zero C
		return zero, err
	}
	collectorRefs[c]++
	m.owned = append(m.owned, c)
	collectorMu.Unlock()
	return c, nil
}

// release drops this pool's references and unregisters the collectors no
// other pool still uses.
func (m *poolMetrics) release() {
	if m == nil {
		return
	}

	collectorMu.Lock()
	defer collectorMu.Unlock()
	for _, c := range m.owned {
		collectorRefs[c]--
		if collectorRefs[c] > 0 {
			continue
		}
		delete(collectorRefs, c)
		m.reg.Unregister(c)
	}
	m.owned = nil
}

func (m *poolMetrics) taskSubmitted(depth int, waited time.Duration) {
	if m == nil {
		return
	}
	m.submitted.Inc()
	m.queueDepth.Set(float64(depth))
	m.submitWait.Observe(waited.Seconds())
}

func (m *poolMetrics) taskStarted(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
	m.busyWorkers.Inc()
}

func (m *poolMetrics) taskFinished(elapsed time.Duration, panicked bool) {
	if m == nil {
		return
	}
	m.busyWorkers.Dec()
	m.completed.Inc()
	m.taskDuration.Observe(elapsed.Seconds())
	if panicked {
		m.panicked.Inc()
	}
}

func (m *poolMetrics) tasksDiscarded(n int) {
	if m == nil || n == 0 {
		return
	}
	m.discarded.Add(float64(n))
	m.queueDepth.Set(0)
}
