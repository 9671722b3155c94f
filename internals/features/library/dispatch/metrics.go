package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	dispatched *prometheus.CounterVec
	completed  *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	timeouts   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer, depth func() float64) (m *metrics, err error) {
	// promauto panics on duplicate registration
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()

	f := promauto.With(reg)
	m = &metrics{
		dispatched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "library_tasks_dispatched_total",
			Help: "Tasks accepted by the dispatcher.",
		}, []string{"task"}),
		completed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "library_tasks_completed_total",
			Help: "Tasks finished, by result status.",
		}, []string{"task", "status"}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "library_tasks_rejected_total",
			Help: "Tasks refused because the queue was full.",
		}, []string{"task"}),
		timeouts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "library_task_timeouts_total",
			Help: "Callers that stopped waiting before the task finished.",
		}, []string{"task"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "library_task_duration_seconds",
			Help:    "Task execution time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),
	}
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "library_task_queue_depth",
		Help: "Tasks waiting for a worker.",
	}, depth)
	return m, nil
}
