package sched

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "livebind"

// loopMetrics holds the Prometheus instruments for a single Loop.
type loopMetrics struct {
	jobsTotal   prometheus.Counter
	jobsDropped prometheus.Counter
	jobDuration prometheus.Histogram
	queueDepth  prometheus.Gauge
}

func newLoopMetrics(reg prometheus.Registerer) *loopMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &loopMetrics{
		jobsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "loop",
			Name:      "jobs_total",
			Help:      "Total functions executed on the loop.",
		}),
		jobsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "loop",
			Name:      "jobs_dropped_total",
			Help:      "Dispatched functions dropped because the queue was full.",
		}),
		jobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "loop",
			Name:      "job_duration_seconds",
			Help:      "Execution time of functions run on the loop.",
			Buckets:   prometheus.DefBuckets,
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "loop",
			Name:      "queue_depth",
			Help:      "Functions currently queued on the loop.",
		}),
	}
}
