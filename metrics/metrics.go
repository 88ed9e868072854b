// Package metrics exposes the aggregate engine operations and retries to
// Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "learning"

// Engine implements the aggregate engine hooks.
type Engine struct {
	ops     *prometheus.HistogramVec
	retries *prometheus.CounterVec
}

func NewEngine(reg prometheus.Registerer) *Engine {
	f := promauto.With(reg)

	return &Engine{
		ops: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "operation_duration_seconds",
			Help:      "Duration of aggregate recomputations, retries included, by operation and outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"op", "status"}),

		retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "retries_total",
			Help:      "Transactions retried after a serialization failure, deadlock or busy lock.",
		}, []string{"op"}),
	}
}

func (e *Engine) ObserveOperation(op, status string, dur time.Duration) {
	e.ops.WithLabelValues(op, status).Observe(dur.Seconds())
}

func (e *Engine) IncRetry(op string) {
	e.retries.WithLabelValues(op).Inc()
}
