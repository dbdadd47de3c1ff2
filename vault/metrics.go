package vault

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opPut    = "put"
	opFetch  = "fetch"
	opList   = "list"
	opRemove = "remove"
	opClear  = "clear"
)

type metrics struct {
	ops         *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	pinFailures prometheus.Counter
	orphans     prometheus.Counter
}

// newMetrics creates the pipeline collectors. A nil reg leaves them
// unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		ops: f.NewCounterVec(prometheus.CounterOpts{
			Name: "filevault_pipeline_ops_total",
			Help: "Vault operations by outcome.",
		}, []string{"op", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "filevault_pipeline_duration_seconds",
			Help:    "Vault operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		pinFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "filevault_pin_failures_total",
			Help: "Best-effort pins that failed.",
		}),
		orphans: f.NewCounter(prometheus.CounterOpts{
			Name: "filevault_orphaned_blobs_total",
			Help: "Blobs uploaded whose ledger record could not be written.",
		}),
	}
}

func (m *metrics) observe(op string, start time.Time, err error) {
	m.ops.WithLabelValues(op, result(err)).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// result buckets err into a low-cardinality label.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrIndexOutOfRange):
		return "not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
