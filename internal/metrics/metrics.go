// Package metrics provides per-process metric recording. Registries are
// injected so services never share process-wide singletons.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the narrow recording surface handed to services.
type Recorder interface {
	RecordTransferCreated()
	RecordVerdict(outcome string)
	RecordMutationApplied(kind string)
	RecordDuplicateMutation(kind string)
	RecordPermanentFailure(code string)
	RecordCompensation()
	RecordError(op string)
	RecordApplyDuration(d time.Duration)
}

// Noop discards all recordings.
type Noop struct{}

func (Noop) RecordTransferCreated()            {}
func (Noop) RecordVerdict(string)              {}
func (Noop) RecordMutationApplied(string)      {}
func (Noop) RecordDuplicateMutation(string)    {}
func (Noop) RecordPermanentFailure(string)     {}
func (Noop) RecordCompensation()               {}
func (Noop) RecordError(string)                {}
func (Noop) RecordApplyDuration(time.Duration) {}

// PrometheusRecorder implements Recorder on a caller-owned registry.
type PrometheusRecorder struct {
	transfersCreated   prometheus.Counter
	verdicts           *prometheus.CounterVec
	mutationsApplied   *prometheus.CounterVec
	duplicateMutations *prometheus.CounterVec
	permanentFailures  *prometheus.CounterVec
	compensations      prometheus.Counter
	processingErrors   *prometheus.CounterVec
	applyDuration      prometheus.Histogram
}

func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		transfersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "transfers_created_total",
			Help: "Total number of transfers accepted for processing.",
		}),
		verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraud_verdicts_total",
			Help: "Fraud verdicts by outcome.",
		}, []string{"outcome"}),
		mutationsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "balance_mutations_applied_total",
			Help: "Balance mutations applied by kind.",
		}, []string{"kind"}),
		duplicateMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "duplicate_mutations_total",
			Help: "Redelivered mutations resolved by the idempotency record.",
		}, []string{"kind"}),
		permanentFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "permanent_mutation_failures_total",
			Help: "Mutations rejected with a permanent business error.",
		}, []string{"code"}),
		compensations: factory.NewCounter(prometheus.CounterOpts{
			Name: "compensations_dispatched_total",
			Help: "Compensating reversal commands dispatched.",
		}),
		processingErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "processing_errors_total",
			Help: "Errors during message processing by operation.",
		}, []string{"op"}),
		applyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mutation_apply_duration_seconds",
			Help:    "Time spent applying a balance mutation.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (r *PrometheusRecorder) RecordTransferCreated() { r.transfersCreated.Inc() }

func (r *PrometheusRecorder) RecordVerdict(outcome string) {
	r.verdicts.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRecorder) RecordMutationApplied(kind string) {
	r.mutationsApplied.WithLabelValues(kind).Inc()
}

func (r *PrometheusRecorder) RecordDuplicateMutation(kind string) {
	r.duplicateMutations.WithLabelValues(kind).Inc()
}

func (r *PrometheusRecorder) RecordPermanentFailure(code string) {
	r.permanentFailures.WithLabelValues(code).Inc()
}

func (r *PrometheusRecorder) RecordCompensation() { r.compensations.Inc() }

func (r *PrometheusRecorder) RecordError(op string) {
	r.processingErrors.WithLabelValues(op).Inc()
}

func (r *PrometheusRecorder) RecordApplyDuration(d time.Duration) {
	r.applyDuration.Observe(d.Seconds())
}
