package observe

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver records attempt and run metrics.
type PrometheusObserver struct {
	BaseObserver

	attempts *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusObserver creates the observer and registers its metrics with reg
// (prometheus.DefaultRegisterer when nil).
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "effex",
			Name:      "attempts_total",
			Help:      "Effect body runs, by label and classified outcome.",
		}, []string{"label", "outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "effex",
			Name:      "runs_total",
			Help:      "Completed retried, repeated or debugged runs, by label, mode and result.",
		}, []string{"label", "mode", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "effex",
			Name:      "run_duration_seconds",
			Help:      "Wall time of completed runs, including delays.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"label", "mode"}),
	}
	reg.MustRegister(o.attempts, o.runs, o.duration)
	return o
}

func (o *PrometheusObserver) OnAttempt(_ context.Context, label string, rec AttemptRecord) {
	o.attempts.WithLabelValues(label, rec.Outcome.Kind.String()).Inc()
}

func (o *PrometheusObserver) OnSuccess(_ context.Context, label string, tl Timeline) {
	o.finish(label, tl, "success")
}

func (o *PrometheusObserver) OnFailure(_ context.Context, label string, tl Timeline) {
	o.finish(label, tl, "failure")
}

func (o *PrometheusObserver) finish(label string, tl Timeline, result string) {
	o.runs.WithLabelValues(label, string(tl.Mode), result).Inc()
	o.duration.WithLabelValues(label, string(tl.Mode)).Observe(tl.End.Sub(tl.Start).Seconds())
}
