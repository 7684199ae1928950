// Package metrics records iam-lens invocations as Prometheus metrics.
package metrics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wilhg/iamlens/pkg/iamlens"
)

// Recorder implements iamlens.Observer.
type Recorder struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	exitCodes   *prometheus.CounterVec
}

// New creates the invocation metrics and registers them with reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iamlens",
			Name:      "invocations_total",
			Help:      "iam-lens runs by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "iamlens",
			Name:      "invocation_duration_seconds",
			Help:      "Wall time of iam-lens runs.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"operation"}),
		exitCodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iamlens",
			Name:      "exit_codes_total",
			Help:      "iam-lens exit codes by operation.",
		}, []string{"operation", "code"}),
	}
	for _, c := range []prometheus.Collector{r.invocations, r.duration, r.exitCodes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe records one invocation.
func (r *Recorder) Observe(_ context.Context, inv iamlens.Invocation) {
	r.invocations.WithLabelValues(inv.Operation, inv.Outcome).Inc()
	r.duration.WithLabelValues(inv.Operation).Observe(inv.Duration.Seconds())
	if inv.ExitCode != nil {
		r.exitCodes.WithLabelValues(inv.Operation, strconv.Itoa(*inv.ExitCode)).Inc()
	}
}
