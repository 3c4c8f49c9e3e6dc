package core

// metrics.go – Prometheus instrumentation for the runtime tick, ACE
// disputes and JBP broadcasts. Supplements the distilled spec (spec.md's
// Non-goals exclude an observability *product*, not structured metrics
// themselves); grounded on the pack's prometheus/client_golang usage for
// counters/histograms gated behind a package-level registry.

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "channel_console",
		Subsystem: "runtime",
		Name:      "tick_duration_seconds",
		Help:      "Wall-clock duration of one runtime tick.",
		Buckets:   prometheus.DefBuckets,
	})

	disputesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "channel_console",
		Subsystem: "ace",
		Name:      "disputes_total",
		Help:      "Count of accounts escalated to dispute, by reason.",
	}, []string{"reason"})

	batchSubmitAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "channel_console",
		Subsystem: "jbp",
		Name:      "batch_submit_attempts_total",
		Help:      "Count of batch submissions accepted by the adapter, labelled broadcast or rebroadcast.",
	}, []string{"outcome"})
)

// RegisterMetrics registers this package's collectors with reg. Safe to
// call once per process; a second call against the same registry is a
// caller error the teacher's metrics wiring leaves to init-order discipline
// rather than guarding defensively.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{tickDuration, disputesTotal, batchSubmitAttemptsTotal} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// observeTick records the duration of a single runtime tick.
func observeTick(start time.Time) {
	tickDuration.Observe(time.Since(start).Seconds())
}

func recordDispute(reason string) {
	disputesTotal.WithLabelValues(reason).Inc()
}

func recordBatchSubmit(outcome string) {
	batchSubmitAttemptsTotal.WithLabelValues(outcome).Inc()
}
