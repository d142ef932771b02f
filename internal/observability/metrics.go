package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for acquisition,
// cleanup and external-tool runs.
type Metrics struct {
	TracesFetched *prometheus.CounterVec // labels: source={file,fdsn,archive}
	FetchErrors   *prometheus.CounterVec // labels: source={fdsn,archive}
	FetchDuration *prometheus.HistogramVec

	GroupsAccepted    prometheus.Counter
	GroupsDiscarded   *prometheus.CounterVec // labels: reason
	GapInterpolations prometheus.Counter

	ToolInvocations *prometheus.CounterVec // labels: tool, outcome={ok,failed}
}

// NewMetrics creates and registers all metrics with the default registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.TracesFetched,
		m.FetchErrors,
		m.FetchDuration,
		m.GroupsAccepted,
		m.GroupsDiscarded,
		m.GapInterpolations,
		m.ToolInvocations,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		TracesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seispick",
			Name:      "traces_fetched_total",
			Help:      "Traces retrieved, by acquisition source.",
		}, []string{"source"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seispick",
			Name:      "fetch_errors_total",
			Help:      "Per-station fetch failures that were skipped.",
		}, []string{"source"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "seispick",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a single station fetch.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		GroupsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seispick",
			Name:      "groups_accepted_total",
			Help:      "Stream groups that passed validation.",
		}),
		GroupsDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seispick",
			Name:      "groups_discarded_total",
			Help:      "Stream groups discarded during cleanup, by reason.",
		}, []string{"reason"}),
		GapInterpolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seispick",
			Name:      "gap_interpolations_total",
			Help:      "Short gaps bridged by the overwrite merge strategy.",
		}),
		ToolInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seispick",
			Name:      "tool_invocations_total",
			Help:      "External tool runs, by tool and outcome.",
		}, []string{"tool", "outcome"}),
	}
}
