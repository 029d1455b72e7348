package metrics

import "github.com/prometheus/client_golang/prometheus"

// VoteMetrics holds Prometheus metrics for the mutation service.
type VoteMetrics struct {
	VotesCast        *prometheus.CounterVec
	Registrations    *prometheus.CounterVec
	LikesRecorded    prometheus.Counter
	MutationDuration *prometheus.HistogramVec
	PublishFailures  *prometheus.CounterVec
}

// NewVoteMetrics creates and registers mutation service metrics on the given registry.
func NewVoteMetrics(reg prometheus.Registerer) *VoteMetrics {
	m := &VoteMetrics{
		VotesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_cast_total",
			Help:      "Total number of votes received, by result (applied, unknown_option, invalid).",
		}, []string{"result"}),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Total number of registrations, by result (created, returning).",
		}, []string{"result"}),
		LikesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "likes_recorded_total",
			Help:      "Total number of like requests accepted, including repeats.",
		}),
		MutationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mutation_duration_seconds",
			Help:      "Duration of mutate-then-publish operations in seconds, by operation.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"operation"}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Total number of events that could not be handed to the hub after a committed mutation, by event kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.VotesCast, m.Registrations, m.LikesRecorded, m.MutationDuration, m.PublishFailures)
	return m
}
