package metrics

import "github.com/prometheus/client_golang/prometheus"

// HubMetrics holds Prometheus metrics for the broadcast hub.
type HubMetrics struct {
	Subscribers     prometheus.Gauge
	EventsPublished *prometheus.CounterVec
	Evictions       prometheus.Counter
	FanOutDuration  prometheus.Histogram
	StopTimeouts    prometheus.Counter
}

// NewHubMetrics creates and registers broadcast hub metrics on the given registry.
func NewHubMetrics(reg prometheus.Registerer) *HubMetrics {
	m := &HubMetrics{
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Number of live hub subscriptions.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "events_published_total",
			Help:      "Total number of events fanned out, by event kind.",
		}, []string{"kind"}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "slow_subscribers_evicted_total",
			Help:      "Total number of subscribers disconnected because their queue was full.",
		}),
		FanOutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "fan_out_duration_seconds",
			Help:      "Time spent enqueuing one event to every subscriber.",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		StopTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "stop_timeouts_total",
			Help:      "Total number of hub shutdowns that exceeded the stop timeout.",
		}),
	}

	reg.MustRegister(m.Subscribers, m.EventsPublished, m.Evictions, m.FanOutDuration, m.StopTimeouts)
	return m
}
