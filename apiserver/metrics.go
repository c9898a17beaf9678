package apiserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics exposes ingest/scoring counters on /metrics.
type serverMetrics struct {
	registry      *prometheus.Registry
	eventsTotal   prometheus.Counter
	anomalies     prometheus.Counter
	parseFailures prometheus.Counter
	lastIngest    prometheus.Gauge
}

func newServerMetrics() *serverMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &serverMetrics{
		registry: registry,
		eventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "logwarden_events_total",
			Help: "Total scored log events",
		}),
		anomalies: factory.NewCounter(prometheus.CounterOpts{
			Name: "logwarden_anomalies_total",
			Help: "Detected anomalous log events",
		}),
		parseFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "logwarden_parse_failures_total",
			Help: "Input lines failing to parse",
		}),
		lastIngest: factory.NewGauge(prometheus.GaugeOpts{
			Name: "logwarden_last_ingest_timestamp",
			Help: "Unix timestamp of the last scored batch",
		}),
	}
}
