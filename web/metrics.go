package web

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the Prometheus metrics for the query endpoint.
type Collector struct {
	QueriesTotal     *prometheus.CounterVec
	QueryDuration    *prometheus.HistogramVec
	QueriesInFlight  prometheus.Gauge
	PayloadBytes     *prometheus.CounterVec
}

// NewCollector creates a collector with all metrics registered on the given
// registerer. Pass prometheus.DefaultRegisterer outside tests.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tether",
				Name:      "queries_total",
				Help:      "Total number of queries processed",
			},
			[]string{"kind", "status"},
		),
		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tether",
				Name:      "query_duration_seconds",
				Help:      "Query duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"kind"},
		),
		QueriesInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "tether",
				Name:      "queries_in_flight",
				Help:      "Number of queries currently being processed",
			},
		),
		PayloadBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tether",
				Name:      "payload_bytes_total",
				Help:      "Total payload bytes by direction",
			},
			[]string{"direction"},
		),
	}
}
