package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for one client. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	requests        *prometheus.CounterVec
	retries         prometheus.Counter
	dedupJoins      prometheus.Counter
	refreshes       *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hearthside",
				Subsystem: "client",
				Name:      "requests_total",
				Help:      "Total number of logical API calls by final outcome.",
			},
			[]string{"method", "outcome"},
		),
		retries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "hearthside",
				Subsystem: "client",
				Name:      "retries_total",
				Help:      "Total number of automatic retry attempts.",
			},
		),
		dedupJoins: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "hearthside",
				Subsystem: "client",
				Name:      "dedup_joins_total",
				Help:      "Total number of GET calls served by an identical in-flight request.",
			},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hearthside",
				Subsystem: "client",
				Name:      "token_refresh_total",
				Help:      "Total number of access token refresh calls by result.",
			},
			[]string{"result"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "hearthside",
				Subsystem: "client",
				Name:      "request_duration_seconds",
				Help:      "Duration of logical API calls including retries.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			},
			[]string{"method"},
		),
	}

	for _, c := range []prometheus.Collector{m.requests, m.retries, m.dedupJoins, m.refreshes, m.requestDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeRequest(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) incRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) incDedupJoin() {
	if m == nil {
		return
	}
	m.dedupJoins.Inc()
}

func (m *Metrics) observeRefresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}
