// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fairshare"

// Metrics groups every collector the server records.
type Metrics struct {
	EventsAppended    *prometheus.CounterVec
	EventsRejected    *prometheus.CounterVec
	RPCDuration       *prometheus.HistogramVec
	ReplayDuration    prometheus.Histogram
	ReplayedEvents    prometheus.Gauge
	CacheDrift        prometheus.Gauge
	NotificationsSent prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsAppended: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_appended_total",
			Help:      "Ledger events appended, by kind.",
		}, []string{"kind"}),
		EventsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_rejected_total",
			Help:      "Ledger events rejected before append, by kind and reason.",
		}, []string{"kind", "reason"}),
		RPCDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "RPC latency by procedure and result code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure", "code"}),
		ReplayDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "replay_duration_seconds",
			Help:      "Time to fold the full event log during a rebuild.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		ReplayedEvents: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "replayed_events",
			Help:      "Events folded by the most recent rebuild.",
		}),
		CacheDrift: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "balance_cache_drift_pairs",
			Help:      "Pairs whose cached balance differed from the replayed balance at the last rebuild.",
		}),
		NotificationsSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Notifications delivered to parties.",
		}),
	}
}

// ObserveRPC records one RPC's latency.
func (m *Metrics) ObserveRPC(procedure, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.RPCDuration.WithLabelValues(procedure, code).Observe(d.Seconds())
}

// EventAppended counts a successful append.
func (m *Metrics) EventAppended(kind string) {
	if m == nil {
		return
	}
	m.EventsAppended.WithLabelValues(kind).Inc()
}

// EventRejected counts an event that failed validation.
func (m *Metrics) EventRejected(kind, reason string) {
	if m == nil {
		return
	}
	m.EventsRejected.WithLabelValues(kind, reason).Inc()
}

// Replayed records a completed rebuild.
func (m *Metrics) Replayed(events, drift int, d time.Duration) {
	if m == nil {
		return
	}
	m.ReplayDuration.Observe(d.Seconds())
	m.ReplayedEvents.Set(float64(events))
	m.CacheDrift.Set(float64(drift))
}

// NotificationSent counts a delivered notification.
func (m *Metrics) NotificationSent() {
	if m == nil {
		return
	}
	m.NotificationsSent.Inc()
}
