// Package metrics holds the prometheus collectors for the ingestion pipeline,
// the provider layer and the watchlist supervisor.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mint_sniper"

// Metrics is safe to use as a nil pointer; every recorder becomes a no-op.
type Metrics struct {
	registry *prometheus.Registry

	MessagesReceived prometheus.Counter
	PipelineDrops    *prometheus.CounterVec
	Admissions       *prometheus.CounterVec

	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	BreakerState     *prometheus.GaugeVec

	WatchlistPending prometheus.Gauge
	SeenMints        prometheus.Gauge
	PollCycles       prometheus.Counter
	PollOutcomes     *prometheus.CounterVec
	AlertsSent       *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
}

// New registers every collector on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		MessagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_received_total",
			Help:      "Channel posts received from the inbound feed",
		}),
		PipelineDrops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "drops_total",
			Help:      "Messages dropped by the ingestion pipeline, by stage",
		}, []string{"stage"}),
		Admissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watchlist",
			Name:      "admissions_total",
			Help:      "Watchlist admission attempts, by result",
		}, []string{"result"}),

		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Market data provider lookups, by provider and outcome",
		}, []string{"provider", "outcome"}),
		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Market data provider lookup latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 12},
		}, []string{"provider"}),
		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
		}, []string{"provider"}),

		WatchlistPending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watchlist",
			Name:      "pending_entries",
			Help:      "Entries awaiting momentum confirmation",
		}),
		SeenMints: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watchlist",
			Name:      "seen_mints",
			Help:      "Mints that already fired an alert",
		}),
		PollCycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "cycles_total",
			Help:      "Completed supervisor poll cycles",
		}),
		PollOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "poll_outcomes_total",
			Help:      "Per-entry poll results, by outcome",
		}, []string{"outcome"}),
		AlertsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "alerts_total",
			Help:      "Alert deliveries, by result",
		}, []string{"result"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one poll cycle",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler serves the private registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) MessageReceived() {
	if m == nil {
		return
	}
	m.MessagesReceived.Inc()
}

func (m *Metrics) Dropped(stage string) {
	if m == nil {
		return
	}
	m.PipelineDrops.WithLabelValues(stage).Inc()
}

func (m *Metrics) Admission(result string) {
	if m == nil {
		return
	}
	m.Admissions.WithLabelValues(result).Inc()
}

func (m *Metrics) ProviderCall(provider, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, outcome).Inc()
	m.ProviderLatency.WithLabelValues(provider).Observe(took.Seconds())
}

func (m *Metrics) SetBreakerState(provider string, state float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(provider).Set(state)
}

func (m *Metrics) SetWatchlistSize(pending, seen int) {
	if m == nil {
		return
	}
	m.WatchlistPending.Set(float64(pending))
	m.SeenMints.Set(float64(seen))
}

func (m *Metrics) CycleCompleted(took time.Duration) {
	if m == nil {
		return
	}
	m.PollCycles.Inc()
	m.CycleDuration.Observe(took.Seconds())
}

func (m *Metrics) PollOutcome(outcome string) {
	if m == nil {
		return
	}
	m.PollOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Alert(result string) {
	if m == nil {
		return
	}
	m.AlertsSent.WithLabelValues(result).Inc()
}
