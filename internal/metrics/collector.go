// Package metrics provides internal metrics collection for the routing
// host. This package is internal and should not be imported by external
// projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the prometheus instruments for every host concern.
type Collector struct {
	// Discovery
	discoveryAttempts *prometheus.CounterVec
	discoveryDuration prometheus.Histogram
	registeredAgents  prometheus.Gauge

	// Routing
	routingDecisions *prometheus.CounterVec

	// Dispatch
	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	dispatchRetries  prometheus.Counter

	// Session
	sessionLoads *prometheus.CounterVec
	sessionSaves *prometheus.CounterVec
}

// NewCollector registers the host instruments with the given registerer.
// Pass prometheus.DefaultRegisterer in production; tests pass a fresh
// registry to avoid duplicate registration panics.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		discoveryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "discovery_attempts_total",
				Help:      "Card discovery attempts by outcome",
			},
			[]string{"outcome"},
		),
		discoveryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "discovery_pass_duration_seconds",
				Help:      "Wall time of a full discovery pass",
				Buckets:   prometheus.DefBuckets,
			},
		),
		registeredAgents: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registered_agents",
				Help:      "Number of agents currently registered",
			},
		),
		routingDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "routing_decisions_total",
				Help:      "Routing decisions by target agent (or fallback)",
			},
			[]string{"agent"},
		),
		dispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Dispatched specialist calls by agent and outcome",
			},
			[]string{"agent", "outcome"},
		),
		dispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Specialist call duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"agent"},
		),
		dispatchRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_retries_total",
				Help:      "Transient-failure retries issued by the dispatcher",
			},
		),
		sessionLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_loads_total",
				Help:      "Session context loads by outcome",
			},
			[]string{"outcome"},
		),
		sessionSaves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_saves_total",
				Help:      "Session context saves by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// RecordDiscovery records one discovery attempt outcome ("ok" or "failed").
func (c *Collector) RecordDiscovery(outcome string) {
	c.discoveryAttempts.WithLabelValues(outcome).Inc()
}

// RecordDiscoveryPass records the duration of a full pass and the resulting
// registry size.
func (c *Collector) RecordDiscoveryPass(d time.Duration, agents int) {
	c.discoveryDuration.Observe(d.Seconds())
	c.registeredAgents.Set(float64(agents))
}

// RecordRouting records a routing decision; fallback decisions use the
// label "fallback".
func (c *Collector) RecordRouting(agent string) {
	if agent == "" {
		agent = "fallback"
	}
	c.routingDecisions.WithLabelValues(agent).Inc()
}

// RecordDispatch records one specialist call.
func (c *Collector) RecordDispatch(agent, outcome string, d time.Duration) {
	c.dispatchTotal.WithLabelValues(agent, outcome).Inc()
	c.dispatchDuration.WithLabelValues(agent).Observe(d.Seconds())
}

// RecordRetry counts a dispatcher retry.
func (c *Collector) RecordRetry() {
	c.dispatchRetries.Inc()
}

// RecordSessionLoad records a context load ("ok", "empty", "degraded").
func (c *Collector) RecordSessionLoad(outcome string) {
	c.sessionLoads.WithLabelValues(outcome).Inc()
}

// RecordSessionSave records a context save ("ok", "failed").
func (c *Collector) RecordSessionSave(outcome string) {
	c.sessionSaves.WithLabelValues(outcome).Inc()
}
