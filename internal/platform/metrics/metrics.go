package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the session engine. Components
// accept a nil *Metrics and skip recording, so unit tests do not need a
// registry.
type Metrics struct {
	SessionsPublished  *prometheus.CounterVec
	EnrichmentAttempts prometheus.Counter
	EnrichmentOutcomes *prometheus.CounterVec
	GuardDecisions     *prometheus.CounterVec
	LoginOutcomes      *prometheus.CounterVec
	CacheOps           *prometheus.CounterVec
}

// New creates and registers all metrics against the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_sessions_published_total",
			Help: "Sessions published to the store, by completeness (basic, enriched, signed-out).",
		}, []string{"completeness"}),
		EnrichmentAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "concord_enrichment_attempts_total",
			Help: "Individual profile fetch attempts.",
		}),
		EnrichmentOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_enrichment_outcomes_total",
			Help: "Terminal enrichment outcomes, by result (success, absent, timeout, remote-error, offline-abandoned, stale-discarded).",
		}, []string{"result"}),
		GuardDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_guard_decisions_total",
			Help: "Route guard terminal decisions, by state.",
		}, []string{"state"}),
		LoginOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_login_outcomes_total",
			Help: "Login intent outcomes, by error code (ok when successful).",
		}, []string{"code"}),
		CacheOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_cache_operations_total",
			Help: "Local cache operations, by op and result.",
		}, []string{"op", "result"}),
	}
}

// ObserveSessionPublished increments the published counter; completeness is
// "signed-out" for nil publishes.
func (m *Metrics) ObserveSessionPublished(completeness string) {
	if m == nil {
		return
	}
	m.SessionsPublished.WithLabelValues(completeness).Inc()
}

func (m *Metrics) ObserveEnrichmentAttempt() {
	if m == nil {
		return
	}
	m.EnrichmentAttempts.Inc()
}

func (m *Metrics) ObserveEnrichmentOutcome(result string) {
	if m == nil {
		return
	}
	m.EnrichmentOutcomes.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveGuardDecision(state string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(state).Inc()
}

func (m *Metrics) ObserveLoginOutcome(code string) {
	if m == nil {
		return
	}
	m.LoginOutcomes.WithLabelValues(code).Inc()
}

func (m *Metrics) ObserveCacheOp(op, result string) {
	if m == nil {
		return
	}
	m.CacheOps.WithLabelValues(op, result).Inc()
}
