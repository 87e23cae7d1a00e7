package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeBlocked = "blocked"
	OutcomeSkipped = "skipped" // another caller refreshed first
)

// Metrics holds the credential lifecycle collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	RefreshesTotal *prometheus.CounterVec
	UnlinksTotal   *prometheus.CounterVec
	VerdictsTotal  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cleo_token_refreshes_total",
			Help: "Provider token refresh attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		UnlinksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cleo_provider_unlinks_total",
			Help: "Provider unlink requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		VerdictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cleo_token_freshness_verdicts_total",
			Help: "Freshness evaluations by provider and verdict.",
		}, []string{"provider", "verdict"}),
	}

	if reg == nil {
		log.Warn().Msg("Prometheus registry is nil, credential metrics are not exported.")
		return m
	}
	for name, c := range map[string]prometheus.Collector{
		"RefreshesTotal": m.RefreshesTotal,
		"UnlinksTotal":   m.UnlinksTotal,
		"VerdictsTotal":  m.VerdictsTotal,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to register metric")
		}
	}
	return m
}

func (m *Metrics) ObserveRefresh(provider, outcome string) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) ObserveUnlink(provider, outcome string) {
	if m == nil {
		return
	}
	m.UnlinksTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) ObserveVerdict(provider, verdict string) {
	if m == nil {
		return
	}
	m.VerdictsTotal.WithLabelValues(provider, verdict).Inc()
}
