package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the session manager. All methods are
// safe on a nil receiver, so metrics can be left unconfigured in tests and
// embedded use.
type Metrics struct {
	// Login attempts by outcome: "existing", "new", "error"
	LoginOutcome *prometheus.CounterVec

	// Token refreshes by outcome ("success", "failure") and trigger
	// ("restore", "interval", "on_demand")
	RefreshOutcome *prometheus.CounterVec

	// Session restores by outcome: "cached", "refreshed", "none", "expired"
	RestoreOutcome *prometheus.CounterVec

	// Refresh round-trip latency
	RefreshLatency prometheus.Histogram
}

// NewMetrics creates a Metrics instance registered on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		LoginOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sessionkit_login_total",
			Help: "Wallet login attempts by outcome",
		}, []string{"outcome"}),

		RefreshOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sessionkit_refresh_total",
			Help: "Token refresh attempts by outcome and trigger",
		}, []string{"outcome", "trigger"}),

		RestoreOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sessionkit_restore_total",
			Help: "Session restore attempts by outcome",
		}, []string{"outcome"}),

		RefreshLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sessionkit_refresh_duration_seconds",
			Help:    "Duration of token refresh calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncLogin records a wallet login attempt.
func (m *Metrics) IncLogin(outcome string) {
	if m != nil {
		m.LoginOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncRefresh records a token refresh attempt.
func (m *Metrics) IncRefresh(outcome, trigger string) {
	if m != nil {
		m.RefreshOutcome.WithLabelValues(outcome, trigger).Inc()
	}
}

// IncRestore records a session restore attempt.
func (m *Metrics) IncRestore(outcome string) {
	if m != nil {
		m.RestoreOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveRefreshLatency records the duration of one refresh round-trip.
func (m *Metrics) ObserveRefreshLatency(d time.Duration) {
	if m != nil {
		m.RefreshLatency.Observe(d.Seconds())
	}
}
