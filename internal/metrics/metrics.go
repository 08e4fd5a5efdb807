// Package metrics exposes Prometheus counters for the authentication
// surface.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registered collectors. A fresh registry per instance
// keeps tests independent of process-global state.
type Metrics struct {
	registry *prometheus.Registry

	loginOutcomes     *prometheus.CounterVec
	signups           prometheus.Counter
	rateLimitRejected *prometheus.CounterVec
	vaultWrites       prometheus.Counter
	passwordChanges   prometheus.Counter
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		loginOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secureserver_login_outcomes_total",
			Help: "Login attempts by outcome code.",
		}, []string{"outcome"}),
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secureserver_signups_total",
			Help: "Accounts created.",
		}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secureserver_rate_limit_rejected_total",
			Help: "Requests rejected by the rate limiter, by route.",
		}, []string{"route"}),
		vaultWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secureserver_vault_writes_total",
			Help: "Vault bodies stored.",
		}),
		passwordChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secureserver_password_changes_total",
			Help: "Password changes completed.",
		}),
	}
	m.registry.MustRegister(
		m.loginOutcomes,
		m.signups,
		m.rateLimitRejected,
		m.vaultWrites,
		m.passwordChanges,
	)
	return m
}

// LoginOutcome records one login attempt with its outcome label.
func (m *Metrics) LoginOutcome(outcome string) {
	m.loginOutcomes.WithLabelValues(outcome).Inc()
}

// Signup records one account creation.
func (m *Metrics) Signup() { m.signups.Inc() }

// RateLimited records one rejected request for a route.
func (m *Metrics) RateLimited(route string) {
	m.rateLimitRejected.WithLabelValues(route).Inc()
}

// VaultWrite records one stored vault body.
func (m *Metrics) VaultWrite() { m.vaultWrites.Inc() }

// PasswordChange records one completed password change.
func (m *Metrics) PasswordChange() { m.passwordChanges.Inc() }

// Handler returns the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
