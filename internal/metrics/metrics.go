// Package metrics exposes auth outcome counters to Prometheus. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authhub"

type Metrics struct {
	Logins        *prometheus.CounterVec
	Registrations *prometheus.CounterVec
	Lockouts      *prometheus.CounterVec
	OAuthLinks    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the counters on reg. Passing prometheus.DefaultRegisterer
// serves them from the default /metrics handler.
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) (*Metrics, error) {
	m := &Metrics{
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "logins_total",
				Help:      "Login attempts by app and outcome",
			},
			[]string{"app", "outcome"},
		),
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "registrations_total",
				Help:      "Registration attempts by app and outcome",
			},
			[]string{"app", "outcome"},
		),
		Lockouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "lockouts_total",
				Help:      "App registrations pushed into the locked state",
			},
			[]string{"app"},
		),
		OAuthLinks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "oauth_links_total",
				Help:      "OAuth account linking results by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		gatherer: gatherer,
	}
	for _, collector := range []prometheus.Collector{m.Logins, m.Registrations, m.Lockouts, m.OAuthLinks} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Login(app, outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(app, outcome).Inc()
}

func (m *Metrics) Registration(app, outcome string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(app, outcome).Inc()
}

func (m *Metrics) Lockout(app string) {
	if m == nil {
		return
	}
	m.Lockouts.WithLabelValues(app).Inc()
}

func (m *Metrics) OAuthLink(provider, outcome string) {
	if m == nil {
		return
	}
	m.OAuthLinks.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
