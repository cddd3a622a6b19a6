package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"authhub/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg, reg)
	require.NoError(t, err)

	m.Login("todo-app", "success")
	m.Login("todo-app", "success")
	m.Lockout("todo-app")

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			values[family.GetName()] += metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 2.0, values["authhub_auth_logins_total"])
	assert.Equal(t, 1.0, values["authhub_auth_lockouts_total"])

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "authhub_auth_logins_total"))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.Login("todo-app", "success")
		m.OAuthLink("google", "created")
	})
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg, reg)
	require.NoError(t, err)
	_, err = metrics.New(reg, reg)
	assert.Error(t, err)
}
