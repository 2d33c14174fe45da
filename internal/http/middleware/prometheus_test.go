package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMetricsApp(t *testing.T) (*fiber.App, *PrometheusMiddleware, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	pm, err := NewPrometheusMiddleware(reg)
	require.NoError(t, err)

	app := fiber.New()
	app.Use(pm.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/submissions/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Delete("/admin/services/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	app.Put("/staff/submissions/:id/status", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusConflict, "status transition not allowed")
	})
	app.Post("/payments", func(c *fiber.Ctx) error { return errors.New("gateway down") })
	return app, pm, reg
}

// observations returns the histogram sample count for one method/path pair.
func observations(t *testing.T, reg *prometheus.Registry, method, path string) uint64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "http_request_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["method"] == method && labels["path"] == path {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func TestPrometheusMiddleware_RecordsPerRoutePattern(t *testing.T) {
	app, pm, reg := newMetricsApp(t)

	tests := []struct {
		method, target, pattern, status string
	}{
		{"GET", "/submissions/6b0e", "/submissions/:id", "200"},
		{"GET", "/submissions/91ac", "/submissions/:id", "200"},
		{"DELETE", "/admin/services/3", "/admin/services/:id", "204"},
		{"PUT", "/staff/submissions/7/status", "/staff/submissions/:id/status", "409"},
		{"POST", "/payments", "/payments", "500"},
	}
	for _, tt := range tests {
		_, err := app.Test(httptest.NewRequest(tt.method, tt.target, nil))
		require.NoError(t, err)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.requestCount.WithLabelValues("GET", "/submissions/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.requestCount.WithLabelValues("DELETE", "/admin/services/:id", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.requestCount.WithLabelValues("PUT", "/staff/submissions/:id/status", "409")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.requestCount.WithLabelValues("POST", "/payments", "500")))

	assert.Equal(t, uint64(2), observations(t, reg, "GET", "/submissions/:id"))
	assert.Equal(t, uint64(1), observations(t, reg, "PUT", "/staff/submissions/:id/status"))
	assert.Equal(t, 4, testutil.CollectAndCount(pm.requestDuration, "http_request_duration_seconds"))
}

func TestPrometheusMiddleware_SkipsMetricsEndpoint(t *testing.T) {
	app, pm, reg := newMetricsApp(t)

	_, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)

	assert.Equal(t, 0, testutil.CollectAndCount(pm.requestCount))
	assert.Zero(t, observations(t, reg, "GET", "/metrics"))
}

func TestNewPrometheusMiddleware_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusMiddleware(reg)
	require.NoError(t, err)

	_, err = NewPrometheusMiddleware(reg)
	var are prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &are)
}
