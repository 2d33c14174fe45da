package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Login(LoginSuccess)
	m.Login(LoginSuccess)
	m.Login(LoginLocked)
	m.RateLimited("ip")
	m.Notification("email", "sent")
	m.SubmissionStatus("approved")
	m.PaymentCallback("success")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.logins.WithLabelValues(LoginSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues(LoginLocked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited.WithLabelValues("ip")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("email", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.payments.WithLabelValues("success")))

	_, err = New(reg)
	assert.Error(t, err, "second registration on the same registry must fail")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Login(LoginInvalid)
		m.RateLimited("user")
		m.Notification("whatsapp", "failed")
		m.SubmissionStatus("pending")
		m.PaymentCallback("failure")
	})
}
