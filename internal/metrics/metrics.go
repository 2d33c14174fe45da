// Package metrics holds the portal's domain counters.
// HTTP request metrics live in the middleware package.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Login outcomes.
const (
	LoginSuccess     = "success"
	LoginInvalid     = "invalid_credentials"
	LoginLocked      = "locked"
	LoginRateLimited = "rate_limited"
)

// Metrics groups the counters recorded by services. A nil *Metrics records nothing.
type Metrics struct {
	logins        *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	submissions   *prometheus.CounterVec
	payments      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_rate_limited_total",
			Help: "Login attempts rejected by the rate limiter, by key scope.",
		}, []string{"scope"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notifications by channel and result.",
		}, []string{"channel", "result"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submission_status_changes_total",
			Help: "Submissions created or moved to a new status.",
		}, []string{"status"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Payment gateway callbacks by resulting transaction status.",
		}, []string{"status"}),
	}
	for _, c := range []prometheus.Collector{m.logins, m.rateLimited, m.notifications, m.submissions, m.payments} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(scope).Inc()
}

func (m *Metrics) Notification(channel, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) SubmissionStatus(status string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(status).Inc()
}

func (m *Metrics) PaymentCallback(status string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(status).Inc()
}
