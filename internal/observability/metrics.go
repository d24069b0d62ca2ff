// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import "github.com/prometheus/client_golang/prometheus"

// Namespace prefixes every authkit metric.
const Namespace = "authkit"

// Auth attempt results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// Metrics holds the authentication counters.
type Metrics struct {
	AuthAttempts  *prometheus.CounterVec
	SessionsSwept prometheus.Counter
}

// NewMetrics creates the auth metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "auth_attempts_total",
				Help:      "Signup, login and logout attempts by outcome",
			},
			[]string{"operation", "result"},
		),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_swept_total",
			Help:      "Expired sessions removed by the sweeper",
		}),
	}

	reg.MustRegister(m.AuthAttempts, m.SessionsSwept)
	return m
}

// RecordAuthAttempt counts one attempt of operation with result.
// A nil receiver records nothing.
func (m *Metrics) RecordAuthAttempt(operation, result string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(operation, result).Inc()
}

// RecordSwept adds n removed sessions.
func (m *Metrics) RecordSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsSwept.Add(float64(n))
}
