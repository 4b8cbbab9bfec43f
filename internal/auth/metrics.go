// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Authentication outcomes recorded by Metrics.
const (
	OutcomeAccepted       = "accepted"
	OutcomeRejected       = "rejected"
	OutcomeUnknownAccount = "unknown_account"
	OutcomeError          = "error"
)

// Metrics contains Prometheus metrics for the authentication service.
// A nil *Metrics records nothing.
type Metrics struct {
	Attempts       *prometheus.CounterVec
	VerifyDuration prometheus.Histogram
}

// NewMetrics creates and registers authentication metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mydex_auth_attempts_total",
				Help: "Total number of authentication attempts by outcome",
			},
			[]string{"outcome"},
		),
		VerifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mydex_auth_verify_duration_seconds",
			Help:    "Time from dispatching a password verification to receiving its result",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}

	reg.MustRegister(m.Attempts)
	reg.MustRegister(m.VerifyDuration)

	return m
}

func (m *Metrics) recordAttempt(outcome string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeVerify(d time.Duration) {
	if m == nil {
		return
	}
	m.VerifyDuration.Observe(d.Seconds())
}
