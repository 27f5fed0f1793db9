package authapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters are labeled by outcome only. Usernames and token contents never
// become label values: label cardinality is fixed and nothing sensitive
// reaches the metrics endpoint.
var (
	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traq",
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Login attempts by outcome.",
	}, []string{"outcome"})

	authRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traq",
		Subsystem: "auth",
		Name:      "request_rejections_total",
		Help:      "Requests rejected by the auth middleware, by reason.",
	}, []string{"reason"})

	tokenVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traq",
		Subsystem: "auth",
		Name:      "token_verifications_total",
		Help:      "Explicit /auth/verify checks by outcome.",
	}, []string{"outcome"})

	registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traq",
		Subsystem: "auth",
		Name:      "registrations_total",
		Help:      "Self-service registrations by outcome.",
	}, []string{"outcome"})
)

func loginOutcome(outcome string) { loginAttempts.WithLabelValues(outcome).Inc() }

func authRejected(reason string) { authRejections.WithLabelValues(reason).Inc() }

func verifyOutcome(outcome string) { tokenVerifications.WithLabelValues(outcome).Inc() }

func registerOutcome(outcome string) { registrations.WithLabelValues(outcome).Inc() }
