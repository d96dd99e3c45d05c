// Package metrics holds the prometheus collectors of the account flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "textsecure_accounts"

// Outcome label values
const (
	OutcomeOK           = "ok"
	OutcomeError        = "error"
	OutcomeThrottled    = "throttled"
	OutcomeInvalid      = "invalid"
	OutcomeNotSupported = "push_not_supported"
	OutcomeManualFetch  = "manual_fetch"
)

var (
	ProfileFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profile_fetches_total",
		Help:      "Profile fetch attempts by outcome.",
	}, []string{"outcome"})

	PushTokenRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "push_token_requests_total",
		Help:      "Push token pair requests by outcome.",
	}, []string{"outcome"})

	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Registration attempts by outcome.",
	}, []string{"outcome"})

	RepairTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "repair_job_ticks_total",
		Help:      "Profile completeness checks run by the repair job.",
	})
)
