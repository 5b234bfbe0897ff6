// Package metrics defines the custom Prometheus metrics of the identity
// service. They register with the default registry at package init;
// HTTP request metrics come from echoprometheus in the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity"

// RegistrationsTotal counts identities issued through /start.
var RegistrationsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of anonymous identities issued.",
	},
)

// ProfileUpdatesTotal counts successful profile mutations.
// Label:
//   - field: "email" or "pseudo"
var ProfileUpdatesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profile_updates_total",
		Help:      "Total number of email/pseudo updates applied.",
	},
	[]string{"field"},
)

// VerificationsTotal counts QR scans hitting /r/:id.
// Label:
//   - result: "ok", "rejected" (bad or missing token) or "unknown" (no such id)
var VerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Total number of QR verification attempts, by result.",
	},
	[]string{"result"},
)
