package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartCommitsTotal counts backend cart commit outcomes per operation.
	CartCommitsTotal *prometheus.CounterVec
	// CartEditsCoalescedTotal counts quantity edits absorbed by the debounce
	// window without producing a network commit.
	CartEditsCoalescedTotal prometheus.Counter
	// CartRefetchTotal counts authoritative cart refetches after failed commits.
	CartRefetchTotal prometheus.Counter
	// VoucherValidationsTotal counts voucher validation outcomes.
	VoucherValidationsTotal *prometheus.CounterVec
	// StaleResponsesTotal counts superseded async responses that were discarded.
	StaleResponsesTotal *prometheus.CounterVec
	// GeoFailuresTotal counts geocoding/routing/decoding failures per stage.
	GeoFailuresTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers gateway domain collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartCommitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_commits_total",
			Help:      "Count of backend cart commit outcomes.",
		}, []string{"op", "result"})
		CartEditsCoalescedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_edits_coalesced_total",
			Help:      "Quantity edits coalesced by the per-item debounce window.",
		})
		CartRefetchTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_refetch_total",
			Help:      "Authoritative cart refetches triggered by failed commits.",
		})
		VoucherValidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voucher_validations_total",
			Help:      "Count of voucher validation outcomes.",
		}, []string{"result"})
		StaleResponsesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Superseded asynchronous responses discarded on arrival.",
		}, []string{"kind"})
		GeoFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geo_failures_total",
			Help:      "Geocoding, routing and geometry decode failures.",
		}, []string{"stage"})

		reg.MustRegister(
			CartCommitsTotal,
			CartEditsCoalescedTotal,
			CartRefetchTotal,
			VoucherValidationsTotal,
			StaleResponsesTotal,
			GeoFailuresTotal,
		)
	})
}

func init() {
	// Collectors must exist before any service increments them, including in
	// tests that never run main.
	MustRegisterDomainMetrics("storefront", nil)
}
