// ABOUTME: Prometheus collectors for gate decisions, realtime sync and transfers
// ABOUTME: Registry is injected; the gateway exposes them via promhttp

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gate decision outcomes
const (
	GateAllowed       = "allowed"
	GateRedirected    = "redirected"
	GateDenied        = "denied"
	GateMissingTenant = "missing_tenant"
)

// Collector records platform metrics. A nil *Collector is safe to use and
// records nothing, so components can treat metrics as optional.
type Collector struct {
	gateDecisions *prometheus.CounterVec
	eventsApplied *prometheus.CounterVec
	eventsDropped *prometheus.CounterVec
	transfers     *prometheus.CounterVec
	otpIssued     prometheus.Counter
	otpRedeemed   prometheus.Counter
}

// NewCollector creates a collector and registers it with the given registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lantern_gate_decisions_total",
			Help: "Access gate decisions by outcome",
		}, []string{"outcome"}),
		eventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lantern_realtime_events_applied_total",
			Help: "Change events applied to collections by operation",
		}, []string{"op"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lantern_realtime_events_dropped_total",
			Help: "Change events dropped by reason",
		}, []string{"reason"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lantern_conversation_transfers_total",
			Help: "Conversation ownership transfers by target type",
		}, []string{"target_type"}),
		otpIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lantern_otp_issued_total",
			Help: "One-time sign-in codes issued",
		}),
		otpRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lantern_otp_redeemed_total",
			Help: "One-time sign-in codes redeemed",
		}),
	}

	reg.MustRegister(
		c.gateDecisions,
		c.eventsApplied,
		c.eventsDropped,
		c.transfers,
		c.otpIssued,
		c.otpRedeemed,
	)
	return c
}

// RecordGateDecision counts an access gate outcome
func (c *Collector) RecordGateDecision(outcome string) {
	if c == nil {
		return
	}
	c.gateDecisions.WithLabelValues(outcome).Inc()
}

// RecordEventApplied counts a change event applied to a collection
func (c *Collector) RecordEventApplied(op string) {
	if c == nil {
		return
	}
	c.eventsApplied.WithLabelValues(op).Inc()
}

// RecordEventDropped counts a change event dropped during reconciliation
func (c *Collector) RecordEventDropped(reason string) {
	if c == nil {
		return
	}
	c.eventsDropped.WithLabelValues(reason).Inc()
}

// RecordTransfer counts a conversation transfer
func (c *Collector) RecordTransfer(targetType string) {
	if c == nil {
		return
	}
	c.transfers.WithLabelValues(targetType).Inc()
}

// RecordOTPIssued counts an issued sign-in code
func (c *Collector) RecordOTPIssued() {
	if c == nil {
		return
	}
	c.otpIssued.Inc()
}

// RecordOTPRedeemed counts a redeemed sign-in code
func (c *Collector) RecordOTPRedeemed() {
	if c == nil {
		return
	}
	c.otpRedeemed.Inc()
}

// Handler returns the scrape handler for the given gatherer
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
