// ABOUTME: Tests for the metrics collector
// ABOUTME: Verifies counter registration, nil safety and the scrape endpoint

package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_CountersIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGateDecision(GateAllowed)
	c.RecordGateDecision(GateAllowed)
	c.RecordGateDecision(GateDenied)
	c.RecordEventApplied("insert")
	c.RecordEventDropped("stale")
	c.RecordTransfer("queue")
	c.RecordOTPIssued()
	c.RecordOTPRedeemed()

	assert.Equal(t, float64(2), testutil.ToFloat64(c.gateDecisions.WithLabelValues(GateAllowed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.gateDecisions.WithLabelValues(GateDenied)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.eventsApplied.WithLabelValues("insert")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.eventsDropped.WithLabelValues("stale")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.transfers.WithLabelValues("queue")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.otpIssued))
}

func TestCollector_NilIsSafe(t *testing.T) {
	var c *Collector
	c.RecordGateDecision(GateAllowed)
	c.RecordEventApplied("insert")
	c.RecordEventDropped("stale")
	c.RecordTransfer("agent")
	c.RecordOTPIssued()
	c.RecordOTPRedeemed()
}

func TestHandler_Scrape(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordTransfer("agent")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `lantern_conversation_transfers_total{target_type="agent"} 1`)
}
