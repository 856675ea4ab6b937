package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginFailureSpikeAlert(t *testing.T) {
	var alerts []AlertEvent
	collector := newMetricsCollector(func(e AlertEvent) { alerts = append(alerts, e) })
	collector.loginFailures.threshold = 5

	for range 4 {
		collector.recordEvent(LoginFailure)
	}
	assert.Empty(t, alerts, "no alert below threshold")

	collector.recordEvent(LoginFailure)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLoginFailureSpike, alerts[0].Type)
	assert.Equal(t, 5, alerts[0].Count)

	// The window resets after an alert.
	collector.recordEvent(LoginFailure)
	assert.Len(t, alerts, 1)
}

func TestGateDenialSpikeAlert(t *testing.T) {
	var alerts []AlertEvent
	collector := newMetricsCollector(func(e AlertEvent) { alerts = append(alerts, e) })
	collector.gateDenials.threshold = 3

	collector.recordEvent(GateForbidden)
	collector.recordEvent(GateAdmit)
	collector.recordEvent(GateRedirectLogin)
	assert.Empty(t, alerts)

	collector.recordEvent(GateForbidden)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertGateDenialSpike, alerts[0].Type)
	assert.Equal(t, 3, alerts[0].Threshold)
}

func TestMetricsSlidingWindowExpiry(t *testing.T) {
	var alerts []AlertEvent
	collector := newMetricsCollector(func(e AlertEvent) { alerts = append(alerts, e) })
	collector.loginFailures.threshold = 2

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	collector.now = func() time.Time { return now }
	collector.recordEvent(LoginFailure)

	now = now.Add(2 * defaultLoginFailureWindow)
	collector.recordEvent(LoginFailure)
	assert.Empty(t, alerts, "the first failure fell out of the window")
}

func TestMetricsNoAlertWithoutCallback(t *testing.T) {
	collector := newMetricsCollector(nil)
	collector.recordEvent(LoginFailure)
}

func TestMetricsNilCollector(t *testing.T) {
	var collector *metricsCollector
	collector.recordEvent(LoginFailure)
}
