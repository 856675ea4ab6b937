package audit

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertLoginFailureSpike AlertType = "login_failure_spike"
	AlertGateDenialSpike   AlertType = "gate_denial_spike"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

// window is a sliding-window counter that fires once per spike.
type window struct {
	hits      []time.Time
	span      time.Duration
	threshold int
}

// add records a hit at now and reports the count when the threshold is
// reached, resetting the window.
func (w *window) add(now time.Time) (int, bool) {
	w.hits = append(w.hits, now)
	w.hits = trimWindow(w.hits, now, w.span)
	if len(w.hits) < w.threshold {
		return 0, false
	}
	n := len(w.hits)
	// Reset to avoid repeated alerts within the same spike.
	w.hits = w.hits[:0]
	return n, true
}

// metricsCollector tracks sliding window counters for anomaly detection.
type metricsCollector struct {
	mu sync.Mutex

	loginFailures window
	gateDenials   window

	alertFn AlertFunc
	now     func() time.Time
}

const (
	defaultLoginFailureWindow    = 1 * time.Minute
	defaultLoginFailureThreshold = 50
	defaultGateDenialWindow      = 5 * time.Minute
	defaultGateDenialThreshold   = 100
)

func newMetricsCollector(alertFn AlertFunc) *metricsCollector {
	return &metricsCollector{
		loginFailures: window{span: defaultLoginFailureWindow, threshold: defaultLoginFailureThreshold},
		gateDenials:   window{span: defaultGateDenialWindow, threshold: defaultGateDenialThreshold},
		alertFn:       alertFn,
		now:           time.Now,
	}
}

// recordEvent inspects an audit event and updates the relevant counters.
func (m *metricsCollector) recordEvent(event Event) {
	if m == nil || m.alertFn == nil {
		return
	}
	switch event {
	case LoginFailure:
		m.record(&m.loginFailures, AlertLoginFailureSpike, "login failure rate exceeds threshold")
	case GateForbidden, GateRedirectLogin:
		m.record(&m.gateDenials, AlertGateDenialSpike, "gate denial rate exceeds threshold")
	}
}

func (m *metricsCollector) record(w *window, typ AlertType, msg string) {
	m.mu.Lock()
	now := m.now()
	count, fire := w.add(now)
	threshold := w.threshold
	m.mu.Unlock()

	if fire {
		m.alertFn(AlertEvent{
			Type:      typ,
			Message:   msg,
			Count:     count,
			Threshold: threshold,
			Timestamp: now,
		})
	}
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
