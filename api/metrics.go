package api

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertLoginFailureSpike    AlertType = "login_failure_spike"
	AlertUploadRejectionSpike AlertType = "upload_rejection_spike"
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

// slidingCounter fires once per window when its threshold is reached.
type slidingCounter struct {
	alert     AlertType
	message   string
	times     []time.Time
	window    time.Duration
	threshold int
}

// add records an event at now and returns an alert when the threshold is
// reached. The window is cleared after firing so a single spike alerts once.
func (c *slidingCounter) add(now time.Time) (AlertEvent, bool) {
	c.times = trimWindow(append(c.times, now), now, c.window)
	if len(c.times) < c.threshold {
		return AlertEvent{}, false
	}
	e := AlertEvent{
		Type:      c.alert,
		Message:   c.message,
		Count:     len(c.times),
		Threshold: c.threshold,
		Timestamp: now,
	}
	c.times = c.times[:0]
	return e, true
}

// metricsCollector tracks sliding window counters for anomaly detection.
type metricsCollector struct {
	mu sync.Mutex

	loginFailures    slidingCounter
	uploadRejections slidingCounter

	alertFn AlertFunc
}

const (
	defaultLoginFailureWindow       = 1 * time.Minute
	defaultLoginFailureThreshold    = 50
	defaultUploadRejectionWindow    = 5 * time.Minute
	defaultUploadRejectionThreshold = 20
)

func newMetricsCollector(alertFn AlertFunc) *metricsCollector {
	return &metricsCollector{
		loginFailures: slidingCounter{
			alert:     AlertLoginFailureSpike,
			message:   "login failure rate exceeds threshold",
			window:    defaultLoginFailureWindow,
			threshold: defaultLoginFailureThreshold,
		},
		uploadRejections: slidingCounter{
			alert:     AlertUploadRejectionSpike,
			message:   "rejected upload rate exceeds threshold",
			window:    defaultUploadRejectionWindow,
			threshold: defaultUploadRejectionThreshold,
		},
		alertFn: alertFn,
	}
}

// recordEvent inspects an audit event and updates the relevant counters.
func (m *metricsCollector) recordEvent(event AuditEvent) {
	if m == nil || m.alertFn == nil {
		return
	}

	var counter *slidingCounter
	switch event {
	case AuditLoginFailure:
		counter = &m.loginFailures
	case AuditUploadRejected:
		counter = &m.uploadRejections
	default:
		return
	}

	m.mu.Lock()
	e, fire := counter.add(time.Now())
	m.mu.Unlock()
	if fire {
		m.alertFn(e)
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
