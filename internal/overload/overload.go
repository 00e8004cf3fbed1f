// Package overload decides whether inbound traffic is being shed by the rate limiter
// often enough that the instance should report itself overloaded.
package overload

import "time"

// Counter reports inbound admissions and rate-limit denials. Implemented by traffic.Tracker.
type Counter interface {
	AdmittedCount(window time.Duration) int
	DenialCount(window time.Duration) int
}

// Status is one evaluation of the denial ratio.
type Status struct {
	Admitted   int
	Denied     int
	DenialPct  float64
	Overloaded bool
}

// Detector compares the share of denied requests in a window against a threshold.
type Detector struct {
	counter      Counter
	window       time.Duration
	thresholdPct int
}

// New returns a Detector. It never reports overload when window or thresholdPct is not positive.
func New(counter Counter, window time.Duration, thresholdPct int) *Detector {
	return &Detector{counter: counter, window: window, thresholdPct: thresholdPct}
}

// Check evaluates the current window. A nil Detector reports zero Status.
func (d *Detector) Check() Status {
	if d == nil || d.counter == nil || d.window <= 0 || d.thresholdPct <= 0 {
		return Status{}
	}
	s := Status{
		Admitted: d.counter.AdmittedCount(d.window),
		Denied:   d.counter.DenialCount(d.window),
	}
	total := s.Admitted + s.Denied
	if total == 0 {
		return s
	}
	s.DenialPct = float64(s.Denied) * 100 / float64(total)
	s.Overloaded = s.Denied > 0 && s.DenialPct >= float64(d.thresholdPct)
	return s
}
