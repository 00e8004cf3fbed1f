// Package traffic keeps sliding windows of request outcomes per upstream provider.
// It is the single source of truth for /health error rates and inbound admission counts.
package traffic

import (
	"sort"
	"sync"
	"time"
)

// DefaultRetention bounds how long outcomes are kept.
const DefaultRetention = 5 * time.Minute

// outcomes holds timestamps for one upstream.
type outcomes struct {
	successTimes []time.Time
	errorTimes   []time.Time
}

// Stats summarizes one upstream within a window.
type Stats struct {
	Errors int
	Total  int
}

// ErrorPct returns the error percentage, or 0 with no traffic.
func (s Stats) ErrorPct() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Errors) * 100 / float64(s.Total)
}

// Tracker maintains sliding windows of outcome timestamps per upstream plus inbound denials.
// It satisfies client.OutcomeRecorder. Safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	retention   time.Duration
	now         func() time.Time
	upstreams     map[string]*outcomes
	deniedTimes   []time.Time
	admittedTimes []time.Time
}

// NewTracker returns a Tracker keeping outcomes for retention (DefaultRetention if <= 0).
func NewTracker(retention time.Duration) *Tracker {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Tracker{
		retention: retention,
		now:       time.Now,
		upstreams: make(map[string]*outcomes),
	}
}

// RecordSuccess records a successful call to upstream.
func (t *Tracker) RecordSuccess(upstream string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o := t.outcomesLocked(upstream)
	now := t.now()
	o.successTimes = append(o.successTimes, now)
	t.pruneLocked(now)
}

// RecordError records a failed call to upstream (status error, timeout, open breaker).
func (t *Tracker) RecordError(upstream string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o := t.outcomesLocked(upstream)
	now := t.now()
	o.errorTimes = append(o.errorTimes, now)
	t.pruneLocked(now)
}

// RecordDenied records an inbound rate-limit denial (429).
func (t *Tracker) RecordDenied() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.deniedTimes = append(t.deniedTimes, now)
	t.pruneLocked(now)
}

// RecordAdmitted records an inbound request that passed the rate limiter.
func (t *Tracker) RecordAdmitted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.admittedTimes = append(t.admittedTimes, now)
	t.pruneLocked(now)
}

// ErrorRate returns (errorCount, totalCount) for upstream within the window.
func (t *Tracker) ErrorRate(upstream string, window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.upstreams[upstream]
	if !ok {
		return 0, 0
	}
	cutoff := t.now().Add(-window)
	errCount := countInWindow(o.errorTimes, cutoff)
	return errCount, errCount + countInWindow(o.successTimes, cutoff)
}

// Snapshot returns Stats for every upstream seen so far.
func (t *Tracker) Snapshot(window time.Duration) map[string]Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	out := make(map[string]Stats, len(t.upstreams))
	for name, o := range t.upstreams {
		errCount := countInWindow(o.errorTimes, cutoff)
		out[name] = Stats{Errors: errCount, Total: errCount + countInWindow(o.successTimes, cutoff)}
	}
	return out
}

// Upstreams returns the names of upstreams with recorded outcomes, sorted.
func (t *Tracker) Upstreams() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.upstreams))
	for name := range t.upstreams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DenialCount returns the number of rate-limit denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countInWindow(t.deniedTimes, t.now().Add(-window))
}

// AdmittedCount returns the number of admitted inbound requests within the window.
func (t *Tracker) AdmittedCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countInWindow(t.admittedTimes, t.now().Add(-window))
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.upstreams = make(map[string]*outcomes)
	t.deniedTimes = nil
	t.admittedTimes = nil
}

func (t *Tracker) outcomesLocked(upstream string) *outcomes {
	o, ok := t.upstreams[upstream]
	if !ok {
		o = &outcomes{}
		t.upstreams[upstream] = o
	}
	return o
}

// countInWindow counts timestamps that are not before the cutoff time.
func countInWindow(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than the retention period. Must be called with mutex held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.retention)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	for _, o := range t.upstreams {
		prune(&o.successTimes)
		prune(&o.errorTimes)
	}
	prune(&t.deniedTimes)
	prune(&t.admittedTimes)
}
