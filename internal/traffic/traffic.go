// Package traffic keeps sliding windows of record backend call outcomes and
// rate-limit denials. Health reporting reads its error rate.
package traffic

import (
	"sync"
	"time"
)

type outcome uint8

const (
	success outcome = iota
	failure
	denied
)

type event struct {
	at   time.Time
	kind outcome
}

// retention bounds how far back any window can look.
const retention = 10 * time.Minute

var defaultTracker = NewTracker(nil)

// RecordSuccess records a successful backend call.
func RecordSuccess() { defaultTracker.Record(success) }

// RecordError records a failed backend call (after retries).
func RecordError() { defaultTracker.Record(failure) }

// RecordDenied records a rate-limit denial (429).
func RecordDenied() { defaultTracker.Record(denied) }

// RequestCount returns outcomes of every kind within the window.
func RequestCount(window time.Duration) int { return defaultTracker.RequestCount(window) }

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int { return defaultTracker.DenialCount(window) }

// ErrorRate returns (errorCount, totalCount) within the window. Denials are excluded.
func ErrorRate(window time.Duration) (errors, total int) { return defaultTracker.ErrorRate(window) }

// Reset clears all recorded outcomes. For tests only.
func Reset() { defaultTracker.Reset() }

// Tracker is a time-ordered log of outcomes pruned to retention.
type Tracker struct {
	mu     sync.Mutex
	events []event
	now    func() time.Time
}

// NewTracker returns a Tracker using now as its clock (time.Now when nil).
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

// Record appends one outcome at the current time.
func (t *Tracker) Record(kind outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.events = append(t.events, event{at: now, kind: kind})
	t.pruneLocked(now)
}

// RequestCount returns outcomes of every kind within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	s, f, d := t.counts(window)
	return s + f + d
}

// DenialCount returns the number of denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	_, _, d := t.counts(window)
	return d
}

// ErrorRate returns (errorCount, successCount+errorCount) within the window.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	s, f, _ := t.counts(window)
	return f, s + f
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}

func (t *Tracker) counts(window time.Duration) (succeeded, failed, deniedN int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	for i := len(t.events) - 1; i >= 0; i-- {
		e := t.events[i]
		if e.at.Before(cutoff) {
			break
		}
		switch e.kind {
		case success:
			succeeded++
		case failure:
			failed++
		case denied:
			deniedN++
		}
	}
	return succeeded, failed, deniedN
}

// pruneLocked drops events older than retention. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	i := 0
	for ; i < len(t.events) && t.events[i].at.Before(cutoff); i++ {
	}
	if i > 0 {
		t.events = append(t.events[:0], t.events[i:]...)
	}
}
