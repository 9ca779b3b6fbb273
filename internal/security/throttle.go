package security

import (
	"context"
	"sync"
	"time"
)

// LoginThrottle counts failed logins per key (usually a client IP) over a
// sliding window and blocks the key once the count reaches the threshold.
// State is process-local and lost on restart.
type LoginThrottle struct {
	mu          sync.Mutex
	records     map[string]*failureRecord
	window      time.Duration
	maxFailures int
	blockFor    time.Duration
	now         func() time.Time
}

type failureRecord struct {
	failures     []time.Time // ascending
	blockedUntil time.Time   // zero when not blocked
}

// NewLoginThrottle creates a throttle that blocks a key for blockFor once it
// has maxFailures failures within window.
func NewLoginThrottle(window time.Duration, maxFailures int, blockFor time.Duration) *LoginThrottle {
	return &LoginThrottle{
		records:     make(map[string]*failureRecord),
		window:      window,
		maxFailures: maxFailures,
		blockFor:    blockFor,
		now:         time.Now,
	}
}

// IsBlocked reports whether key is currently blocked. An expired block is
// cleared as a side effect.
func (t *LoginThrottle) IsBlocked(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[key]
	if !ok || rec.blockedUntil.IsZero() {
		return false
	}
	if t.now().Before(rec.blockedUntil) {
		return true
	}
	rec.blockedUntil = time.Time{}
	return false
}

// RecordFailure registers a failed attempt for key and reports whether the key
// is blocked afterwards. The threshold is checked on every failure, so a key
// that fails again right after a block expires is blocked again.
func (t *LoginThrottle) RecordFailure(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	rec, ok := t.records[key]
	if !ok {
		rec = &failureRecord{}
		t.records[key] = rec
	}

	rec.failures = append(pruneBefore(rec.failures, now.Add(-t.window)), now)
	if len(rec.failures) >= t.maxFailures {
		rec.blockedUntil = now.Add(t.blockFor)
	}
	return now.Before(rec.blockedUntil)
}

// Clear forgets everything about key. Called after a successful login.
func (t *LoginThrottle) Clear(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, key)
}

// FailureCount returns the number of in-window failures for key.
func (t *LoginThrottle) FailureCount(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[key]
	if !ok {
		return 0
	}
	rec.failures = pruneBefore(rec.failures, t.now().Add(-t.window))
	return len(rec.failures)
}

// Sweep drops records with no in-window failures and no active block and
// returns how many were removed.
func (t *LoginThrottle) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for key, rec := range t.records {
		rec.failures = pruneBefore(rec.failures, now.Add(-t.window))
		if len(rec.failures) == 0 && !now.Before(rec.blockedUntil) {
			delete(t.records, key)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (t *LoginThrottle) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep()
		}
	}
}

// pruneBefore drops timestamps older than cutoff from an ascending slice.
func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}
	return ts[i:]
}
