package services

import (
	"sync"
	"time"
)

// sweepRateLimiter tracks process-wide sweep invocations across fixed
// one-minute and one-hour windows. Counters reset when their window
// rolls over. State is process-local: running more than one
// reconciliation process multiplies the effective limit, which a
// horizontally-scaled deployment would need to solve with a shared
// counter store.
type sweepRateLimiter struct {
	mu sync.Mutex

	maxPerMinute int
	maxPerHour   int

	minuteWindow time.Time
	minuteCount  int
	hourWindow   time.Time
	hourCount    int

	now func() time.Time // injectable for tests
}

func newSweepRateLimiter(maxPerMinute, maxPerHour int) *sweepRateLimiter {
	return &sweepRateLimiter{
		maxPerMinute: maxPerMinute,
		maxPerHour:   maxPerHour,
		now:          time.Now,
	}
}

// Allow records one sweep invocation and reports whether it is within
// both caps. A rejected invocation is not counted against the windows.
func (l *sweepRateLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if now.Sub(l.minuteWindow) >= time.Minute {
		l.minuteWindow = now
		l.minuteCount = 0
	}
	if now.Sub(l.hourWindow) >= time.Hour {
		l.hourWindow = now
		l.hourCount = 0
	}

	if l.minuteCount >= l.maxPerMinute || l.hourCount >= l.maxPerHour {
		return false
	}

	l.minuteCount++
	l.hourCount++
	return true
}

// Counts returns the invocation totals of the current windows.
func (l *sweepRateLimiter) Counts() (perMinute, perHour int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minuteCount, l.hourCount
}
