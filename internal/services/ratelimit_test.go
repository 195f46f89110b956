package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSweepRateLimiter_MinuteWindow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newSweepRateLimiter(3, 100)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(), "invocation %d should pass", i+1)
	}
	assert.False(t, l.Allow(), "fourth invocation within the minute must be rejected")

	// Rejections are not counted.
	perMinute, _ := l.Counts()
	assert.Equal(t, 3, perMinute)

	// Window rollover resets the counter.
	now = now.Add(61 * time.Second)
	assert.True(t, l.Allow())
	perMinute, _ = l.Counts()
	assert.Equal(t, 1, perMinute)
}

func TestSweepRateLimiter_HourWindowOutlivesMinuteResets(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newSweepRateLimiter(10, 12)
	l.now = func() time.Time { return now }

	// Spread invocations across minutes; the hourly cap still accumulates.
	for i := 0; i < 12; i++ {
		assert.True(t, l.Allow())
		now = now.Add(2 * time.Minute)
	}
	assert.False(t, l.Allow(), "hourly cap must reject even though the minute window is fresh")

	now = now.Add(time.Hour)
	assert.True(t, l.Allow())
}
