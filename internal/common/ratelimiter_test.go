package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	rl := NewRateLimiter([]Restriction{{Requests: 3, Duration: time.Minute}})

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(), "request %d should be allowed", i+1)
	}
	assert.False(t, rl.Allow(), "request over the limit should be dropped")
}

func TestRateLimiter_WindowExpires(t *testing.T) {
	rl := NewRateLimiter([]Restriction{{Requests: 1, Duration: 10 * time.Millisecond}})

	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, rl.Allow())
}

func TestRateLimiter_NoRestrictions(t *testing.T) {
	rl := NewRateLimiter(nil)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow())
	}
}

func TestTimedExecutor(t *testing.T) {
	runs := 0
	te := NewTimedExecutor(10*time.Millisecond, func() time.Duration {
		runs++
		return 10 * time.Millisecond
	})

	te.Execute()
	assert.Zero(t, runs, "must not run before the delay elapses")

	time.Sleep(20 * time.Millisecond)
	te.Execute()
	te.Execute()
	assert.Equal(t, 1, runs, "must run once per elapsed delay")
}
