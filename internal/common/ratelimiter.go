package common

import (
	"sync"
	"time"
)

type Analysis struct {
	Allowed bool          // If the request is allowed
	Wait    time.Duration // The minimal time to wait before the request is allowed
}

// RateLimiter throttles discord calls that may fire in quick bursts,
// like editing the summary message after every accrual event. Requests
// over the limit are simply dropped; the next event refreshes the
// message anyway
type RateLimiter struct {
	mu           sync.Mutex
	restrictions []Restriction // Restrictions to consider
	duration     time.Duration // Min duration to wait for all restrictions to be lifted
	history      []time.Time   // History of requests
}

func NewRateLimiter(restrictions []Restriction) *RateLimiter {
	rl := RateLimiter{restrictions: restrictions}
	for _, restriction := range restrictions {
		if restriction.Duration > rl.duration {
			rl.duration = restriction.Duration
		}
	}
	return &rl
}

// Allow decides if a request may go through right now. An allowed
// request is recorded in the history; a rejected one is not
func (rl *RateLimiter) Allow() bool {

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.trim()
	if analysis := rl.analyse(); !analysis.Allowed {
		return false
	}
	rl.history = append(rl.history, time.Now())
	return true
}

// Trim the current history, leaving only the requests
// that are young enough to be affected by at least one restriction
func (rl *RateLimiter) trim() {
	currentTime := time.Now()
	// Find the index from which we need to keep the history.
	// Start searching at the end of the slice.
	// Times are stored in chronological order
	index := 0
	for i := len(rl.history) - 1; i >= 0; i-- {
		if currentTime.Sub(rl.history[i]) > rl.duration {
			index = i + 1
			break
		}
	}
	rl.history = rl.history[index:]
}

func (rl *RateLimiter) analyse() Analysis {

	// Merge the analyses of all the restrictions
	var wait time.Duration
	allowed := true
	for i := range rl.restrictions {
		analysis := rl.restrictions[i].Analyse(rl.history)
		allowed = allowed && analysis.Allowed
		if analysis.Wait > wait {
			wait = analysis.Wait
		}
	}
	return Analysis{allowed, wait}
}
