package common

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RateLimiter keeps a history of recent requests and decides, against a set
// of restrictions, whether a new request may go out. Vital requests (user
// facing lookups) can wait for a slot; non vital requests (background
// polling) are simply rejected and retried on a later cycle.
type RateLimiter struct {
	mu           sync.Mutex
	restrictions []Restriction
	history      []time.Time
	window       time.Duration // longest restriction, bounds the history
	penalty      Stopwatch     // started when the upstream reports a rate limit
}

func NewRateLimiter(restrictions []Restriction, penalty time.Duration) *RateLimiter {
	rl := &RateLimiter{
		restrictions: append([]Restriction{}, restrictions...),
		penalty:      NewStopwatch(penalty),
	}
	for _, restriction := range rl.restrictions {
		if restriction.Duration > rl.window {
			rl.window = restriction.Duration
		}
	}
	return rl
}

// Decide if a request is allowed right now. If it is, it is recorded
// in the history immediately
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	analysis := rl.analyse(time.Now())
	if analysis.Allowed {
		rl.history = append(rl.history, time.Now())
	}
	return analysis.Allowed
}

// Block until a request is allowed, or the context is cancelled.
// Meant for vital requests that should not be dropped
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		analysis := rl.analyse(time.Now())
		if analysis.Allowed {
			rl.history = append(rl.history, time.Now())
			rl.mu.Unlock()
			return nil
		}
		rl.mu.Unlock()

		log.Debug().Dur("wait", analysis.Wait).Msg("Request delayed by rate limiter")
		timer := time.NewTimer(analysis.Wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Tell the rate limiter the upstream has answered with a rate limit.
// No request will be allowed until the penalty timeout has passed
func (rl *RateLimiter) ReceivedRateLimit() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.penalty.Start()
}

func (rl *RateLimiter) analyse(now time.Time) Analysis {

	// An upstream rate limit overrules my own bookkeeping
	if stopped, _ := rl.penalty.Stopped(); !stopped {
		return Analysis{Wait: rl.penalty.Remaining()}
	}
	rl.penalty.Stop()

	rl.trim(now)

	// Merge the analyses of all restrictions: the request is allowed
	// only if every restriction allows it, and the wait is the longest
	// wait any of them demands
	merged := Analysis{Allowed: true}
	for i := range rl.restrictions {
		analysis := rl.restrictions[i].Analyse(rl.history, now)
		merged.Allowed = merged.Allowed && analysis.Allowed
		if analysis.Wait > merged.Wait {
			merged.Wait = analysis.Wait
		}
	}
	return merged
}

// Trim the current history, leaving only the requests that are young
// enough to be affected by at least one restriction.
// Times are stored in chronological order
func (rl *RateLimiter) trim(now time.Time) {
	index := len(rl.history)
	for i := len(rl.history) - 1; i >= 0; i-- {
		if now.Sub(rl.history[i]) > rl.window {
			break
		}
		index = i
	}
	rl.history = rl.history[index:]
}
