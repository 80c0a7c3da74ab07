package common

import (
	"time"
)

// This stopwatch keeps track of time. You can set a timeout for it,
// make it start counting time, and ask it if the timeout has been reached
type Stopwatch struct {
	Timeout   time.Duration
	startTime time.Time
	running   bool
}

func NewStopwatch(timeout time.Duration) Stopwatch {
	return Stopwatch{Timeout: timeout}
}

func (s *Stopwatch) Start() {
	s.running = true
	s.startTime = time.Now()
}

func (s *Stopwatch) Stop() {
	s.running = false
}

func (s *Stopwatch) Running() bool {
	return s.running
}

// Report whether the timeout has been reached, together with the time
// elapsed beyond it. A stopwatch that was never started counts as stopped
func (s *Stopwatch) Stopped() (bool, time.Duration) {
	if !s.running {
		return true, 0
	}
	elapsed := time.Since(s.startTime.Add(s.Timeout))
	return elapsed >= 0, elapsed
}

// Time remaining until the timeout is reached. Zero if the stopwatch
// is not running or the timeout has already passed
func (s *Stopwatch) Remaining() time.Duration {
	if !s.running {
		return 0
	}
	remaining := time.Until(s.startTime.Add(s.Timeout))
	if remaining < 0 {
		return 0
	}
	return remaining
}
