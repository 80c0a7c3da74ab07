package common

import "time"

// A restriction means that only the specified number of requests
// are allowed for a specific time duration
type Restriction struct {
	Requests int
	Duration time.Duration
}

// The verdict of a restriction (or a set of them) on a request:
// whether it is allowed right now, and if not, the minimal time
// to wait before it would be
type Analysis struct {
	Allowed bool
	Wait    time.Duration
}

// Analyse the recent history of requests and find out
// if a new request at the current time should be allowed or not
func (rest *Restriction) Analyse(history []time.Time, now time.Time) Analysis {

	// Count the requests that have been served within my duration.
	// Start counting from the end.
	// If one request is too old, the rest will be too
	count := 0
	for i := len(history) - 1; i >= 0; i-- {
		if now.Sub(history[i]) > rest.Duration {
			break
		}
		count++
	}
	if count < rest.Requests {
		return Analysis{Allowed: true}
	}

	// The restriction lifts when the oldest request inside
	// the window falls out of it
	oldest := history[len(history)-count]
	return Analysis{Wait: oldest.Add(rest.Duration).Sub(now)}
}
