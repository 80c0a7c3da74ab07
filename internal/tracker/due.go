package tracker

import (
	"time"
)

// Due selects the accounts worth polling right now: those never checked,
// and those whose check interval has elapsed since the last check.
//
// This is a full scan of the roster on every tick. At the roster sizes
// this bot serves, the scan is cheaper than keeping a priority queue in
// sync with state changes; if rosters grow past a few thousand accounts,
// a min heap keyed by next due time is the replacement.
// Output order is unspecified
func Due(roster []Entry, policy *IntervalPolicy, now time.Time) []Entry {

	var due []Entry
	for _, entry := range roster {
		if entry.State.LastCheckedAt == nil {
			due = append(due, entry)
			continue
		}
		interval := policy.Interval(entry.State.LastMatchTime, now)
		if now.Sub(*entry.State.LastCheckedAt) >= interval {
			due = append(due, entry)
		}
	}
	return due
}
