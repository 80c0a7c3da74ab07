package tracker

import (
	"time"
)

// Fallbacks in case the policy is constructed with zero values, so that
// the policy stays total and never returns a non positive interval
const (
	fallbackDefault = 10 * time.Minute
	fallbackMax     = 2 * time.Hour
)

// Tier says that an account whose last match is at most Within old
// is checked every Interval
type Tier struct {
	Within   time.Duration
	Interval time.Duration
}

// IntervalPolicy decides how often an account should be polled, as a step
// function of how recently it was seen in a match. Accounts that just
// played are checked often; dormant accounts rarely. The tiers are plain
// data so operators can retune them in the config file without touching
// code. Tiers must be sorted by ascending Within
type IntervalPolicy struct {
	Tiers []Tier
	// Default is used for accounts with no match history
	Default time.Duration
	// Max caps the interval for accounts dormant beyond every tier
	Max time.Duration
}

// Interval for an account whose most recent known match was at lastMatch.
// Total over all inputs: a nil lastMatch yields the default interval, and
// a lastMatch in the future is treated as just played
func (policy *IntervalPolicy) Interval(lastMatch *time.Time, now time.Time) time.Duration {

	if lastMatch == nil {
		return positive(policy.Default, fallbackDefault)
	}

	// A timestamp in the future can only be clock skew; treat as just played
	dormant := now.Sub(*lastMatch)
	if dormant < 0 {
		dormant = 0
	}

	for _, tier := range policy.Tiers {
		if dormant <= tier.Within {
			return positive(tier.Interval, fallbackDefault)
		}
	}
	return positive(policy.Max, fallbackMax)
}

func positive(d time.Duration, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
