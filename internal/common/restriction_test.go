package common

import (
	"testing"
	"time"
)

func TestRestrictionAnalyse(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	restriction := Restriction{Requests: 2, Duration: time.Minute}

	tests := []struct {
		name    string
		history []time.Time
		allowed bool
		wait    time.Duration
	}{
		{
			name:    "empty history",
			history: nil,
			allowed: true,
		},
		{
			name:    "room left in the window",
			history: []time.Time{now.Add(-30 * time.Second)},
			allowed: true,
		},
		{
			name:    "old requests have fallen out of the window",
			history: []time.Time{now.Add(-2 * time.Minute), now.Add(-90 * time.Second)},
			allowed: true,
		},
		{
			name:    "window full",
			history: []time.Time{now.Add(-40 * time.Second), now.Add(-10 * time.Second)},
			allowed: false,
			wait:    20 * time.Second,
		},
		{
			name:    "only recent requests count against the limit",
			history: []time.Time{now.Add(-5 * time.Minute), now.Add(-45 * time.Second), now.Add(-15 * time.Second)},
			allowed: false,
			wait:    15 * time.Second,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			analysis := restriction.Analyse(tt.history, now)
			if analysis.Allowed != tt.allowed {
				t.Fatalf("Analyse() allowed = %v, want %v", analysis.Allowed, tt.allowed)
			}
			if !tt.allowed && analysis.Wait != tt.wait {
				t.Fatalf("Analyse() wait = %v, want %v", analysis.Wait, tt.wait)
			}
		})
	}
}
