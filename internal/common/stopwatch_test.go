package common

import (
	"testing"
	"time"
)

func TestStopwatch(t *testing.T) {
	t.Parallel()

	stopwatch := NewStopwatch(50 * time.Millisecond)

	// Never started counts as stopped
	if stopped, _ := stopwatch.Stopped(); !stopped {
		t.Fatal("a stopwatch that was never started reports running")
	}

	stopwatch.Start()
	if !stopwatch.Running() {
		t.Fatal("stopwatch not running after Start")
	}
	if stopped, _ := stopwatch.Stopped(); stopped {
		t.Fatal("stopwatch reports stopped right after starting")
	}
	if stopwatch.Remaining() <= 0 {
		t.Fatal("no time remaining right after starting")
	}

	time.Sleep(70 * time.Millisecond)
	if stopped, _ := stopwatch.Stopped(); !stopped {
		t.Fatal("stopwatch still running after the timeout passed")
	}
	if remaining := stopwatch.Remaining(); remaining != 0 {
		t.Fatalf("Remaining() = %v after the timeout, want 0", remaining)
	}

	// Stop resets regardless of elapsed time
	stopwatch.Start()
	stopwatch.Stop()
	if stopwatch.Running() {
		t.Fatal("stopwatch running after Stop")
	}
}
