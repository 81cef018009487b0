package callctrl

import (
	"testing"
	"time"
)

func TestDurationTimer_ElapsedFromConnectedAt(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	timer := NewDurationTimer(nil)
	timer.clock = func() time.Time { return now }

	if timer.Elapsed() != 0 {
		t.Fatalf("expected zero before Start")
	}

	timer.Start(now.Add(-45 * time.Second))
	defer timer.Stop()
	if got := timer.Elapsed(); got != 45*time.Second {
		t.Fatalf("expected 45s, got %v", got)
	}

	// Time only moves forward no matter how ticks land.
	now = now.Add(17 * time.Second)
	if got := timer.Elapsed(); got != 62*time.Second {
		t.Fatalf("expected 62s, got %v", got)
	}
}

func TestDurationTimer_StartIsIdempotent(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	timer := NewDurationTimer(nil)
	timer.clock = func() time.Time { return now }

	timer.Start(now.Add(-10 * time.Second))
	defer timer.Stop()
	// A second Start with a different timestamp must not reset the clock.
	timer.Start(now)

	if got := timer.Elapsed(); got != 10*time.Second {
		t.Fatalf("expected 10s after duplicate Start, got %v", got)
	}
}

func TestDurationTimer_StopIsIdempotent(t *testing.T) {
	timer := NewDurationTimer(nil)
	timer.Stop()
	timer.Start(time.Now())
	timer.Stop()
	timer.Stop()
}

func TestDurationTimer_NeverNegative(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	timer := NewDurationTimer(nil)
	timer.clock = func() time.Time { return now }

	// A connection timestamp slightly in the future clamps to zero.
	timer.Start(now.Add(2 * time.Second))
	defer timer.Stop()
	if got := timer.Elapsed(); got != 0 {
		t.Fatalf("expected clamp to zero, got %v", got)
	}
}
