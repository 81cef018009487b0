package callsession

import (
	"fmt"
	"time"
)

// FormatDuration renders a call duration for summary display, e.g. 45s -> "0:45",
// 3725s -> "1:02:05". Negative inputs clamp to zero.
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatDurationMs is FormatDuration over a millisecond count, the unit the
// API reports on ended calls.
func FormatDurationMs(ms int64) string {
	return FormatDuration(time.Duration(ms) * time.Millisecond)
}

// Elapsed computes whole milliseconds since connectedAt, the unit DurationMs
// carries. The value is recomputed from the fixed timestamp rather than
// accumulated, so tick jitter cannot drift it.
func Elapsed(connectedAt, now time.Time) int64 {
	if connectedAt.IsZero() || now.Before(connectedAt) {
		return 0
	}
	return now.Sub(connectedAt).Milliseconds()
}
