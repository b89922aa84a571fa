package analysis

import (
	"fmt"
	"time"
)

// RemainingTime returns how much of the test clock is left at now.
// Both completed pauses (totalPaused) and a pause in progress (pausedAt)
// push the deadline out, so a paused test never loses time.
func RemainingTime(startedAt time.Time, durationMinutes int, totalPaused time.Duration, pausedAt *time.Time, now time.Time) time.Duration {
	deadline := startedAt.Add(time.Duration(durationMinutes)*time.Minute + totalPaused)
	if pausedAt != nil {
		deadline = deadline.Add(now.Sub(*pausedAt))
	}
	return max(0, deadline.Sub(now))
}

// FormatClock renders d as H:MM:SS, or M:SS under an hour.
func FormatClock(d time.Duration) string {
	total := int(d / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
