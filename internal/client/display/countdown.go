package display

import (
	"fmt"
	"time"
)

// Remaining returns the whole seconds left until expiresAt, never
// negative.
func Remaining(expiresAt, now time.Time) int {
	d := expiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

// FormatCountdown renders seconds as MM:SS.  Negative input renders as
// 00:00.
func FormatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// RefreshDelay is how long to wait before fetching the next ticket:
// max(expiresAt-now-margin, min).  When the ticket lifetime is shorter
// than margin+min the result lands after expiry and the display shows
// 00:00 until the reload fires.
func RefreshDelay(expiresAt, now time.Time, margin, min time.Duration) time.Duration {
	d := expiresAt.Sub(now) - margin
	if d < min {
		return min
	}
	return d
}
