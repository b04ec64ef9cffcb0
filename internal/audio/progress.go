package audio

import (
	"math"
	"time"
)

// ProgressPercent converts a playback position into 0-100.
// It reports false when the duration is unknown so callers skip the update.
func ProgressPercent(elapsed, duration time.Duration) (float64, bool) {
	if duration <= 0 {
		return 0, false
	}
	p := float64(elapsed) / float64(duration) * 100
	if math.IsNaN(p) {
		return 0, false
	}
	return math.Max(0, math.Min(100, p)), true
}
