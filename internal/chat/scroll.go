package chat

import "time"

const (
	// ManualScrollGrace is how long after a manual scroll auto-scroll stays off.
	ManualScrollGrace = 300 * time.Millisecond
	// NearBottomThreshold is how far above the bottom a viewer may be and
	// still be auto-scrolled.
	NearBottomThreshold = 150.0
)

// ScrollState describes the viewer when a new message arrives.
type ScrollState struct {
	LastManualScroll   time.Time
	DistanceFromBottom float64 // pixels
}

// ShouldAutoScroll reports whether a new message may move the view to the
// bottom. It never does so for a viewer reading scrollback.
func ShouldAutoScroll(s ScrollState, now time.Time) bool {
	if !s.LastManualScroll.IsZero() && now.Sub(s.LastManualScroll) < ManualScrollGrace {
		return false
	}
	return s.DistanceFromBottom <= NearBottomThreshold
}
