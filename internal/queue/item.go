package queue

import (
	"time"

	"dropcast/internal/media"
)

// Item is a converted file waiting to be posted. Path is absolute and points
// into one of the sorted directories.
type Item struct {
	Path    string     `json:"path"`
	Kind    media.Kind `json:"kind"`
	Caption string     `json:"caption,omitempty"`
	AddedAt time.Time  `json:"added_at"`
}

// FreezeState is an externally imposed pause on posting.
type FreezeState struct {
	Reason string    `json:"reason"`
	Until  time.Time `json:"until"`
}

// Remaining reports how long the freeze still applies at now.
func (f FreezeState) Remaining(now time.Time) time.Duration {
	if d := f.Until.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Status is a point-in-time view for status surfaces.
type Status struct {
	Length        int           `json:"length"`
	Cooldown      time.Duration `json:"cooldown"`
	CooldownUntil time.Time     `json:"cooldown_until"`
	Failures      int           `json:"consecutive_failures"`
	InFlight      bool          `json:"in_flight"`
	Freeze        *FreezeState  `json:"freeze,omitempty"`
}
