// Package playback provides the playback coordinator: the guarded playback
// state, the transitions every control surface shares, and the watchdog loop.
package playback

import "github.com/osa030/pibox/internal/domain/track"

// DefaultVolume is the startup volume when none is configured.
const DefaultVolume = 50

// State is the shared playback record. It is only mutated while holding the
// controller mutex.
type State struct {
	Index   int  // Current catalog index, always in [0, N)
	Playing bool // true = audio should be advancing, false = paused
	Volume  int  // 0..100
	Running bool // false once shutdown has begun
}

// Status is the coarse player status shown to users.
type Status int

const (
	StatusPlaying Status = iota // Track is playing
	StatusPaused                // Track is paused
	StatusStopped               // Player has shut down
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent copy of the playback state taken under the guard.
type Snapshot struct {
	State
	Track  track.Track
	Tracks int // Catalog size
}

// Status derives the display status from the snapshot.
func (s Snapshot) Status() Status {
	switch {
	case !s.Running:
		return StatusStopped
	case s.Playing:
		return StatusPlaying
	default:
		return StatusPaused
	}
}

// wrap returns i modulo n in [0, n).
func wrap(i, n int) int {
	return ((i % n) + n) % n
}

// clampVolume limits level to [0, 100].
func clampVolume(level int) int {
	if level < 0 {
		return 0
	}
	if level > 100 {
		return 100
	}
	return level
}
