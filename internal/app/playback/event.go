package playback

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/pibox/internal/domain/track"
)

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted   EventType = iota // Track loaded and playing
	EventTrackEnded                      // Track finished naturally (watchdog advance)
	EventTrackSkipped                    // Track left by next/previous
	EventTrackRestarted                  // Track restarted from the beginning
	EventTrackFailed                     // Track could not be loaded or played
	EventStateChanged                    // Pause/resume
	EventVolumeChanged                   // Volume changed
	EventShutdown                        // Shutdown has begun
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackSkipped:
		return "track_skipped"
	case EventTrackRestarted:
		return "track_restarted"
	case EventTrackFailed:
		return "track_failed"
	case EventStateChanged:
		return "state_changed"
	case EventVolumeChanged:
		return "volume_changed"
	case EventShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// MarshalText encodes the event type by name.
func (e EventType) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText decodes an event type name.
func (e *EventType) UnmarshalText(text []byte) error {
	for t := EventTrackStarted; t <= EventShutdown; t++ {
		if t.String() == string(text) {
			*e = t
			return nil
		}
	}
	return errors.Newf("unknown event type: %q", text)
}

// Event represents a playback event.
type Event struct {
	Type    EventType   `json:"type"`
	Track   track.Track `json:"track"`
	Index   int         `json:"index"`
	Playing bool        `json:"playing"`
	Volume  int         `json:"volume"`
	Time    time.Time   `json:"time"`
}
