package playback

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	// ErrPlayback marks audio engine failures on load/play.
	ErrPlayback = errors.New("playback error")
	// ErrNoPlayableTrack is returned when every catalog entry failed to play.
	ErrNoPlayableTrack = errors.New("no playable track")
	// ErrShutdown is returned by transitions requested after shutdown began.
	ErrShutdown = errors.New("player is shutting down")
	// ErrInvalidVolume is returned when a volume value cannot be parsed.
	ErrInvalidVolume = errors.New("invalid volume")
)

// ParseVolume parses a user supplied volume level.
// The result is not clamped; SetVolume does that.
func ParseVolume(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "parse volume %q", s), ErrInvalidVolume)
	}
	return v, nil
}
