// Package control translates console, button and other external events into
// playback transitions. It holds no playback logic of its own.
package control

import (
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrUnknownAction is returned for an unrecognised action name.
var ErrUnknownAction = errors.New("unknown action")

// Player is the set of playback transitions a control surface may trigger.
type Player interface {
	Advance() error
	Retreat() error
	TogglePause() error
	Restart() error
	SetVolume(level int) error
}

// Action is a user intent shared by every control surface.
type Action int

const (
	ActionPrevious Action = iota // Retreat to the previous track
	ActionNext                   // Advance to the next track
	ActionPause                  // Toggle pause
	ActionRestart                // Restart the current track
	ActionQuit                   // Begin shutdown
)

var actionNames = map[Action]string{
	ActionPrevious: "previous",
	ActionNext:     "next",
	ActionPause:    "pause",
	ActionRestart:  "restart",
	ActionQuit:     "quit",
}

// String returns the action name.
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// ParseAction parses an action name such as "next" or "pause".
func ParseAction(name string) (Action, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for a, n := range actionNames {
		if n == name {
			return a, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownAction, "%q", name)
}

// Dispatcher runs actions against a player. Quit is forwarded to the
// shutdown requester exactly once.
type Dispatcher struct {
	player   Player
	quit     func()
	quitOnce sync.Once
}

// NewDispatcher creates a dispatcher. quit is called at most once, on the
// first ActionQuit.
func NewDispatcher(player Player, quit func()) *Dispatcher {
	return &Dispatcher{player: player, quit: quit}
}

// Do runs the transition mapped to a.
func (d *Dispatcher) Do(a Action) error {
	switch a {
	case ActionPrevious:
		return d.player.Retreat()
	case ActionNext:
		return d.player.Advance()
	case ActionPause:
		return d.player.TogglePause()
	case ActionRestart:
		return d.player.Restart()
	case ActionQuit:
		d.Quit()
		return nil
	default:
		return errors.Wrapf(ErrUnknownAction, "action %d", int(a))
	}
}

// SetVolume forwards a volume change to the player.
func (d *Dispatcher) SetVolume(level int) error {
	return d.player.SetVolume(level)
}

// Quit requests shutdown. Only the first call reaches the requester.
func (d *Dispatcher) Quit() {
	d.quitOnce.Do(func() {
		zlog.Info().Msg("control: shutdown requested")
		if d.quit != nil {
			d.quit()
		}
	})
}
