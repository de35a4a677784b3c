package playback

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/pibox/internal/app/indicator"
	"github.com/osa030/pibox/internal/domain/catalog"
)

// Config holds controller configuration.
type Config struct {
	DefaultVolume int // Initial volume (0-100)
	EventBuffer   int // Event channel capacity
}

// Controller owns the playback state and serialises every transition under a
// single mutex. The audio engine and the indicator display are only touched
// while that mutex is held.
type Controller struct {
	mu sync.Mutex

	catalog *catalog.Catalog
	engine  Engine
	display indicator.Display // may be nil

	state State

	// generation is bumped whenever a new track is started, so the watchdog
	// can tell whether another transition happened since it polled.
	generation uint64

	// Events
	eventCh chan Event
	closed  bool
}

// NewController creates a new playback controller positioned on the first
// catalog track. The catalog must not be empty.
func NewController(cat *catalog.Catalog, engine Engine, display indicator.Display, config Config) *Controller {
	if config.EventBuffer <= 0 {
		config.EventBuffer = 32
	}
	return &Controller{
		catalog: cat,
		engine:  engine,
		display: display,
		state: State{
			Index:   0,
			Playing: true,
			Volume:  clampVolume(config.DefaultVolume),
			Running: true,
		},
		eventCh: make(chan Event, config.EventBuffer),
	}
}

// Events returns the event channel. It is closed by Close.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Catalog returns the catalog the controller plays from.
func (c *Controller) Catalog() *catalog.Catalog {
	return c.catalog
}

// Start drives the indicator, applies the volume and plays the current track.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Running {
		return ErrShutdown
	}

	c.applyIndicatorLocked()
	c.engine.SetVolume(float64(c.state.Volume) / 100)
	return c.playCurrentLocked()
}

// Advance stops the current track and plays the next one, wrapping at the end
// of the catalog. The player is left playing even if it was paused.
func (c *Controller) Advance() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Running {
		return ErrShutdown
	}
	return c.stepLocked(1, EventTrackSkipped)
}

// Retreat stops the current track and plays the previous one, wrapping at the
// start of the catalog. The player is left playing even if it was paused.
func (c *Controller) Retreat() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Running {
		return ErrShutdown
	}
	return c.stepLocked(-1, EventTrackSkipped)
}

// TogglePause pauses a playing track or resumes a paused one.
func (c *Controller) TogglePause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Running {
		return ErrShutdown
	}

	if c.state.Playing {
		c.engine.Pause()
		c.state.Playing = false
	} else {
		c.engine.Resume()
		c.state.Playing = true
	}

	zlog.Debug().Msgf("playback: toggled pause: playing=%v index=%d", c.state.Playing, c.state.Index)
	c.sendEventLocked(EventStateChanged)
	return nil
}

// Restart reloads the current track and plays it from the beginning.
func (c *Controller) Restart() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Running {
		return ErrShutdown
	}

	c.engine.Stop()
	c.sendEventLocked(EventTrackRestarted)
	return c.playCurrentLocked()
}

// SetVolume clamps level to [0, 100], applies it to the engine and updates
// the indicator display. Indicator failures are logged, not returned.
func (c *Controller) SetVolume(level int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Running {
		return ErrShutdown
	}

	level = clampVolume(level)
	c.engine.SetVolume(float64(level) / 100)
	c.state.Volume = level
	c.applyIndicatorLocked()

	zlog.Debug().Msgf("playback: volume set: volume=%d", level)
	c.sendEventLocked(EventVolumeChanged)
	return nil
}

// RefreshIndicator re-applies the indicator pattern for the current volume.
func (c *Controller) RefreshIndicator() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.display == nil {
		return nil
	}
	return indicator.Apply(c.display, c.state.Volume)
}

// Snapshot returns a consistent copy of the playback state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		State:  c.state,
		Track:  c.catalog.At(c.state.Index),
		Tracks: c.catalog.Len(),
	}
}

// Running reports whether shutdown has not yet begun.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Running
}

// Close closes the event channel. Call it after shutdown has completed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.eventCh)
}

// pollFinished reports whether the current track has ended naturally, along
// with the generation observed. A failed busy query is retried up to retries
// times before it is treated as "not busy".
func (c *Controller) pollFinished(retries int) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Running || !c.state.Playing {
		return c.generation, false
	}

	busy, err := c.engine.IsBusy()
	for attempt := 1; err != nil && attempt <= retries; attempt++ {
		zlog.Debug().Msgf("playback: busy query failed, retrying: attempt=%d/%d err=%v", attempt, retries, err)
		busy, err = c.engine.IsBusy()
	}
	if err != nil {
		zlog.Warn().Err(err).Msgf("playback: busy query failed after %d retries, treating track as finished", retries)
		busy = false
	}

	return c.generation, !busy
}

// advanceIfCurrent advances to the next track if no other track change has
// happened since generation was observed and the player is still playing.
func (c *Controller) advanceIfCurrent(generation uint64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Running || !c.state.Playing || c.generation != generation {
		return false, nil
	}
	return true, c.stepLocked(1, EventTrackEnded)
}

// halt stops audio and clears the run flag. It returns false if shutdown had
// already begun.
func (c *Controller) halt() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Running {
		return false
	}
	c.engine.Stop()
	c.state.Running = false
	c.sendEventLocked(EventShutdown)
	return true
}

// stepLocked moves delta tracks away from the current one and plays it.
// Must be called with lock held.
func (c *Controller) stepLocked(delta int, leaving EventType) error {
	c.engine.Stop()
	c.sendEventLocked(leaving)
	c.state.Index = wrap(c.state.Index+delta, c.catalog.Len())
	return c.playCurrentLocked()
}

// playCurrentLocked loads and plays the track at the current index. A track
// that fails to load or play is skipped, trying each catalog entry at most
// once. Must be called with lock held.
func (c *Controller) playCurrentLocked() error {
	n := c.catalog.Len()
	for attempt := 0; attempt < n; attempt++ {
		t := c.catalog.At(c.state.Index)

		err := c.engine.Load(t.Path)
		if err == nil {
			err = c.engine.Play()
		}
		if err == nil {
			c.state.Playing = true
			c.generation++
			zlog.Info().Msgf("playback: now playing: index=%d/%d track=%s", c.state.Index+1, n, t.ID)
			c.sendEventLocked(EventTrackStarted)
			return nil
		}

		zlog.Warn().Err(err).Msgf("playback: skipping unplayable track: index=%d track=%s", c.state.Index, t.ID)
		c.sendEventLocked(EventTrackFailed)
		c.engine.Stop()
		c.state.Index = wrap(c.state.Index+1, n)
	}

	c.state.Playing = false
	c.generation++
	return errors.Mark(errors.Wrapf(ErrNoPlayableTrack, "all %d tracks failed", n), ErrPlayback)
}

// applyIndicatorLocked drives the indicator display for the current volume.
// Must be called with lock held.
func (c *Controller) applyIndicatorLocked() {
	if c.display == nil {
		return
	}
	if err := indicator.Apply(c.display, c.state.Volume); err != nil {
		zlog.Warn().Err(err).Msgf("playback: indicator update failed: volume=%d", c.state.Volume)
	}
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (c *Controller) sendEventLocked(t EventType) {
	if c.closed {
		return
	}

	e := Event{
		Type:    t,
		Track:   c.catalog.At(c.state.Index),
		Index:   c.state.Index,
		Playing: c.state.Playing,
		Volume:  c.state.Volume,
		Time:    time.Now(),
	}

	select {
	case c.eventCh <- e:
		// Successfully sent
	default:
		// Channel full, drop event
		zlog.Debug().Msgf("playback: event dropped: type=%s", t)
	}
}
