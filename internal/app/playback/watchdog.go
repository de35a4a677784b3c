package playback

import (
	"sync"
	"sync/atomic"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// DefaultPollInterval is the watchdog polling interval.
const DefaultPollInterval = 500 * time.Millisecond

// LoopState is the watchdog loop state.
type LoopState int32

const (
	LoopIdle    LoopState = iota // Not started
	LoopRunning                  // Polling
	LoopStopped                  // Terminal
)

// String returns the string representation of the loop state.
func (s LoopState) String() string {
	switch s {
	case LoopIdle:
		return "idle"
	case LoopRunning:
		return "running"
	case LoopStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// WatchdogConfig holds watchdog configuration.
type WatchdogConfig struct {
	Interval    time.Duration // Poll interval
	BusyRetries int           // Retries for a failed busy query (minimum 1)
}

// Watchdog polls the audio engine and advances on natural end of track.
// It also owns the shutdown protocol.
type Watchdog struct {
	ctrl   *Controller
	config WatchdogConfig

	state atomic.Int32

	mu      sync.Mutex
	started bool
	done    chan struct{}
}

// NewWatchdog creates a watchdog for ctrl.
func NewWatchdog(ctrl *Controller, config WatchdogConfig) *Watchdog {
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	if config.BusyRetries < 1 {
		config.BusyRetries = 1
	}
	return &Watchdog{
		ctrl:   ctrl,
		config: config,
		done:   make(chan struct{}),
	}
}

// Start launches the polling loop. Calling it more than once has no effect.
func (w *Watchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return
	}
	w.started = true
	w.state.Store(int32(LoopRunning))
	go w.run()
}

// State returns the loop state.
func (w *Watchdog) State() LoopState {
	return LoopState(w.state.Load())
}

// Done is closed when the loop has exited.
func (w *Watchdog) Done() <-chan struct{} {
	return w.done
}

// Shutdown stops audio, clears the run flag and waits for the loop to
// observe it and exit. It is safe to call from any goroutine and more than
// once; later calls only wait.
func (w *Watchdog) Shutdown() {
	if w.ctrl.halt() {
		zlog.Info().Msg("watchdog: shutdown requested, waiting for loop to stop")
	}
	w.Wait()
}

// Wait blocks until the loop has exited. It returns immediately if the loop
// was never started.
func (w *Watchdog) Wait() {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	if !started {
		w.state.Store(int32(LoopStopped))
		return
	}
	<-w.done
}

func (w *Watchdog) run() {
	defer close(w.done)

	zlog.Debug().Msgf("watchdog: started: interval=%v busy_retries=%d", w.config.Interval, w.config.BusyRetries)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		w.tick()

		if !w.ctrl.Running() {
			w.state.Store(int32(LoopStopped))
			zlog.Info().Msg("watchdog: stopped")
			return
		}

		<-ticker.C
	}
}

// tick performs one poll: if the track ended naturally, advance.
// The guard is released between the poll and the advance.
func (w *Watchdog) tick() {
	generation, finished := w.ctrl.pollFinished(w.config.BusyRetries)
	if !finished {
		return
	}

	advanced, err := w.ctrl.advanceIfCurrent(generation)
	if err != nil {
		zlog.Error().Err(err).Msg("watchdog: advance after track end failed")
		return
	}
	if !advanced {
		zlog.Debug().Msg("watchdog: track changed since poll, not advancing")
	}
}
