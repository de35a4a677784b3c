// Package audio implements playback.Engine on top of the beep speaker.
package audio

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/pibox/internal/app/playback"
)

// resampleQuality is the beep resampler quality used when a file's sample
// rate differs from the speaker's.
const resampleQuality = 4

// silentVolume is the effects.Volume level treated as inaudible.
const silentVolume = -10

// ErrUnsupportedFormat is returned for files no decoder is registered for.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

type decodeFunc func(f *os.File) (beep.StreamSeekCloser, beep.Format, error)

var decoders = map[string]decodeFunc{
	".mp3": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
		return mp3.Decode(f)
	},
	".wav": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
		return wav.Decode(f)
	},
	".flac": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
		return flac.Decode(f)
	},
}

// Config holds speaker settings.
type Config struct {
	SampleRate int
	Buffer     time.Duration
}

// Engine plays one file at a time through the speaker. Calls are expected to
// be serialized by the caller; only the end-of-track callback runs on the
// speaker goroutine.
type Engine struct {
	mu         sync.Mutex
	sampleRate beep.SampleRate
	output     bool

	file     io.Closer
	streamer beep.StreamSeekCloser
	chain    beep.Streamer
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	level    float64
	playing  bool

	generation atomic.Uint64
	finished   atomic.Uint64
}

// NewEngine initializes the speaker and returns an engine bound to it.
func NewEngine(cfg Config) (*Engine, error) {
	sr := beep.SampleRate(cfg.SampleRate)
	if err := speaker.Init(sr, sr.N(cfg.Buffer)); err != nil {
		return nil, errors.Wrap(err, "failed to initialize speaker")
	}
	zlog.Info().Msgf("audio: speaker ready: sample_rate=%d buffer=%v", cfg.SampleRate, cfg.Buffer)

	e := newEngine(sr)
	e.output = true
	return e, nil
}

func newEngine(sr beep.SampleRate) *Engine {
	return &Engine{sampleRate: sr, level: 1}
}

// Load decodes path and prepares it for playback. Any previous track is
// released first.
func (e *Engine) Load(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.releaseLocked()

	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return errors.Mark(errors.Wrapf(ErrUnsupportedFormat, "%s", ext), playback.ErrPlayback)
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "failed to open track"), playback.ErrPlayback)
	}

	streamer, format, err := decode(f)
	if err != nil {
		f.Close()
		return errors.Mark(errors.Wrapf(err, "failed to decode %s", filepath.Base(path)), playback.ErrPlayback)
	}

	var source beep.Streamer = streamer
	if format.SampleRate != e.sampleRate {
		source = beep.Resample(resampleQuality, format.SampleRate, e.sampleRate, streamer)
	}

	gen := e.generation.Add(1)
	e.file = f
	e.streamer = streamer
	e.ctrl = &beep.Ctrl{Streamer: source, Paused: false}
	e.volume = &effects.Volume{
		Streamer: e.ctrl,
		Base:     2,
		Volume:   levelToVolume(e.level),
		Silent:   e.level <= 0,
	}
	e.chain = beep.Seq(e.volume, beep.Callback(func() {
		e.finished.Store(gen)
	}))

	zlog.Debug().Msgf("audio: loaded: file=%s sample_rate=%d duration=%v",
		filepath.Base(path), format.SampleRate, format.SampleRate.D(streamer.Len()).Round(time.Second))
	return nil
}

// Play starts the loaded track from its current position.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.chain == nil {
		return errors.Mark(errors.New("no track loaded"), playback.ErrPlayback)
	}
	if e.playing {
		return nil
	}
	if e.output {
		speaker.Play(e.chain)
	}
	e.playing = true
	return nil
}

// Pause suspends output without releasing the track.
func (e *Engine) Pause() {
	e.setPaused(true)
}

// Resume continues a paused track.
func (e *Engine) Resume() {
	e.setPaused(false)
}

func (e *Engine) setPaused(paused bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctrl == nil {
		return
	}
	e.withSpeaker(func() { e.ctrl.Paused = paused })
}

// Stop halts output and releases the loaded track.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.releaseLocked()
}

// SetVolume sets the output level in [0, 1].
func (e *Engine) SetVolume(level float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.level = math.Max(0, math.Min(1, level))
	if e.volume == nil {
		return
	}
	e.withSpeaker(func() {
		e.volume.Volume = levelToVolume(e.level)
		e.volume.Silent = e.level <= 0
	})
}

// IsBusy reports whether a started track has not yet reached its end. A
// paused track is busy.
func (e *Engine) IsBusy() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.playing {
		return false, nil
	}
	return e.finished.Load() != e.generation.Load(), nil
}

// Close stops playback and shuts the speaker down.
func (e *Engine) Close() {
	e.Stop()
	if e.output {
		speaker.Close()
	}
}

// releaseLocked clears the speaker and closes the current track.
// Must be called with lock held.
func (e *Engine) releaseLocked() {
	if e.playing && e.output {
		speaker.Clear()
	}
	if e.streamer != nil {
		if err := e.streamer.Close(); err != nil {
			zlog.Debug().Msgf("audio: close streamer: %v", err)
		}
	}
	if e.file != nil {
		// Decoders may already have closed the file.
		_ = e.file.Close()
	}

	e.file = nil
	e.streamer = nil
	e.chain = nil
	e.ctrl = nil
	e.volume = nil
	e.playing = false
}

// withSpeaker runs fn under the speaker lock when output is live.
func (e *Engine) withSpeaker(fn func()) {
	if e.output {
		speaker.Lock()
		defer speaker.Unlock()
	}
	fn()
}

// levelToVolume converts a 0.0-1.0 level to beep's base-2 volume.
// 1.0 -> 0, 0.5 -> -1, 0.25 -> -2, 0 -> silent.
func levelToVolume(level float64) float64 {
	if level <= 0 {
		return silentVolume
	}
	if level >= 1 {
		return 0
	}
	return math.Max(silentVolume, math.Log2(level))
}

// Supported reports whether a decoder exists for the file extension.
func Supported(path string) bool {
	_, ok := decoders[strings.ToLower(filepath.Ext(path))]
	return ok
}

var _ playback.Engine = (*Engine)(nil)
