package playback

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/pibox/internal/app/indicator"
	"github.com/osa030/pibox/internal/domain/catalog"
	"github.com/osa030/pibox/internal/domain/track"
)

func newTestCatalog(n int) *catalog.Catalog {
	tracks := make([]track.Track, n)
	for i := range tracks {
		tracks[i] = track.New("/music", fmt.Sprintf("%02d.mp3", i))
	}
	return catalog.New("/music", tracks)
}

func newTestController(t *testing.T, n int) (*Controller, *MockEngine, *indicator.Memory) {
	t.Helper()
	engine := NewMockEngine()
	display := indicator.NewMemory()
	ctrl := NewController(newTestCatalog(n), engine, display, Config{DefaultVolume: DefaultVolume})
	require.NoError(t, ctrl.Start())
	return ctrl, engine, display
}

func drainEvents(ctrl *Controller) []EventType {
	var types []EventType
	for {
		select {
		case e := <-ctrl.Events():
			types = append(types, e.Type)
		default:
			return types
		}
	}
}

func TestController_Start(t *testing.T) {
	ctrl, engine, display := newTestController(t, 3)

	snap := ctrl.Snapshot()
	assert.Equal(t, 0, snap.Index)
	assert.True(t, snap.Playing)
	assert.True(t, snap.Running)
	assert.Equal(t, DefaultVolume, snap.Volume)
	assert.Equal(t, 3, snap.Tracks)
	assert.Equal(t, "00.mp3", snap.Track.ID)
	assert.Equal(t, StatusPlaying, snap.Status())

	assert.Equal(t, "/music/00.mp3", engine.Loaded())
	assert.InDelta(t, 0.5, engine.Volume(), 1e-9)
	assert.Equal(t, 3, display.Lit())
	assert.Equal(t, []EventType{EventTrackStarted}, drainEvents(ctrl))
}

func TestController_IndexWraps(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("catalog of %d", n), func(t *testing.T) {
			ctrl, _, _ := newTestController(t, n)

			require.NoError(t, ctrl.Retreat())
			assert.Equal(t, n-1, ctrl.Snapshot().Index, "retreat from 0 wraps to N-1")

			require.NoError(t, ctrl.Advance())
			assert.Equal(t, 0, ctrl.Snapshot().Index, "advance from N-1 wraps to 0")

			rng := rand.New(rand.NewSource(int64(n)))
			for i := 0; i < 200; i++ {
				if rng.Intn(2) == 0 {
					require.NoError(t, ctrl.Advance())
				} else {
					require.NoError(t, ctrl.Retreat())
				}
				idx := ctrl.Snapshot().Index
				require.GreaterOrEqual(t, idx, 0)
				require.Less(t, idx, n)
			}
		})
	}
}

func TestController_PlayingAfterTransition(t *testing.T) {
	tests := []struct {
		name string
		op   func(*Controller) error
	}{
		{"advance", (*Controller).Advance},
		{"retreat", (*Controller).Retreat},
		{"restart", (*Controller).Restart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, engine, _ := newTestController(t, 4)

			require.NoError(t, ctrl.TogglePause())
			require.False(t, ctrl.Snapshot().Playing)

			require.NoError(t, tt.op(ctrl))
			assert.True(t, ctrl.Snapshot().Playing)
			assert.False(t, engine.Paused())
		})
	}
}

func TestController_TogglePausePairing(t *testing.T) {
	ctrl, engine, _ := newTestController(t, 3)
	require.NoError(t, ctrl.Advance())
	before := ctrl.Snapshot()

	require.NoError(t, ctrl.TogglePause())
	mid := ctrl.Snapshot()
	assert.False(t, mid.Playing)
	assert.Equal(t, StatusPaused, mid.Status())
	assert.True(t, engine.Paused())
	assert.Equal(t, before.Index, mid.Index)

	require.NoError(t, ctrl.TogglePause())
	after := ctrl.Snapshot()
	assert.Equal(t, before.Playing, after.Playing)
	assert.Equal(t, before.Index, after.Index)
	assert.False(t, engine.Paused())
}

func TestController_Restart(t *testing.T) {
	ctrl, engine, _ := newTestController(t, 3)
	require.NoError(t, ctrl.Advance())
	drainEvents(ctrl)

	require.NoError(t, ctrl.Restart())

	assert.Equal(t, 1, ctrl.Snapshot().Index)
	calls := engine.LoadCalls()
	assert.Equal(t, []string{"/music/00.mp3", "/music/01.mp3", "/music/01.mp3"}, calls)
	assert.Equal(t, []EventType{EventTrackRestarted, EventTrackStarted}, drainEvents(ctrl))
}

func TestController_SetVolume(t *testing.T) {
	tests := []struct {
		name     string
		level    int
		expected int
		lit      int
	}{
		{"low", 10, 10, 1},
		{"mid", 30, 30, 2},
		{"high", 80, 80, 4},
		{"clamped below", -20, 0, 1},
		{"clamped above", 250, 100, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, engine, display := newTestController(t, 2)

			require.NoError(t, ctrl.SetVolume(tt.level))

			assert.Equal(t, tt.expected, ctrl.Snapshot().Volume)
			assert.InDelta(t, float64(tt.expected)/100, engine.Volume(), 1e-9)
			assert.Equal(t, tt.lit, display.Lit())
		})
	}
}

func TestController_SetVolume_HardwareErrorIsNotFatal(t *testing.T) {
	ctrl, _, display := newTestController(t, 2)
	display.FailOn(3)

	require.NoError(t, ctrl.SetVolume(90))
	assert.Equal(t, 90, ctrl.Snapshot().Volume)

	display.FailOn(-1)
	require.NoError(t, ctrl.RefreshIndicator())
	assert.Equal(t, 4, display.Lit())
}

func TestController_RefreshIndicator_ReportsHardwareError(t *testing.T) {
	ctrl, _, display := newTestController(t, 2)
	display.FailOn(0)

	err := ctrl.RefreshIndicator()
	require.Error(t, err)
	assert.True(t, errors.Is(err, indicator.ErrHardware))
}

func TestController_SkipsUnplayableTrack(t *testing.T) {
	ctrl, engine, _ := newTestController(t, 4)
	engine.FailLoad("/music/01.mp3")
	drainEvents(ctrl)

	require.NoError(t, ctrl.Advance())

	snap := ctrl.Snapshot()
	assert.Equal(t, 2, snap.Index)
	assert.True(t, snap.Playing)
	assert.Equal(t, "/music/02.mp3", engine.Loaded())
	assert.Equal(t, []EventType{EventTrackSkipped, EventTrackFailed, EventTrackStarted}, drainEvents(ctrl))
}

func TestController_RetreatSkipsForwardPastUnplayable(t *testing.T) {
	ctrl, engine, _ := newTestController(t, 4)
	engine.FailLoad("/music/03.mp3")

	require.NoError(t, ctrl.Retreat())

	// 3 fails, so the skip policy moves on to 0.
	assert.Equal(t, 0, ctrl.Snapshot().Index)
	assert.True(t, ctrl.Snapshot().Playing)
}

func TestController_NoPlayableTrack(t *testing.T) {
	engine := NewMockEngine()
	for i := 0; i < 3; i++ {
		engine.FailLoad(fmt.Sprintf("/music/%02d.mp3", i))
	}
	ctrl := NewController(newTestCatalog(3), engine, nil, Config{DefaultVolume: 40})

	err := ctrl.Start()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoPlayableTrack))
	assert.True(t, errors.Is(err, ErrPlayback))

	snap := ctrl.Snapshot()
	assert.False(t, snap.Playing)
	assert.Equal(t, 0, snap.Index)
	assert.Len(t, engine.LoadCalls(), 3)
}

func TestErrors_SentinelsDistinct(t *testing.T) {
	decodeErr := errors.Mark(errors.New("failed to decode a.mp3"), ErrPlayback)
	assert.True(t, errors.Is(decodeErr, ErrPlayback))
	assert.False(t, errors.Is(decodeErr, ErrNoPlayableTrack))

	exhausted := errors.Mark(errors.Wrapf(ErrNoPlayableTrack, "all %d tracks failed", 3), ErrPlayback)
	assert.True(t, errors.Is(exhausted, ErrNoPlayableTrack))
	assert.True(t, errors.Is(exhausted, ErrPlayback))
	assert.False(t, errors.Is(ErrPlayback, ErrNoPlayableTrack))
}

func TestController_AfterShutdown(t *testing.T) {
	ctrl, engine, _ := newTestController(t, 3)
	require.True(t, ctrl.halt())
	require.False(t, ctrl.halt(), "halt happens once")

	loads := len(engine.LoadCalls())
	for name, op := range map[string]func() error{
		"advance": ctrl.Advance,
		"retreat": ctrl.Retreat,
		"pause":   ctrl.TogglePause,
		"restart": ctrl.Restart,
		"start":   ctrl.Start,
		"volume":  func() error { return ctrl.SetVolume(10) },
	} {
		assert.ErrorIs(t, op(), ErrShutdown, name)
	}

	assert.Len(t, engine.LoadCalls(), loads)
	snap := ctrl.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, StatusStopped, snap.Status())
}

func TestController_Close(t *testing.T) {
	ctrl, _, _ := newTestController(t, 2)
	ctrl.halt()
	ctrl.Close()
	ctrl.Close()

	var types []EventType
	for e := range ctrl.Events() {
		types = append(types, e.Type)
	}
	assert.Equal(t, []EventType{EventTrackStarted, EventShutdown}, types)
}

func TestController_EventsDoNotBlock(t *testing.T) {
	engine := NewMockEngine()
	ctrl := NewController(newTestCatalog(2), engine, nil, Config{EventBuffer: 1})
	require.NoError(t, ctrl.Start())

	for i := 0; i < 10; i++ {
		require.NoError(t, ctrl.Advance())
	}
	assert.Len(t, drainEvents(ctrl), 1)
}

func TestController_ConcurrentStress(t *testing.T) {
	const (
		tracks  = 7
		callers = 64
		rounds  = 50
	)
	ctrl, engine, display := newTestController(t, tracks)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for r := 0; r < rounds; r++ {
				switch rng.Intn(7) {
				case 0:
					assert.NoError(t, ctrl.Advance())
				case 1:
					assert.NoError(t, ctrl.Retreat())
				case 2:
					assert.NoError(t, ctrl.TogglePause())
				case 3:
					assert.NoError(t, ctrl.Restart())
				case 4:
					assert.NoError(t, ctrl.SetVolume(rng.Intn(101)))
				case 5:
					gen, finished := ctrl.pollFinished(1)
					if finished {
						_, err := ctrl.advanceIfCurrent(gen)
						assert.NoError(t, err)
					}
				case 6:
					snap := ctrl.Snapshot()
					assert.Equal(t, fmt.Sprintf("%02d.mp3", snap.Index), snap.Track.ID, "torn snapshot")
				}
				// Let the drained channel never fill up.
				drainEvents(ctrl)
			}
		}(int64(i))
	}
	wg.Wait()

	snap := ctrl.Snapshot()
	assert.GreaterOrEqual(t, snap.Index, 0)
	assert.Less(t, snap.Index, tracks)
	assert.Equal(t, 1, engine.MaxConcurrent(), "engine was entered concurrently")
	assert.Equal(t, indicator.Level(snap.Volume), display.Lit())
	assert.Equal(t, fmt.Sprintf("/music/%02d.mp3", snap.Index), engine.Loaded())
}

func TestParseVolume(t *testing.T) {
	tests := []struct {
		input    string
		expected int
		wantErr  bool
	}{
		{"50", 50, false},
		{" 75 ", 75, false},
		{"0", 0, false},
		{"150", 150, false},
		{"-3", -3, false},
		{"", 0, true},
		{"loud", 0, true},
		{"4.5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := ParseVolume(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidVolume))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestWrap(t *testing.T) {
	assert.Equal(t, 0, wrap(5, 5))
	assert.Equal(t, 4, wrap(-1, 5))
	assert.Equal(t, 3, wrap(-7, 5))
	assert.Equal(t, 0, wrap(0, 1))
	assert.Equal(t, 0, wrap(-1, 1))
}
