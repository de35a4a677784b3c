package playback

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// MockEngine is a test double for Engine. It records calls and tracks how
// many goroutines are inside it at once, so tests can assert that the
// controller guard serialises every engine call.
type MockEngine struct {
	mu        sync.Mutex
	loaded    string
	playing   bool
	paused    bool
	busy      bool
	volume    float64
	loadErrs  map[string]error
	busyErrs  int
	loadCalls []string
	stopCalls int

	inside    atomic.Int32
	maxInside atomic.Int32
}

// NewMockEngine creates a new mock engine.
func NewMockEngine() *MockEngine {
	return &MockEngine{loadErrs: make(map[string]error)}
}

func (m *MockEngine) enter() func() {
	n := m.inside.Add(1)
	for {
		cur := m.maxInside.Load()
		if n <= cur || m.maxInside.CompareAndSwap(cur, n) {
			break
		}
	}
	return func() { m.inside.Add(-1) }
}

// FailLoad makes Load return an error for path.
func (m *MockEngine) FailLoad(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErrs[path] = errors.Newf("cannot decode %s", path)
}

// FailBusyQueries makes the next n IsBusy calls return an error.
func (m *MockEngine) FailBusyQueries(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busyErrs = n
}

// Finish simulates the current track reaching its end.
func (m *MockEngine) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = false
}

func (m *MockEngine) Load(path string) error {
	defer m.enter()()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loadCalls = append(m.loadCalls, path)
	if err := m.loadErrs[path]; err != nil {
		m.loaded = ""
		return err
	}
	m.loaded = path
	m.playing = false
	m.paused = false
	m.busy = false
	return nil
}

func (m *MockEngine) Play() error {
	defer m.enter()()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded == "" {
		return errors.New("nothing loaded")
	}
	m.playing = true
	m.paused = false
	m.busy = true
	return nil
}

func (m *MockEngine) Pause() {
	defer m.enter()()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playing {
		m.paused = true
	}
}

func (m *MockEngine) Resume() {
	defer m.enter()()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
}

func (m *MockEngine) Stop() {
	defer m.enter()()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	m.playing = false
	m.paused = false
	m.busy = false
}

func (m *MockEngine) SetVolume(level float64) {
	defer m.enter()()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = level
}

func (m *MockEngine) IsBusy() (bool, error) {
	defer m.enter()()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busyErrs > 0 {
		m.busyErrs--
		return false, errors.New("mixer query failed")
	}
	return m.busy, nil
}

// Loaded returns the path of the loaded track.
func (m *MockEngine) Loaded() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Paused reports whether the engine is paused.
func (m *MockEngine) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Volume returns the last level passed to SetVolume.
func (m *MockEngine) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// LoadCalls returns every path passed to Load.
func (m *MockEngine) LoadCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loadCalls...)
}

// StopCalls returns the number of Stop calls.
func (m *MockEngine) StopCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCalls
}

// MaxConcurrent returns the highest number of goroutines seen inside the
// engine at the same time.
func (m *MockEngine) MaxConcurrent() int {
	return int(m.maxInside.Load())
}

var _ Engine = (*MockEngine)(nil)
