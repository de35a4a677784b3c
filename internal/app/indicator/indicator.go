// Package indicator maps the playback volume onto a four-output level meter.
package indicator

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// Count is the number of indicator outputs.
const Count = 4

// ErrHardware marks indicator output failures.
var ErrHardware = errors.New("indicator hardware error")

// Display is a set of on/off outputs. It has no atomic "set exactly these"
// primitive, so Apply clears before setting.
type Display interface {
	Set(id int, on bool) error
}

// Level returns the number of lit outputs for volume (1..Count).
func Level(volume int) int {
	switch {
	case volume < 25:
		return 1
	case volume < 50:
		return 2
	case volume < 75:
		return 3
	default:
		return 4
	}
}

// Pattern returns the on/off state of every output for volume.
// Lower outputs stay on as volume rises.
func Pattern(volume int) [Count]bool {
	var p [Count]bool
	lit := Level(volume)
	for i := 0; i < lit; i++ {
		p[i] = true
	}
	return p
}

// Apply drives d to the pattern for volume: all outputs off, then the lit
// subset on. Every output is attempted even if some fail.
func Apply(d Display, volume int) error {
	var errs error
	for id := 0; id < Count; id++ {
		if err := d.Set(id, false); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "clear indicator %d", id))
		}
	}
	for id, on := range Pattern(volume) {
		if !on {
			continue
		}
		if err := d.Set(id, true); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "set indicator %d", id))
		}
	}
	if errs != nil {
		return errors.Mark(errs, ErrHardware)
	}
	return nil
}

// Op is a single Set call recorded by Memory.
type Op struct {
	ID int
	On bool
}

// Memory is an in-memory Display that records every Set call.
type Memory struct {
	mu     sync.Mutex
	state  [Count]bool
	ops    []Op
	failID int
}

// NewMemory creates an in-memory display with all outputs off.
func NewMemory() *Memory {
	return &Memory{failID: -1}
}

// FailOn makes Set return an error for the given output id (-1 disables).
func (m *Memory) FailOn(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failID = id
}

// Set implements Display.
func (m *Memory) Set(id int, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id < 0 || id >= Count {
		return errors.Newf("indicator id out of range: %d", id)
	}
	m.ops = append(m.ops, Op{ID: id, On: on})
	if id == m.failID {
		return errors.Newf("indicator %d unavailable", id)
	}
	m.state[id] = on
	return nil
}

// State returns the current output states.
func (m *Memory) State() [Count]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Lit returns the number of outputs currently on.
func (m *Memory) Lit() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, on := range m.state {
		if on {
			n++
		}
	}
	return n
}

// Ops returns a copy of the recorded Set calls and clears the log.
func (m *Memory) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := m.ops
	m.ops = nil
	return ops
}
