// Package gpio drives the physical button and LED panel through periph.io.
package gpio

import (
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/osa030/pibox/internal/app/control"
	"github.com/osa030/pibox/internal/app/indicator"
)

// edgeTimeout bounds a single WaitForEdge so watchers notice Close.
const edgeTimeout = 100 * time.Millisecond

// ErrHardware is the HardwareError sentinel shared with the indicator mapper.
var ErrHardware = indicator.ErrHardware

// Panel is a set of buttons and indicator outputs.
type Panel interface {
	indicator.Display
	control.ButtonSource
	Close() error
}

// GPIOPanel reads buttons on falling edges and drives LEDs as outputs.
type GPIOPanel struct {
	buttons  map[string]gpio.PinIn
	leds     []gpio.PinOut
	debounce time.Duration

	mu      sync.Mutex
	watched map[string]bool
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// Open initializes the host drivers and resolves every configured pin.
func Open(s Settings) (*GPIOPanel, error) {
	if _, err := host.Init(); err != nil {
		return nil, hardwareError(err, "failed to initialize host drivers")
	}

	buttons := make(map[string]gpio.PinIn, len(s.Buttons))
	for name, pinName := range s.Buttons {
		pin := gpioreg.ByName(pinName)
		if pin == nil {
			return nil, errors.Mark(errors.Newf("unknown pin for button %s: %s", name, pinName), ErrHardware)
		}
		buttons[name] = pin
	}

	leds := make([]gpio.PinOut, 0, len(s.LEDs))
	for i, pinName := range s.LEDs {
		pin := gpioreg.ByName(pinName)
		if pin == nil {
			return nil, errors.Mark(errors.Newf("unknown pin for indicator %d: %s", i, pinName), ErrHardware)
		}
		leds = append(leds, pin)
	}

	return NewPanel(buttons, leds, time.Duration(s.DebounceMs)*time.Millisecond)
}

// NewPanel creates a panel from resolved pins. Every LED is switched off.
func NewPanel(buttons map[string]gpio.PinIn, leds []gpio.PinOut, debounce time.Duration) (*GPIOPanel, error) {
	if len(leds) != indicator.Count {
		return nil, errors.Mark(errors.Newf("expected %d indicator pins, got %d", indicator.Count, len(leds)), ErrHardware)
	}

	p := &GPIOPanel{
		buttons:  buttons,
		leds:     leds,
		debounce: debounce,
		watched:  make(map[string]bool),
		stop:     make(chan struct{}),
	}
	for i := range leds {
		if err := p.Set(i, false); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(buttons))
	for name := range buttons {
		names = append(names, name)
	}
	sort.Strings(names)
	zlog.Info().Msgf("gpio: panel ready: buttons=%v debounce=%v", names, debounce)
	return p, nil
}

// Set drives indicator output id.
func (p *GPIOPanel) Set(id int, on bool) error {
	if id < 0 || id >= len(p.leds) {
		return errors.Mark(errors.Newf("indicator id out of range: %d", id), ErrHardware)
	}

	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := p.leds[id].Out(level); err != nil {
		return hardwareError(err, "failed to drive indicator")
	}
	return nil
}

// Watch configures button as a pulled-up input and calls fn on each
// debounced falling edge. fn runs on the button's watcher goroutine.
func (p *GPIOPanel) Watch(button string, fn func()) error {
	pin, ok := p.buttons[button]
	if !ok {
		return errors.Mark(errors.Newf("button not wired: %s", button), ErrHardware)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.stop:
		return errors.Mark(errors.New("panel is closed"), ErrHardware)
	default:
	}
	if p.watched[button] {
		return errors.Mark(errors.Newf("button already watched: %s", button), ErrHardware)
	}
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return hardwareError(err, "failed to configure button "+button)
	}
	p.watched[button] = true

	p.wg.Add(1)
	go p.watch(button, pin, fn)
	return nil
}

func (p *GPIOPanel) watch(button string, pin gpio.PinIn, fn func()) {
	defer p.wg.Done()

	var last time.Time
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		if !pin.WaitForEdge(edgeTimeout) {
			continue
		}

		now := time.Now()
		if !last.IsZero() && now.Sub(last) < p.debounce {
			zlog.Debug().Msgf("gpio: edge ignored (bounce): button=%s", button)
			continue
		}
		last = now

		zlog.Debug().Msgf("gpio: button pressed: button=%s", button)
		fn()
	}
}

// Close stops all watchers and switches the indicators off.
func (p *GPIOPanel) Close() error {
	var err error
	p.once.Do(func() {
		p.mu.Lock()
		close(p.stop)
		p.mu.Unlock()
		p.wg.Wait()

		for i := range p.leds {
			err = errors.CombineErrors(err, p.Set(i, false))
		}
		zlog.Debug().Msg("gpio: panel closed")
	})
	return err
}

func hardwareError(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrHardware)
}
