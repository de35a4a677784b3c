package control

import (
	"sort"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/pibox/internal/app/playback"
)

// ButtonSource delivers debounced press events for named buttons. fn runs on
// the source's own goroutine.
type ButtonSource interface {
	Watch(button string, fn func()) error
}

// BindButtons binds every named button to the action of the same name.
// Failures are logged and skipped; the number of bound buttons is returned.
func BindButtons(src ButtonSource, dispatcher *Dispatcher, buttons []string) int {
	names := append([]string(nil), buttons...)
	sort.Strings(names)

	bound := 0
	for _, name := range names {
		action, err := ParseAction(name)
		if err != nil {
			zlog.Warn().Err(err).Msgf("control: skipping button: name=%s", name)
			continue
		}

		if err := src.Watch(name, pressHandler(dispatcher, action)); err != nil {
			zlog.Error().Err(err).Msgf("control: failed to watch button: name=%s", name)
			continue
		}
		zlog.Info().Msgf("control: button bound: name=%s action=%s", name, action)
		bound++
	}
	return bound
}

func pressHandler(dispatcher *Dispatcher, action Action) func() {
	return func() {
		zlog.Debug().Msgf("control: button pressed: action=%s", action)
		if err := dispatcher.Do(action); err != nil && !errors.Is(err, playback.ErrShutdown) {
			zlog.Warn().Err(err).Msgf("control: button action failed: action=%s", action)
		}
	}
}
