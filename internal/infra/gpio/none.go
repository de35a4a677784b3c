package gpio

import (
	zlog "github.com/rs/zerolog/log"
)

// NonePanel is used on hosts without buttons or indicators. Outputs are
// logged and buttons never fire.
type NonePanel struct{}

// NewNonePanel creates a headless panel.
func NewNonePanel() *NonePanel {
	return &NonePanel{}
}

// Set implements indicator.Display.
func (NonePanel) Set(id int, on bool) error {
	zlog.Debug().Msgf("gpio: indicator (headless): id=%d on=%t", id, on)
	return nil
}

// Watch implements control.ButtonSource.
func (NonePanel) Watch(button string, fn func()) error {
	return nil
}

// Close implements Panel.
func (NonePanel) Close() error {
	return nil
}
