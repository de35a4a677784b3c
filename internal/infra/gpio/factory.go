package gpio

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/pibox/internal/infra/config"
)

// NewPanelFromConfig creates the panel selected by the hardware config.
func NewPanelFromConfig(cfg config.HardwareConfig) (Panel, error) {
	zlog.Debug().Msgf("gpio: creating panel: type=%s settings=%+v", cfg.Type, cfg.Settings)

	switch cfg.Type {
	case config.HardwareNone, "":
		return NewNonePanel(), nil

	case config.HardwareGPIO:
		settings, err := DecodeSettings(cfg.Settings)
		if err != nil {
			return nil, errors.Wrap(err, "invalid gpio settings")
		}
		panel, err := Open(settings)
		if err != nil {
			return nil, err
		}
		return panel, nil

	default:
		return nil, errors.Newf("unsupported hardware type: %s", cfg.Type)
	}
}
