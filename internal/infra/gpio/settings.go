package gpio

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Settings describes the button and LED wiring of a GPIO panel. Pin names are
// resolved through the periph.io registry (e.g. "GPIO25").
type Settings struct {
	Buttons    map[string]string `yaml:"buttons" mapstructure:"buttons" default:"{\"previous\":\"GPIO25\",\"next\":\"GPIO10\",\"pause\":\"GPIO17\",\"restart\":\"GPIO18\"}" validate:"min=1,dive,keys,oneof=previous next pause restart,endkeys,required"`
	LEDs       []string          `yaml:"leds" mapstructure:"leds" default:"[\"GPIO24\",\"GPIO22\",\"GPIO23\",\"GPIO27\"]" validate:"len=4,dive,required"`
	DebounceMs int               `yaml:"debounce_ms" mapstructure:"debounce_ms" default:"200" validate:"gte=0,lte=5000"`
}

// DecodeSettings decodes a hardware settings map, fills defaults and
// validates the result.
func DecodeSettings(settings map[string]any) (Settings, error) {
	var s Settings
	if err := mapstructure.Decode(settings, &s); err != nil {
		return Settings{}, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&s); err != nil {
		return Settings{}, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(s); err != nil {
		return Settings{}, errors.Wrap(err, "validation failed")
	}
	return s, nil
}
