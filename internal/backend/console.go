package backend

import "github.com/rs/zerolog/log"

// Console is a backend that reports brightness changes to the log instead of
// hardware. Useful for development and for hosts without GPIO.
type Console struct {
	name string
}

// NewConsole creates a console backend for the named LED.
func NewConsole(name string) *Console {
	return &Console{name: name}
}

// Set logs the brightness change.
func (c *Console) Set(percent uint8) {
	log.Info().Str("led", c.name).Uint8("percent", percent).Msg("Brightness")
}

// Close is a no-op for the console backend.
func (c *Console) Close() error {
	return nil
}
