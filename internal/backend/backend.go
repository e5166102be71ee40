// Package backend holds the actuation capabilities the engine drives LEDs
// through. A backend only has to accept a brightness percentage; the engine
// never depends on what sits behind it.
package backend

import (
	"fmt"

	"github.com/dokzlo13/ledd/internal/config"
)

// Backend drives the physical brightness of one LED.
type Backend interface {
	// Set pushes a brightness percentage (0-100).
	Set(percent uint8)
	// Close releases the underlying resource, leaving the LED dark.
	Close() error
}

// New creates the backend described by the LED configuration.
func New(cfg config.LedConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "console":
		return NewConsole(cfg.Name), nil
	case "gpio":
		return NewGPIO(cfg.Name, cfg.Pin)
	default:
		return nil, fmt.Errorf("unknown backend %q for led %q", cfg.Backend, cfg.Name)
	}
}
