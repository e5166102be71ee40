package backend

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const pwmFreq = 200 * physic.Hertz

var (
	hostOnce sync.Once
	hostErr  error
)

// GPIO drives an LED attached to a host GPIO pin. Brightness is pushed as a
// PWM duty cycle when the pin supports it; otherwise the pin is switched
// on/off at the 50% threshold.
type GPIO struct {
	name string
	pin  gpio.PinIO
	pwm  bool
}

// NewGPIO creates a GPIO backend on the named pin (e.g. "GPIO17").
func NewGPIO(name, pinName string) (*GPIO, error) {
	hostOnce.Do(func() {
		_, hostErr = host.Init()
	})
	if hostErr != nil {
		return nil, fmt.Errorf("failed to init periph host: %w", hostErr)
	}

	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", pinName)
	}

	g := &GPIO{name: name, pin: pin, pwm: true}
	if err := pin.PWM(0, pwmFreq); err != nil {
		log.Warn().Err(err).
			Str("led", name).
			Str("pin", pinName).
			Msg("PWM unsupported, falling back to on/off switching")
		g.pwm = false
		if err := pin.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("gpio out on %q: %w", pinName, err)
		}
	}

	return g, nil
}

// Set pushes the brightness to the pin.
func (g *GPIO) Set(percent uint8) {
	if percent > 100 {
		percent = 100
	}

	if g.pwm {
		duty := gpio.Duty(uint64(gpio.DutyMax) * uint64(percent) / 100)
		if err := g.pin.PWM(duty, pwmFreq); err != nil {
			log.Error().Err(err).Str("led", g.name).Msg("Failed to set PWM duty")
		}
		return
	}

	level := gpio.Low
	if percent >= 50 {
		level = gpio.High
	}
	if err := g.pin.Out(level); err != nil {
		log.Error().Err(err).Str("led", g.name).Msg("Failed to switch pin")
	}
}

// Close darkens the LED and releases the pin.
func (g *GPIO) Close() error {
	g.Set(0)
	return g.pin.Halt()
}
