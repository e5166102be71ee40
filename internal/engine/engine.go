// Package engine implements a tick-driven effect engine for indicator LEDs.
//
// The engine owns a fixed-size registry of LED devices. Each device carries a
// compiled effect and its runtime status; Poll advances every device by one
// tick and pushes the resulting brightness to the device's actuator. All
// timing is expressed in whole poll periods, so Poll must be invoked at the
// period the engine was created with - cadence accuracy is the caller's
// responsibility, not the engine's.
//
// The engine uses no locks. Init, OnExpire, Write, Read and Poll must run on
// a single goroutine, or the caller has to serialize them externally.
package engine

import (
	"errors"
	"math"
	"time"
)

// Brightness bounds, in percent.
const (
	minPercent = 0
	maxPercent = 100
)

// Forever is the next-action sentinel: the device stays latched until the
// next Write.
const Forever = ^uint32(0)

var (
	// ErrInvalidParameter reports an out-of-range LED id or a missing
	// required argument.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidMode reports a mode outside the recognized set.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrInvalidAlternatePartner reports an alternate effect paired with
	// the LED itself.
	ErrInvalidAlternatePartner = errors.New("alternate partner equals the device itself")
)

// Actuator pushes a brightness percentage (0-100) to the hardware.
type Actuator func(percent uint8)

// ExpireFunc is notified exactly once, from inside the poll that exhausts a
// timed effect's duration.
type ExpireFunc func()

// Status is a copy of a device's runtime state as of the most recent poll.
type Status struct {
	// Percent is the current brightness, 0-100.
	Percent uint8
	// On is the logical on/off state (meaningful for Blink and Alternate).
	On bool
	// NextTick counts down to the next mode transition. Forever means the
	// device is latched until the next write.
	NextTick uint32
	// RemainTick counts down to duration expiry. Zero means unlimited.
	RemainTick uint32
	// Phase and PhaseStep drive the breathing and fading envelopes.
	Phase     float64
	PhaseStep float64
	// Expired is set when the effect duration ran out.
	Expired bool
}

type device struct {
	cfg      compiled
	stat     Status
	actuate  Actuator
	onExpire ExpireFunc
}

// Engine is the per-process LED registry and poll dispatcher.
type Engine struct {
	period time.Duration
	curve  Curve
	devs   []device
}

// New creates an engine for capacity LEDs polled every period, using the
// lookup-table brightness curve.
func New(capacity int, period time.Duration) (*Engine, error) {
	return NewWithCurve(capacity, period, TableCurve())
}

// NewWithCurve creates an engine with an explicit brightness curve strategy.
func NewWithCurve(capacity int, period time.Duration, curve Curve) (*Engine, error) {
	if capacity <= 0 || period <= 0 || curve == nil {
		return nil, ErrInvalidParameter
	}
	return &Engine{
		period: period,
		curve:  curve,
		devs:   make([]device, capacity),
	}, nil
}

// Capacity returns the number of LED slots in the registry.
func (e *Engine) Capacity() int {
	return len(e.devs)
}

// Period returns the poll period the engine compiles times against.
func (e *Engine) Period() time.Duration {
	return e.period
}

// Init registers the actuation capability for an LED, discarding any previous
// configuration and status.
func (e *Engine) Init(id int, actuate Actuator) error {
	if id < 0 || id >= len(e.devs) || actuate == nil {
		return ErrInvalidParameter
	}
	e.devs[id] = device{actuate: actuate}
	return nil
}

// OnExpire attaches the duration-expiry notification for an LED. The callback
// runs synchronously, from inside the poll that exhausts the duration.
func (e *Engine) OnExpire(id int, fn ExpireFunc) error {
	if id < 0 || id >= len(e.devs) || fn == nil {
		return ErrInvalidParameter
	}
	e.devs[id].onExpire = fn
	return nil
}

// Write replaces the LED's effect and fully resets its runtime status. A
// rejected write leaves the previous effect untouched.
func (e *Engine) Write(id int, eff Effect) error {
	if id < 0 || id >= len(e.devs) {
		return ErrInvalidParameter
	}
	if eff.On < 0 || eff.Off < 0 || eff.Fade < 0 || eff.Alternate < 0 || eff.Duration < 0 {
		return ErrInvalidParameter
	}
	if !eff.Mode.valid() {
		return ErrInvalidMode
	}
	if eff.Mode == ModeAlternate && eff.Partner == id {
		return ErrInvalidAlternatePartner
	}

	d := &e.devs[id]
	d.cfg = eff.compile(e.period)
	d.stat = Status{RemainTick: d.cfg.durationTick}

	switch eff.Mode {
	case ModeBreath, ModeFadeIn, ModeFadeOut:
		// Phase step controls how fast the envelope is traversed.
		step := math.Pi / maxPercent
		if d.cfg.fadeTick > 0 {
			step = math.Pi * float64(e.period) / float64(eff.Fade)
		}
		if eff.Mode == ModeFadeOut {
			d.stat.Percent = maxPercent
			d.stat.Phase = math.Pi
			step = -step
		}
		d.stat.PhaseStep = step
	}

	return nil
}

// Read returns a snapshot of the LED's status as of the most recent poll. It
// never blocks.
func (e *Engine) Read(id int) (Status, error) {
	if id < 0 || id >= len(e.devs) {
		return Status{}, ErrInvalidParameter
	}
	return e.devs[id].stat, nil
}

// Poll advances every registered device by one tick, in id order, and pushes
// the resulting brightness to each device's actuator. Devices without an
// actuator are skipped. Poll never fails.
func (e *Engine) Poll() {
	for i := range e.devs {
		d := &e.devs[i]
		if d.actuate == nil {
			continue
		}

		// Duration countdown. Zero means unlimited.
		if d.stat.RemainTick != 0 {
			d.stat.RemainTick--
			if d.stat.RemainTick == 0 {
				d.cfg.mode = ModeOff
				d.stat.NextTick = 0
				d.stat.Expired = true
				if d.onExpire != nil {
					d.onExpire()
				}
				continue
			}
		}

		// Next-action countdown. Forever means latched.
		if d.stat.NextTick == Forever {
			continue
		}
		if d.stat.NextTick != 0 {
			d.stat.NextTick--
			if d.stat.NextTick != 0 {
				continue
			}
		}

		switch d.cfg.mode {
		case ModeOff:
			d.stat.On = false
			d.stat.Percent = minPercent
			d.stat.NextTick = Forever

		case ModeOn:
			d.stat.On = true
			d.stat.Percent = maxPercent
			d.stat.NextTick = Forever

		case ModeBlink:
			if !d.stat.On {
				d.stat.NextTick = d.cfg.onTick
				d.stat.Percent = maxPercent
			} else {
				d.stat.NextTick = d.cfg.offTick
				d.stat.Percent = minPercent
			}
			d.stat.On = !d.stat.On

		case ModeBreath, ModeFadeIn, ModeFadeOut:
			d.stat.Phase += d.stat.PhaseStep
			switch d.cfg.mode {
			case ModeBreath:
				if d.stat.Phase >= 2*math.Pi {
					d.stat.Phase -= 2 * math.Pi
				}
			case ModeFadeIn:
				if d.stat.Phase >= math.Pi {
					d.stat.Phase = math.Pi
					d.stat.NextTick = Forever
				}
			case ModeFadeOut:
				if d.stat.Phase <= 0 {
					d.stat.Phase = 0
					d.stat.NextTick = Forever
				}
			}
			d.stat.Percent = e.curve.Percent(d.stat.Phase)

		case ModeAlternate:
			p := d.cfg.partner
			if p < 0 || p >= len(e.devs) {
				break
			}
			d.stat.NextTick = d.cfg.alternateTick
			if i < p {
				// The lower id of a pair toggles on its own; the
				// higher id mirrors the inverse of its partner, so
				// one toggle decision happens per pair per cycle.
				d.stat.On = !d.stat.On
			} else {
				d.stat.On = !e.devs[p].stat.On
			}
			if d.stat.On {
				d.stat.Percent = maxPercent
			} else {
				d.stat.Percent = minPercent
			}
		}

		d.actuate(d.stat.Percent)
	}
}
