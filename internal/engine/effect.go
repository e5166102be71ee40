package engine

import "time"

// Effect describes the behavior requested for a single LED. Fields that do not
// apply to the chosen mode are ignored.
//
// All times are converted to whole poll periods by integer division when the
// effect is written. A time shorter than one period compiles to zero ticks, so
// callers who need deterministic timing should supply multiples of the period.
type Effect struct {
	Mode Mode

	// Partner is the LED paired with this one in ModeAlternate. It must
	// differ from the LED the effect is written to.
	Partner int

	// On and Off are the lit and dark times of one blink cycle.
	On  time.Duration
	Off time.Duration

	// Fade is the time of one 0-100% ramp for ModeBreath, ModeFadeIn and
	// ModeFadeOut.
	Fade time.Duration

	// Alternate is the toggle period for ModeAlternate.
	Alternate time.Duration

	// Duration stops the effect and forces the LED off after this much
	// time. Zero runs the effect until the next write.
	Duration time.Duration
}

// compiled is an effect converted to tick units, bound to the engine's poll
// period. It is owned by the device it configures and replaced wholesale on
// every write.
type compiled struct {
	mode          Mode
	partner       int
	onTick        uint32
	offTick       uint32
	fadeTick      uint32
	alternateTick uint32
	durationTick  uint32
}

func (e Effect) compile(period time.Duration) compiled {
	return compiled{
		mode:          e.Mode,
		partner:       e.Partner,
		onTick:        ticks(e.On, period),
		offTick:       ticks(e.Off, period),
		fadeTick:      ticks(e.Fade, period),
		alternateTick: ticks(e.Alternate, period),
		durationTick:  ticks(e.Duration, period),
	}
}

func ticks(d, period time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32(d / period)
}
