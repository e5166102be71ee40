package engine

import "fmt"

// Mode selects the effect an LED runs.
type Mode uint8

const (
	ModeOff Mode = iota
	ModeOn
	ModeBlink
	ModeBreath
	ModeFadeIn
	ModeFadeOut
	ModeAlternate
)

var modeNames = [...]string{
	ModeOff:       "off",
	ModeOn:        "on",
	ModeBlink:     "blink",
	ModeBreath:    "breath",
	ModeFadeIn:    "fade_in",
	ModeFadeOut:   "fade_out",
	ModeAlternate: "alternate",
}

func (m Mode) String() string {
	if !m.valid() {
		return "unknown"
	}
	return modeNames[m]
}

func (m Mode) valid() bool {
	return m <= ModeAlternate
}

// ParseMode maps a mode name ("off", "on", "blink", "breath", "fade_in",
// "fade_out", "alternate") back to its Mode value.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return Mode(m), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}
