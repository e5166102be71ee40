package engine

import "math"

// Curve converts a phase in [0, 2π) to a brightness percentage. The two
// implementations are interchangeable: they agree within one percentage point
// at every phase a running effect samples.
type Curve interface {
	Percent(phase float64) uint8
}

// cosineCurve evaluates the half-sine envelope (1 - cos(phase)) / 2 directly.
type cosineCurve struct{}

// CosineCurve returns the directly computed brightness curve.
func CosineCurve() Curve {
	return cosineCurve{}
}

func (cosineCurve) Percent(phase float64) uint8 {
	p := math.Round((1 - math.Cos(phase)) / 2 * maxPercent)
	if p <= minPercent {
		return minPercent
	}
	if p >= maxPercent {
		return maxPercent
	}
	return uint8(p)
}

const tableSize = 128

// tableCurve trades a cosine evaluation per tick for an indexed lookup. The
// table spans one full cycle plus a final entry for the 2π bound.
type tableCurve struct {
	entries [tableSize + 1]uint8
}

// TableCurve returns a lookup-table brightness curve precomputed from the
// same envelope CosineCurve evaluates.
func TableCurve() Curve {
	var c tableCurve
	for i := range c.entries {
		c.entries[i] = cosineCurve{}.Percent(2 * math.Pi * float64(i) / tableSize)
	}
	return &c
}

func (c *tableCurve) Percent(phase float64) uint8 {
	idx := int(phase / (2 * math.Pi / tableSize))
	if idx < 0 {
		idx = 0
	}
	if idx > tableSize {
		idx = tableSize
	}
	return c.entries[idx]
}
