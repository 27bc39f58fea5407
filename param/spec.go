package param

import (
	"math"
	"math/rand/v2"
	"slices"
)

// Spec is the value domain of a writable control
type Spec struct {
	Type    Type
	Range   Range    // Float
	Options []string // Choice
}

// FromNum converts an internal number (slider value, 0/1, option index)
// into a value of this domain.
func (s Spec) FromNum(n float64) Value {
	switch s.Type {
	case Bool:
		return B(n >= 0.5)
	case Choice:
		if len(s.Options) == 0 {
			return C(0, "")
		}
		i := int(math.Round(n))
		i = max(0, min(len(s.Options)-1, i))
		return C(i, s.Options[i])
	default:
		if math.IsNaN(n) {
			n = s.Range.Min
		}
		return F(s.Range.Clamp(n))
	}
}

// FromUnit maps a normalized controller position onto the domain,
// discretizing for bool and choice.
func (s Spec) FromUnit(u float64) Value {
	switch s.Type {
	case Bool:
		return B(u >= 0.5)
	case Choice:
		return s.FromNum(float64(UnitToIndex(u, len(s.Options))))
	default:
		return F(s.Range.Quantize(s.Range.FromUnit(u)))
	}
}

// ToUnit is the inverse of FromUnit, used for controller feedback
func (s Spec) ToUnit(v Value) float64 {
	switch s.Type {
	case Bool:
		if v.Bool() {
			return 1
		}
		return 0
	case Choice:
		if len(s.Options) < 2 {
			return 0
		}
		return float64(v.Index()) / float64(len(s.Options)-1)
	default:
		return s.Range.ToUnit(v.Num)
	}
}

// Coerce fits a value from another source (a save file, the panel, an old
// graph) into this domain. Floats are clamped but not re-quantized. Choices
// are matched by label first, then by index. ok is false when the value
// cannot represent anything in this domain.
func (s Spec) Coerce(v Value) (Value, bool) {
	switch s.Type {
	case Choice:
		if v.Type == Choice && v.Text != "" {
			if i := slices.Index(s.Options, v.Text); i >= 0 {
				return C(i, v.Text), true
			}
			return Value{}, false
		}
		if v.Type == Float && (v.Num < 0 || int(math.Round(v.Num)) >= len(s.Options)) {
			return Value{}, false
		}
		return s.FromNum(v.Num), true
	case Bool:
		if v.Type == Choice {
			return Value{}, false
		}
		return B(v.Num >= 0.5), true
	default:
		if v.Type == Choice {
			return Value{}, false
		}
		return s.FromNum(v.Num), true
	}
}

// Random draws a uniformly distributed value that respects the step grid
func (s Spec) Random(r *rand.Rand) Value {
	switch s.Type {
	case Bool:
		return B(r.IntN(2) == 1)
	case Choice:
		if len(s.Options) == 0 {
			return C(0, "")
		}
		return s.FromNum(float64(r.IntN(len(s.Options))))
	default:
		return F(s.Range.Quantize(s.Range.FromUnit(r.Float64())))
	}
}

// Lerp interpolates within the domain. Choices move by index and bools
// switch at the midpoint.
func (s Spec) Lerp(a, b Value, p float64) Value {
	return s.FromNum(a.Num + (b.Num-a.Num)*p)
}
