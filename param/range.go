package param

import "math"

// Range is the numeric domain of a slider-like control
type Range struct {
	Min  float64
	Max  float64
	Step float64 // 0 = continuous
}

// Clamp limits v to [Min, Max]
func (r Range) Clamp(v float64) float64 {
	lo, hi := r.Min, r.Max
	if lo > hi {
		lo, hi = hi, lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// Quantize snaps v onto the step grid anchored at Min, then clamps
func (r Range) Quantize(v float64) float64 {
	if r.Step > 0 {
		v = r.Min + math.Round((v-r.Min)/r.Step)*r.Step
	}
	return r.Clamp(v)
}

// FromUnit maps u in [0, 1] onto the range
func (r Range) FromUnit(u float64) float64 {
	u = math.Max(0, math.Min(1, u))
	return r.Min + (r.Max-r.Min)*u
}

// ToUnit maps v onto [0, 1]
func (r Range) ToUnit(v float64) float64 {
	if r.Max == r.Min {
		return 0
	}
	return math.Max(0, math.Min(1, (v-r.Min)/(r.Max-r.Min)))
}

// Contains reports whether v lies inside the range
func (r Range) Contains(v float64) bool {
	return r.Clamp(v) == v
}

// UnitToIndex discretizes u in [0, 1] over n options
func UnitToIndex(u float64, n int) int {
	if n <= 0 {
		return 0
	}
	i := int(math.Floor(math.Max(0, math.Min(1, u)) * float64(n)))
	if i >= n {
		i = n - 1
	}
	return i
}
