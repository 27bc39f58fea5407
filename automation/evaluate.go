package automation

import (
	"math"
	"math/rand/v2"
	"sort"
)

// Evaluate returns the sequence's value at beat t
func (s *Sequence) Evaluate(t float64) float64 {
	length := s.Length()
	cycle := 0.0

	switch s.mode {
	case Loop:
		cycle = math.Floor(t / length)
		t -= cycle * length
		// guard against t landing on length through rounding
		if t >= length || t < 0 {
			t = 0
			cycle++
		}
	default:
		if t >= length {
			return s.points[len(s.points)-1].Value
		}
		if t < 0 {
			t = 0
		}
	}

	if t < s.points[0].Position {
		return s.points[0].Value
	}

	// first breakpoint strictly after t, minus one
	i := sort.Search(len(s.points), func(i int) bool {
		return s.points[i].Position > t
	}) - 1
	prev := s.points[i]
	next := s.points[i+1]

	switch prev.Kind {
	case Ramp:
		return Ease(prev.Value, next.Value, progress(prev, next, t), prev.Easing)
	case Wave:
		return s.wave(prev, next, t)
	case Random:
		return prev.Value + prev.Amplitude*(2*s.roll(i, prev, cycle)-1)
	default:
		return prev.Value
	}
}

func progress(prev, next Breakpoint, t float64) float64 {
	return (t - prev.Position) / (next.Position - prev.Position)
}

// wave is the ramp between the two values plus amplitude times the shape,
// the shape's phase running at Frequency cycles per beat from the segment
// start.
func (s *Sequence) wave(prev, next Breakpoint, t float64) float64 {
	base := Ease(prev.Value, next.Value, progress(prev, next, t), prev.Easing)
	phase := (t - prev.Position) * prev.Frequency
	phase -= math.Floor(phase)
	v := base + prev.Amplitude*oscillate(prev.Shape, phase, prev.Width)

	switch prev.Constrain {
	case ConstrainClamp:
		lo, hi := math.Min(prev.Value, next.Value), math.Max(prev.Value, next.Value)
		v = math.Max(lo, math.Min(hi, v))
	case ConstrainRange:
		if s.bounds != nil {
			v = s.bounds.Clamp(v)
		}
	}
	return v
}

// oscillate returns the shape at phase in [0, 1) as a value in [-1, 1]
func oscillate(shape Shape, phase, width float64) float64 {
	switch shape {
	case Triangle:
		w := math.Max(1e-6, math.Min(1-1e-6, width))
		if phase < w {
			return -1 + 2*phase/w
		}
		return 1 - 2*(phase-w)/(1-w)
	case Square:
		if phase < width {
			return 1
		}
		return -1
	case Saw:
		return 2*phase - 1
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}

// roll is the segment's random draw in [0, 1). It depends only on the
// sequence seed, the breakpoint index and (for cycle reseeding) the loop
// cycle, so repeated reads within a pass agree.
func (s *Sequence) roll(index int, p Breakpoint, cycle float64) float64 {
	stream := uint64(index) << 32
	if p.Reseed == ReseedCycle {
		stream |= uint64(int64(cycle)) & 0xffffffff
	}
	return rand.New(rand.NewPCG(s.seed, stream)).Float64()
}
