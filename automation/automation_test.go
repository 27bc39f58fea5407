package automation

import (
	"errors"
	"math"
	"testing"

	"go-vjctl/param"
)

const eps = 1e-9

func mustSequence(t *testing.T, mode Mode, points ...Breakpoint) *Sequence {
	t.Helper()
	s, err := NewSequence("test", mode, points, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStepRampScenario(t *testing.T) {
	s := mustSequence(t, Loop,
		Breakpoint{Position: 0, Value: 0, Kind: Step},
		Breakpoint{Position: 1, Value: 1, Kind: Ramp, Easing: Linear},
		Breakpoint{Position: 2, Value: 0, Kind: End},
	)
	tests := []struct {
		t, want float64
	}{
		{0.5, 0},
		{1.5, 0.5},
		{2.0, 0},
		{1.0, 1},
		{3.5, 0.5},
	}
	for _, tt := range tests {
		if got := s.Evaluate(tt.t); math.Abs(got-tt.want) > eps {
			t.Errorf("Evaluate(%v) = %v, want %v", tt.t, got, tt.want)
		}
	}
}

func TestPeriodicity(t *testing.T) {
	s := mustSequence(t, Loop,
		Breakpoint{Position: 0, Value: 0.2, Kind: Ramp, Easing: SineInOut},
		Breakpoint{Position: 1.5, Value: 0.9, Kind: Wave, Shape: Triangle, Frequency: 2, Amplitude: 0.1},
		Breakpoint{Position: 3, Value: 0.4, Kind: Random, Amplitude: 0.2},
		Breakpoint{Position: 3.5, Value: 0.1, Kind: Step},
		Breakpoint{Position: 4, Value: 0, Kind: End},
	)
	L := s.Length()
	for i := 0; i < 200; i++ {
		x := float64(i) * 0.037
		a := s.Evaluate(x)
		b := s.Evaluate(x + L)
		c := s.Evaluate(x + 3*L)
		if math.Abs(a-b) > 1e-6 || math.Abs(a-c) > 1e-6 {
			t.Fatalf("t=%v: %v %v %v", x, a, b, c)
		}
	}
}

func TestRampBoundaries(t *testing.T) {
	for _, e := range []Easing{Linear, QuadIn, QuadInOut, CubicInOut, SineOut, ExpoIn, ExpoOut, SmoothStep} {
		s := mustSequence(t, OneShot,
			Breakpoint{Position: 1, Value: 3, Kind: Ramp, Easing: e},
			Breakpoint{Position: 5, Value: 7, Kind: End},
		)
		if got := s.Evaluate(1); got != 3 {
			t.Errorf("%s: start = %v", e, got)
		}
		if got := s.Evaluate(5 - 1e-9); math.Abs(got-7) > 1e-6 {
			t.Errorf("%s: approach = %v", e, got)
		}
	}
}

func TestOneShotClamps(t *testing.T) {
	s := mustSequence(t, OneShot,
		Breakpoint{Position: 0, Value: 1, Kind: Ramp},
		Breakpoint{Position: 2, Value: 5, Kind: End},
	)
	if got := s.Evaluate(-4); got != 1 {
		t.Fatalf("got %v", got)
	}
	if got := s.Evaluate(2); got != 5 {
		t.Fatalf("got %v", got)
	}
	if got := s.Evaluate(100); got != 5 {
		t.Fatalf("got %v", got)
	}
}

func TestRandomStableWithinPass(t *testing.T) {
	s := mustSequence(t, Loop,
		Breakpoint{Position: 0, Value: 10, Kind: Random, Amplitude: 2},
		Breakpoint{Position: 4, Value: 0, Kind: End},
	)
	first := s.Evaluate(0.1)
	for _, x := range []float64{0.5, 1, 2.7, 3.99} {
		if got := s.Evaluate(x); got != first {
			t.Fatalf("t=%v: %v != %v", x, got, first)
		}
	}
	if first < 8 || first > 12 {
		t.Fatalf("jitter out of bounds: %v", first)
	}
}

func TestRandomReseedPerCycle(t *testing.T) {
	s := mustSequence(t, Loop,
		Breakpoint{Position: 0, Value: 0, Kind: Random, Amplitude: 1, Reseed: ReseedCycle},
		Breakpoint{Position: 1, Value: 0, Kind: End},
	)
	seen := make(map[float64]bool)
	for cycle := 0; cycle < 8; cycle++ {
		v := s.Evaluate(float64(cycle) + 0.5)
		if v != s.Evaluate(float64(cycle)+0.25) {
			t.Fatalf("cycle %d not stable", cycle)
		}
		seen[v] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected different draws per cycle, got %v", seen)
	}
}

func TestWaveConstrain(t *testing.T) {
	s := mustSequence(t, Loop,
		Breakpoint{Position: 0, Value: 0.4, Kind: Wave, Shape: Square, Amplitude: 1, Constrain: ConstrainClamp},
		Breakpoint{Position: 1, Value: 0.6, Kind: End},
	)
	for i := 0; i < 20; i++ {
		v := s.Evaluate(float64(i) / 20)
		if v < 0.4-eps || v > 0.6+eps {
			t.Fatalf("t=%v: %v escaped clamp", float64(i)/20, v)
		}
	}

	bounds := &param.Range{Min: 0, Max: 1}
	r, err := NewSequence("ranged", Loop, []Breakpoint{
		{Position: 0, Value: 0.9, Kind: Wave, Shape: Saw, Amplitude: 0.5, Constrain: ConstrainRange},
		{Position: 1, Value: 0.9, Kind: End},
	}, bounds)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Evaluate(0.99); got != 1 {
		t.Fatalf("got %v", got)
	}
}

func TestWaveSineAtSegmentStart(t *testing.T) {
	s := mustSequence(t, Loop,
		Breakpoint{Position: 0, Value: 0, Kind: Wave, Amplitude: 1, Frequency: 1},
		Breakpoint{Position: 1, Value: 0, Kind: End},
	)
	if got := s.Evaluate(0); math.Abs(got) > eps {
		t.Fatalf("got %v", got)
	}
	if got := s.Evaluate(0.25); math.Abs(got-1) > eps {
		t.Fatalf("got %v", got)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name   string
		points []Breakpoint
		index  int
	}{
		{"too short", []Breakpoint{{Position: 0, Kind: End}}, -1},
		{"no end", []Breakpoint{{Position: 0, Kind: Step}, {Position: 1, Kind: Ramp}}, 1},
		{"end not last", []Breakpoint{{Position: 0, Kind: End}, {Position: 1, Kind: End}}, 0},
		{"not increasing", []Breakpoint{{Position: 0, Kind: Step}, {Position: 0, Kind: End}}, 1},
		{"bad kind", []Breakpoint{{Position: 0, Kind: "hold"}, {Position: 1, Kind: End}}, 0},
		{"bad easing", []Breakpoint{{Position: 0, Kind: Ramp, Easing: "bounce"}, {Position: 1, Kind: End}}, 0},
	}
	for _, tt := range tests {
		_, err := NewSequence(tt.name, Loop, tt.points, nil)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: got %v", tt.name, err)
		}
		if verr.Index != tt.index {
			t.Errorf("%s: index %d, want %d", tt.name, verr.Index, tt.index)
		}
	}
}
