package effect

import (
	"math"
	"testing"
)

func ctxAt(beat float64, values map[string]float64) Context {
	return Context{
		Beat: beat,
		Lookup: func(name string) (float64, bool) {
			v, ok := values[name]
			return v, ok
		},
	}
}

func TestSlewLimiterRiseFall(t *testing.T) {
	s := SlewLimiter{Rise: 1, Fall: 4}
	st := &State{}

	if got := s.Apply(0, ctxAt(0, nil), st); got != 0 {
		t.Fatalf("got %v", got)
	}
	// rising is limited to 1 unit per beat
	if got := s.Apply(10, ctxAt(0.5, nil), st); got != 0.5 {
		t.Fatalf("got %v", got)
	}
	if got := s.Apply(10, ctxAt(1.5, nil), st); got != 1.5 {
		t.Fatalf("got %v", got)
	}
	// falling is limited to 4 units per beat
	if got := s.Apply(-10, ctxAt(1.75, nil), st); got != 0.5 {
		t.Fatalf("got %v", got)
	}
	// reaching the target does not overshoot
	if got := s.Apply(0.25, ctxAt(3, nil), st); got != 0.25 {
		t.Fatalf("got %v", got)
	}
}

func TestSlewLimiterUnlimited(t *testing.T) {
	s := SlewLimiter{Rise: 0, Fall: 1}
	st := &State{}
	s.Apply(0, ctxAt(0, nil), st)
	if got := s.Apply(100, ctxAt(0.1, nil), st); got != 100 {
		t.Fatalf("got %v", got)
	}
}

func TestSlewLimiterClockReset(t *testing.T) {
	s := SlewLimiter{Rise: 1, Fall: 1}
	st := &State{}
	s.Apply(5, ctxAt(10, nil), st)
	if got := s.Apply(0, ctxAt(0, nil), st); got != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestRepeatedLinkKeepsOwnState(t *testing.T) {
	states := States{}
	c := &Chain{Owner: "hue", Links: []Link{
		{Name: "lag", Effect: SlewLimiter{Rise: 4, Fall: 4}},
		{Name: "lag", Effect: SlewLimiter{Rise: 1, Fall: 1}},
	}}

	c.Apply(0, ctxAt(0, nil), states)
	// the first link reaches 4, the second moves 1 toward it
	if got := c.Apply(10, ctxAt(1, nil), states); got != 1 {
		t.Fatalf("got %v", got)
	}
	if got := c.Apply(10, ctxAt(2, nil), states); got != 2 {
		t.Fatalf("got %v", got)
	}
	if keys := c.Keys(); len(keys) != 2 || keys[0] == keys[1] {
		t.Fatalf("keys %v", keys)
	}
	if len(states) != 2 {
		t.Fatalf("got %d states", len(states))
	}
}

func TestMath(t *testing.T) {
	values := map[string]float64{"gain": 3}
	tests := []struct {
		m    Math
		in   float64
		want float64
	}{
		{Math{Op: OpAdd, Operand: Operand{Const: 2}}, 1, 3},
		{Math{Op: OpSub, Operand: Operand{Const: 2}}, 1, -1},
		{Math{Op: OpMul, Operand: Operand{Ref: "gain"}}, 2, 6},
		{Math{Op: OpDiv, Operand: Operand{Const: 0}}, 2, 2},
		{Math{Op: OpMin, Operand: Operand{Const: 1}}, 2, 1},
		{Math{Op: OpMax, Operand: Operand{Const: 1}}, 2, 2},
		{Math{Op: OpPow, Operand: Operand{Const: 2}}, 3, 9},
		{Math{Op: OpMod, Operand: Operand{Const: 2}}, 5, 1},
		{Math{Op: OpMul, Operand: Operand{Ref: "missing"}}, 2, 2},
	}
	for _, tt := range tests {
		if got := tt.m.Apply(tt.in, ctxAt(0, values), nil); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%v %v: got %v, want %v", tt.m.Op, tt.in, got, tt.want)
		}
	}
}

func TestChainOrderMatters(t *testing.T) {
	add := Link{Name: "offset", Effect: Math{Op: OpAdd, Operand: Operand{Const: 1}}}
	mul := Link{Name: "double", Effect: Math{Op: OpMul, Operand: Operand{Const: 2}}}
	states := States{}

	a := &Chain{Owner: "m", Links: []Link{add, mul}}
	b := &Chain{Owner: "m", Links: []Link{mul, add}}
	if got := a.Apply(1, ctxAt(0, nil), states); got != 4 {
		t.Fatalf("got %v", got)
	}
	if got := b.Apply(1, ctxAt(0, nil), states); got != 3 {
		t.Fatalf("got %v", got)
	}
}

func TestStatesSurviveByKey(t *testing.T) {
	states := States{}
	slew := Link{Name: "smooth", Effect: SlewLimiter{Rise: 1, Fall: 1}}
	c := &Chain{Owner: "hue", Links: []Link{slew}}
	c.Apply(0, ctxAt(0, nil), states)
	c.Apply(10, ctxAt(1, nil), states)

	// a rebuilt chain with the same identity continues from the old state
	rebuilt := &Chain{Owner: "hue", Links: []Link{{Name: "smooth", Effect: SlewLimiter{Rise: 2, Fall: 1}}}}
	if got := rebuilt.Apply(10, ctxAt(2, nil), states); got != 3 {
		t.Fatalf("got %v", got)
	}

	keep := map[Key]bool{}
	for _, k := range rebuilt.Keys() {
		keep[k] = true
	}
	states[Key{Owner: "gone", Name: "x", Kind: KindSlew}] = &State{}
	states.Retain(keep)
	if len(states) != 1 {
		t.Fatalf("got %d states", len(states))
	}
}
