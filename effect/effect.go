// Package effect implements the modulation chain: ordered transforms
// applied to a source value, some of which carry state between ticks.
package effect

import (
	"fmt"
	"math"
)

// Kind identifies an effect implementation
type Kind string

const (
	KindSlew Kind = "slew-limiter"
	KindMath Kind = "math"
)

// Context is what an effect can see while being applied
type Context struct {
	Beat   float64
	Lookup func(name string) (float64, bool) // live node values
}

// Effect transforms one value. Stateless effects ignore st.
type Effect interface {
	Kind() Kind
	Stateful() bool
	Apply(in float64, ctx Context, st *State) float64
	// Refs lists node names the effect reads through ctx.Lookup
	Refs() []string
}

// State is the memory of a stateful effect instance
type State struct {
	Value float64
	Beat  float64
	Init  bool
}

// SlewLimiter bounds the per-beat rate of change. Rise and Fall are in value
// units per beat; zero means unlimited in that direction.
type SlewLimiter struct {
	Rise float64
	Fall float64
}

func (s SlewLimiter) Kind() Kind     { return KindSlew }
func (s SlewLimiter) Stateful() bool { return true }
func (s SlewLimiter) Refs() []string { return nil }

func (s SlewLimiter) Apply(in float64, ctx Context, st *State) float64 {
	if !st.Init || ctx.Beat < st.Beat {
		// first use, or the clock was reset/seeked backwards
		st.Value = in
		st.Beat = ctx.Beat
		st.Init = true
		return in
	}
	dt := ctx.Beat - st.Beat
	st.Beat = ctx.Beat

	out := in
	switch {
	case in > st.Value && s.Rise > 0:
		out = math.Min(in, st.Value+s.Rise*dt)
	case in < st.Value && s.Fall > 0:
		out = math.Max(in, st.Value-s.Fall*dt)
	}
	st.Value = out
	return out
}

// Operator is a math effect operation
type Operator string

const (
	OpAdd Operator = "add"
	OpSub Operator = "subtract"
	OpMul Operator = "multiply"
	OpDiv Operator = "divide"
	OpMin Operator = "min"
	OpMax Operator = "max"
	OpPow Operator = "power"
	OpMod Operator = "modulo"
)

// ParseOperator accepts the long names and their symbols
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "add", "+":
		return OpAdd, nil
	case "subtract", "sub", "-":
		return OpSub, nil
	case "multiply", "mul", "*":
		return OpMul, nil
	case "divide", "div", "/":
		return OpDiv, nil
	case "min":
		return OpMin, nil
	case "max":
		return OpMax, nil
	case "power", "pow", "^":
		return OpPow, nil
	case "modulo", "mod", "%":
		return OpMod, nil
	}
	return "", fmt.Errorf("unknown operator %q", s)
}

// Operand is either a constant or a reference to another node's live value
type Operand struct {
	Const float64
	Ref   string
}

// Math combines the input with an operand
type Math struct {
	Op      Operator
	Operand Operand
}

func (m Math) Kind() Kind     { return KindMath }
func (m Math) Stateful() bool { return false }

func (m Math) Refs() []string {
	if m.Operand.Ref != "" {
		return []string{m.Operand.Ref}
	}
	return nil
}

func (m Math) Apply(in float64, ctx Context, _ *State) float64 {
	x := m.Operand.Const
	if m.Operand.Ref != "" {
		v, ok := ctx.Lookup(m.Operand.Ref)
		if !ok {
			return in
		}
		x = v
	}

	var out float64
	switch m.Op {
	case OpAdd:
		out = in + x
	case OpSub:
		out = in - x
	case OpMul:
		out = in * x
	case OpDiv:
		if x == 0 {
			return in
		}
		out = in / x
	case OpMin:
		out = math.Min(in, x)
	case OpMax:
		out = math.Max(in, x)
	case OpPow:
		out = math.Pow(in, x)
	case OpMod:
		if x == 0 {
			return in
		}
		out = math.Mod(in, x)
	default:
		return in
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return in
	}
	return out
}
