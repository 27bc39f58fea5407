// Package param holds the scalar value types shared by every part of the
// control runtime.
package param

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Type identifies how a value is presented to consumers
type Type uint8

const (
	Float Type = iota
	Bool
	Choice
)

func (t Type) String() string {
	switch t {
	case Bool:
		return "bool"
	case Choice:
		return "choice"
	default:
		return "float"
	}
}

// Value is a resolved control value. Bools are stored as 0/1 and choices as
// the option index in Num, with the option label in Text.
type Value struct {
	Type Type
	Num  float64
	Text string
}

// F makes a float value
func F(v float64) Value {
	return Value{Type: Float, Num: v}
}

// B makes a bool value
func B(v bool) Value {
	if v {
		return Value{Type: Bool, Num: 1}
	}
	return Value{Type: Bool}
}

// C makes a choice value
func C(index int, label string) Value {
	return Value{Type: Choice, Num: float64(index), Text: label}
}

func (v Value) Float() float64 {
	return v.Num
}

func (v Value) Bool() bool {
	return v.Num >= 0.5
}

// Index returns the option index of a choice value
func (v Value) Index() int {
	return int(math.Round(v.Num))
}

func (v Value) String() string {
	switch v.Type {
	case Bool:
		return strconv.FormatBool(v.Bool())
	case Choice:
		return v.Text
	default:
		return strconv.FormatFloat(v.Num, 'g', 6, 64)
	}
}

// Equal compares presented values
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case Bool:
		return v.Bool() == o.Bool()
	case Choice:
		return v.Text == o.Text
	default:
		return v.Num == o.Num
	}
}

// MarshalJSON encodes floats as numbers, bools as booleans and choices as
// their option label.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Type {
	case Bool:
		return json.Marshal(v.Bool())
	case Choice:
		return json.Marshal(v.Text)
	default:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return []byte("0"), nil
		}
		return json.Marshal(v.Num)
	}
}

// UnmarshalJSON decodes the three JSON shapes. Choice indexes are unknown
// until the value is coerced against a control (see Spec.Coerce).
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty value")
	}
	switch data[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = B(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value{Type: Choice, Num: -1, Text: s}
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*v = F(f)
	}
	return nil
}
