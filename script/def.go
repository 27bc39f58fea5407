// Package script reads the declarative control document and turns each
// entry into a node definition.
package script

import (
	"math"

	"go-vjctl/automation"
	"go-vjctl/effect"
	"go-vjctl/param"
)

// Kind is the node type discriminator
type Kind string

const (
	KindSeparator Kind = "separator"
	KindSlider    Kind = "slider"
	KindCheckbox  Kind = "checkbox"
	KindSelect    Kind = "select"
	KindAutomate  Kind = "automate"
	KindEffect    Kind = "effect"
	KindMod       Kind = "mod"
)

// Writable reports whether the kind holds an operator-editable value
func (k Kind) Writable() bool {
	return k == KindSlider || k == KindCheckbox || k == KindSelect
}

// Def is one node definition, in document order
type Def struct {
	Name  string
	Kind  Kind
	Label string

	// slider, checkbox, select
	Spec    param.Spec
	Default param.Value
	Disable string // expression source

	// automate
	Mode        automation.Mode
	Breakpoints []automation.Breakpoint
	Bounds      *param.Range

	// effect
	Effect effect.Effect

	// mod
	Source     string
	Modulators []string

	// automate, mod: writable control driven by this node's value
	Target string
}

// Document is a parsed script
type Document struct {
	ID   string // identity used for persisted state
	Defs []Def
}

// Names lists node names in document order
func (d *Document) Names() []string {
	out := make([]string, len(d.Defs))
	for i, def := range d.Defs {
		out[i] = def.Name
	}
	return out
}

// Lookup finds a def by name
func (d *Document) Lookup(name string) (Def, bool) {
	for _, def := range d.Defs {
		if def.Name == name {
			return def, true
		}
	}
	return Def{}, false
}

func Separator(name, label string) Def {
	return Def{Name: name, Kind: KindSeparator, Label: label}
}

func Slider(name string, r param.Range, def float64) Def {
	spec := param.Spec{Type: param.Float, Range: r}
	return Def{Name: name, Kind: KindSlider, Spec: spec, Default: param.F(def)}
}

func Checkbox(name string, def bool) Def {
	return Def{Name: name, Kind: KindCheckbox, Spec: param.Spec{Type: param.Bool}, Default: param.B(def)}
}

// Select builds an enumerated control; def must be one of options
func Select(name string, options []string, def string) Def {
	spec := param.Spec{Type: param.Choice, Options: options}
	v, ok := spec.Coerce(param.Value{Type: param.Choice, Text: def})
	if !ok {
		v = param.Value{Type: param.Choice, Num: -1, Text: def}
	}
	return Def{Name: name, Kind: KindSelect, Spec: spec, Default: v}
}

func Automate(name string, mode automation.Mode, points ...automation.Breakpoint) Def {
	return Def{Name: name, Kind: KindAutomate, Mode: mode, Breakpoints: points}
}

func Slew(name string, rise, fall float64) Def {
	return Def{Name: name, Kind: KindEffect, Effect: effect.SlewLimiter{Rise: rise, Fall: fall}}
}

func MathEffect(name string, op effect.Operator, operand effect.Operand) Def {
	return Def{Name: name, Kind: KindEffect, Effect: effect.Math{Op: op, Operand: operand}}
}

// Mod applies the named effects, in order, to source
func Mod(name, source string, modulators ...string) Def {
	return Def{Name: name, Kind: KindMod, Source: source, Modulators: modulators}
}

// DisabledBy attaches a disable-expression
func (d Def) DisabledBy(src string) Def {
	d.Disable = src
	return d
}

// Driving makes the node drive a writable control
func (d Def) Driving(target string) Def {
	d.Target = target
	return d
}

// Labeled sets the display label
func (d Def) Labeled(label string) Def {
	d.Label = label
	return d
}

// Within sets an automate node's declared range
func (d Def) Within(r param.Range) Def {
	d.Bounds = &r
	return d
}

// Step sets a slider's step
func (d Def) Step(step float64) Def {
	d.Spec.Range.Step = step
	return d
}

// ValueSpec returns the value domain of a writable def, or of an automate
// or mod node read as a float.
func (d Def) ValueSpec() param.Spec {
	if d.Kind.Writable() {
		return d.Spec
	}
	if d.Bounds != nil {
		return param.Spec{Type: param.Float, Range: *d.Bounds}
	}
	return param.Spec{Type: param.Float, Range: param.Range{Min: -math.MaxFloat64, Max: math.MaxFloat64}}
}
