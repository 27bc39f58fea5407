package script

import (
	"go-vjctl/automation"
	"go-vjctl/effect"
)

// Validate checks each definition on its own: unique names, well-formed
// ranges and options, breakpoint sequences and effect parameters.
// References between nodes are resolved when the graph is built.
func Validate(doc *Document) []Diagnostic {
	var diags []Diagnostic
	seen := make(map[string]bool, len(doc.Defs))
	for _, d := range doc.Defs {
		if d.Name == "" {
			diags = append(diags, Errorf("", "entry without a name"))
			continue
		}
		if seen[d.Name] {
			diags = append(diags, Errorf(d.Name, "duplicate name"))
			continue
		}
		seen[d.Name] = true
		diags = append(diags, validateDef(d)...)
	}
	return diags
}

func validateDef(d Def) []Diagnostic {
	var diags []Diagnostic
	switch d.Kind {
	case KindSlider:
		r := d.Spec.Range
		if r.Min >= r.Max {
			diags = append(diags, Errorf(d.Name, "range min %g must be below max %g", r.Min, r.Max))
		}
		if r.Step < 0 {
			diags = append(diags, Errorf(d.Name, "step must not be negative"))
		}
		if !r.Contains(d.Default.Num) {
			diags = append(diags, Warnf(d.Name, "default %g outside range, clamped", d.Default.Num))
		}
	case KindSelect:
		if len(d.Spec.Options) == 0 {
			diags = append(diags, Errorf(d.Name, "select needs options"))
			break
		}
		uniq := make(map[string]bool)
		for _, o := range d.Spec.Options {
			if uniq[o] {
				diags = append(diags, Errorf(d.Name, "duplicate option %q", o))
			}
			uniq[o] = true
		}
		if d.Default.Num < 0 {
			diags = append(diags, Errorf(d.Name, "default %q is not an option", d.Default.Text))
		}
	case KindAutomate:
		if _, err := automation.NewSequence(d.Name, d.Mode, d.Breakpoints, d.Bounds); err != nil {
			diags = append(diags, sequenceDiagnostic(d.Name, err))
		}
		if d.Bounds != nil && d.Bounds.Min >= d.Bounds.Max {
			diags = append(diags, Errorf(d.Name, "range min %g must be below max %g", d.Bounds.Min, d.Bounds.Max))
		}
	case KindEffect:
		switch e := d.Effect.(type) {
		case effect.SlewLimiter:
			if e.Rise < 0 || e.Fall < 0 {
				diags = append(diags, Errorf(d.Name, "rise and fall must not be negative"))
			}
		case effect.Math:
		default:
			diags = append(diags, Errorf(d.Name, "effect has no implementation"))
		}
	case KindMod:
		if d.Source == "" {
			diags = append(diags, Errorf(d.Name, "mod needs a source"))
		}
	case KindSeparator, KindCheckbox:
	default:
		diags = append(diags, Errorf(d.Name, "unknown type %q", d.Kind))
	}
	if d.Target != "" && d.Kind != KindAutomate && d.Kind != KindMod {
		diags = append(diags, Errorf(d.Name, "only automate and mod nodes can drive a target"))
	}
	if d.Disable != "" && !d.Kind.Writable() {
		diags = append(diags, Warnf(d.Name, "disable is only meaningful on writable controls"))
	}
	return diags
}

func sequenceDiagnostic(name string, err error) Diagnostic {
	d := Errorf(name, "%v", err)
	d.Code = CodeSequence
	return d
}
