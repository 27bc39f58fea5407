package script

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"go-vjctl/automation"
	"go-vjctl/effect"
	"go-vjctl/param"
)

type entry struct {
	Type    string    `yaml:"type"`
	Label   string    `yaml:"label,omitempty"`
	Range   []float64 `yaml:"range,omitempty"`
	Step    float64   `yaml:"step,omitempty"`
	Default any       `yaml:"default,omitempty"`
	Options []string  `yaml:"options,omitempty"`
	Disable string    `yaml:"disable,omitempty"`

	Mode        string       `yaml:"mode,omitempty"`
	Breakpoints []breakpoint `yaml:"breakpoints,omitempty"`

	Kind     string  `yaml:"kind,omitempty"`
	Rise     float64 `yaml:"rise,omitempty"`
	Fall     float64 `yaml:"fall,omitempty"`
	Operator string  `yaml:"operator,omitempty"`
	Operand  any     `yaml:"operand,omitempty"`

	Source     string   `yaml:"source,omitempty"`
	Modulators []string `yaml:"modulators,omitempty"`
	Target     string   `yaml:"target,omitempty"`
}

type breakpoint struct {
	Position  float64 `yaml:"position"`
	Value     float64 `yaml:"value"`
	Kind      string  `yaml:"kind"`
	Easing    string  `yaml:"easing,omitempty"`
	Shape     string  `yaml:"shape,omitempty"`
	Frequency float64 `yaml:"frequency,omitempty"`
	Width     float64 `yaml:"width,omitempty"`
	Amplitude float64 `yaml:"amplitude,omitempty"`
	Constrain string  `yaml:"constrain,omitempty"`
	Reseed    string  `yaml:"reseed,omitempty"`
}

// Load reads and parses a script file. The document ID is the file name
// without its extension.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	doc.ID = ID(path)
	return doc, nil
}

// ID derives the persistence identity of a script path
func ID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Parse decodes a script document. Top-level keys starting with "_" are
// reusable blocks (YAML anchors) and never become nodes.
func Parse(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	doc := &Document{}
	if len(root.Content) == 0 {
		return doc, nil
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse script: line %d: top level must be a mapping of names to entries", top.Line)
	}

	var diags []Diagnostic
	for i := 0; i+1 < len(top.Content); i += 2 {
		name := top.Content[i].Value
		if strings.HasPrefix(name, "_") {
			continue
		}
		var e entry
		if err := top.Content[i+1].Decode(&e); err != nil {
			diags = append(diags, Errorf(name, "line %d: %v", top.Content[i+1].Line, err))
			continue
		}
		def, err := e.def(name)
		if err != nil {
			diags = append(diags, Errorf(name, "%v", err))
			continue
		}
		doc.Defs = append(doc.Defs, def)
	}
	if len(diags) > 0 {
		return nil, &LoadError{Diagnostics: diags}
	}
	return doc, nil
}

func (e *entry) def(name string) (Def, error) {
	var d Def
	switch Kind(e.Type) {
	case KindSeparator:
		d = Separator(name, e.Label)
	case KindSlider:
		r := param.Range{Min: 0, Max: 1, Step: e.Step}
		if len(e.Range) != 0 {
			if len(e.Range) != 2 {
				return d, fmt.Errorf("range must be [min, max]")
			}
			r.Min, r.Max = e.Range[0], e.Range[1]
		}
		def := r.Min
		if e.Default != nil {
			f, ok := number(e.Default)
			if !ok {
				return d, fmt.Errorf("default must be a number, got %v", e.Default)
			}
			def = f
		}
		d = Slider(name, r, def)
	case KindCheckbox:
		def := false
		if e.Default != nil {
			b, ok := e.Default.(bool)
			if !ok {
				return d, fmt.Errorf("default must be true or false, got %v", e.Default)
			}
			def = b
		}
		d = Checkbox(name, def)
	case KindSelect:
		def := ""
		switch v := e.Default.(type) {
		case nil:
			if len(e.Options) > 0 {
				def = e.Options[0]
			}
		case string:
			def = v
		default:
			def = fmt.Sprint(v)
		}
		d = Select(name, e.Options, def)
	case KindAutomate:
		points := make([]automation.Breakpoint, len(e.Breakpoints))
		for i, b := range e.Breakpoints {
			points[i] = automation.Breakpoint{
				Position:  b.Position,
				Value:     b.Value,
				Kind:      automation.Kind(b.Kind),
				Easing:    automation.Easing(b.Easing),
				Shape:     automation.Shape(b.Shape),
				Frequency: b.Frequency,
				Width:     b.Width,
				Amplitude: b.Amplitude,
				Constrain: automation.Constrain(b.Constrain),
				Reseed:    automation.Reseed(b.Reseed),
			}
		}
		mode := automation.Mode(e.Mode)
		if mode == "" {
			mode = automation.Loop
		}
		d = Automate(name, mode, points...)
		if len(e.Range) == 2 {
			d = d.Within(param.Range{Min: e.Range[0], Max: e.Range[1]})
		} else if len(e.Range) != 0 {
			return d, fmt.Errorf("range must be [min, max]")
		}
	case KindEffect:
		switch effect.Kind(e.Kind) {
		case effect.KindSlew:
			d = Slew(name, e.Rise, e.Fall)
		case effect.KindMath:
			op, err := effect.ParseOperator(e.Operator)
			if err != nil {
				return d, err
			}
			var operand effect.Operand
			switch v := e.Operand.(type) {
			case string:
				operand.Ref = v
			case nil:
				return d, fmt.Errorf("math effect needs an operand")
			default:
				f, ok := number(v)
				if !ok {
					return d, fmt.Errorf("operand must be a number or a node name, got %v", v)
				}
				operand.Const = f
			}
			d = MathEffect(name, op, operand)
		default:
			return d, fmt.Errorf("unknown effect kind %q", e.Kind)
		}
	case KindMod:
		d = Mod(name, e.Source, e.Modulators...)
	case "":
		return d, fmt.Errorf("missing type")
	default:
		return d, fmt.Errorf("unknown type %q", e.Type)
	}
	d.Disable = e.Disable
	d.Target = e.Target
	if e.Label != "" {
		d.Label = e.Label
	}
	return d, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
