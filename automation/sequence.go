// Package automation evaluates beat-synchronized breakpoint curves.
package automation

import (
	"fmt"
	"hash/fnv"

	"go-vjctl/param"
)

// Kind selects how the segment starting at a breakpoint behaves
type Kind string

const (
	Step   Kind = "step"
	Ramp   Kind = "ramp"
	Wave   Kind = "wave"
	Random Kind = "random"
	End    Kind = "end"
)

// Mode is the playback mode of a sequence
type Mode string

const (
	Loop    Mode = "loop"
	OneShot Mode = "one-shot"
)

// Shape is the oscillator of a wave segment
type Shape string

const (
	Sine     Shape = "sine"
	Triangle Shape = "triangle"
	Square   Shape = "square"
	Saw      Shape = "saw"
)

// Constrain limits a wave segment's output
type Constrain string

const (
	ConstrainNone  Constrain = ""
	ConstrainClamp Constrain = "clamp" // between the segment's two values
	ConstrainRange Constrain = "range" // inside the node's declared range
)

// Reseed controls when random jitter is re-rolled
type Reseed string

const (
	ReseedOnce  Reseed = "once"  // one roll per segment for the life of the sequence
	ReseedCycle Reseed = "cycle" // a new roll every loop cycle
)

// Breakpoint is one timed anchor of a sequence
type Breakpoint struct {
	Position float64 // beats
	Value    float64
	Kind     Kind

	Easing Easing // ramp, wave

	Shape     Shape   // wave
	Frequency float64 // wave: cycles per beat, 0 = 1
	Width     float64 // wave: duty (square) or peak position (triangle), 0 = 0.5
	Amplitude float64 // wave, random
	Constrain Constrain
	Reseed    Reseed // random
}

// Sequence is a validated breakpoint list
type Sequence struct {
	name   string
	mode   Mode
	points []Breakpoint
	bounds *param.Range
	seed   uint64
}

// ValidationError names the offending breakpoint (Index -1 for the whole list)
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return e.Reason
	}
	return fmt.Sprintf("breakpoint %d: %s", e.Index, e.Reason)
}

// NewSequence validates points and builds a sequence. bounds is the node's
// declared range and may be nil.
func NewSequence(name string, mode Mode, points []Breakpoint, bounds *param.Range) (*Sequence, error) {
	if mode != Loop && mode != OneShot {
		return nil, &ValidationError{Index: -1, Reason: fmt.Sprintf("unknown mode %q", mode)}
	}
	if err := validate(points); err != nil {
		return nil, err
	}

	pts := make([]Breakpoint, len(points))
	copy(pts, points)
	for i := range pts {
		if pts[i].Easing == "" {
			pts[i].Easing = Linear
		}
		if pts[i].Kind == Wave {
			if pts[i].Frequency == 0 {
				pts[i].Frequency = 1
			}
			if pts[i].Width == 0 {
				pts[i].Width = 0.5
			}
			if pts[i].Shape == "" {
				pts[i].Shape = Sine
			}
		}
		if pts[i].Kind == Random && pts[i].Reseed == "" {
			pts[i].Reseed = ReseedOnce
		}
	}

	h := fnv.New64a()
	h.Write([]byte(name))

	return &Sequence{
		name:   name,
		mode:   mode,
		points: pts,
		bounds: bounds,
		seed:   h.Sum64(),
	}, nil
}

func validate(points []Breakpoint) error {
	if len(points) < 2 {
		return &ValidationError{Index: -1, Reason: "needs at least two breakpoints"}
	}
	if points[0].Position < 0 {
		return &ValidationError{Index: 0, Reason: "position must not be negative"}
	}
	last := len(points) - 1
	for i, p := range points {
		switch p.Kind {
		case Step, Ramp, Random:
		case Wave:
			switch p.Shape {
			case "", Sine, Triangle, Square, Saw:
			default:
				return &ValidationError{Index: i, Reason: fmt.Sprintf("unknown wave shape %q", p.Shape)}
			}
			if p.Frequency < 0 {
				return &ValidationError{Index: i, Reason: "frequency must not be negative"}
			}
			if p.Width < 0 || p.Width > 1 {
				return &ValidationError{Index: i, Reason: "width must be within [0, 1]"}
			}
			switch p.Constrain {
			case ConstrainNone, ConstrainClamp, ConstrainRange:
			default:
				return &ValidationError{Index: i, Reason: fmt.Sprintf("unknown constrain mode %q", p.Constrain)}
			}
		case End:
			if i != last {
				return &ValidationError{Index: i, Reason: "end breakpoint must be last"}
			}
		default:
			return &ValidationError{Index: i, Reason: fmt.Sprintf("unknown kind %q", p.Kind)}
		}
		if p.Easing != "" {
			if _, ok := easings[p.Easing]; !ok {
				return &ValidationError{Index: i, Reason: fmt.Sprintf("unknown easing %q", p.Easing)}
			}
		}
		if p.Kind == Random && p.Reseed != "" && p.Reseed != ReseedOnce && p.Reseed != ReseedCycle {
			return &ValidationError{Index: i, Reason: fmt.Sprintf("unknown reseed %q", p.Reseed)}
		}
		if i > 0 && p.Position <= points[i-1].Position {
			return &ValidationError{Index: i, Reason: "positions must be strictly increasing"}
		}
	}
	if points[last].Kind != End {
		return &ValidationError{Index: last, Reason: "missing end breakpoint"}
	}
	return nil
}

// Name returns the owning node name
func (s *Sequence) Name() string {
	return s.name
}

// Mode returns the playback mode
func (s *Sequence) Mode() Mode {
	return s.mode
}

// Length is the position of the end breakpoint
func (s *Sequence) Length() float64 {
	return s.points[len(s.points)-1].Position
}

// Points returns a copy of the breakpoints
func (s *Sequence) Points() []Breakpoint {
	out := make([]Breakpoint, len(s.points))
	copy(out, s.points)
	return out
}

// Initial is the first breakpoint's value, used as the safe fallback
func (s *Sequence) Initial() float64 {
	return s.points[0].Value
}
