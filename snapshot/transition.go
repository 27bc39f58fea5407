package snapshot

import (
	"sort"

	"go-vjctl/automation"
	"go-vjctl/param"
)

// Transition moves one control from Old to New over Duration beats
type Transition struct {
	Name     string
	Spec     param.Spec
	Old      Value
	New      Value
	Start    float64
	Duration float64
	Easing   automation.Easing
}

// Progress is clamp((beat-Start)/Duration, 0, 1)
func (t *Transition) Progress(beat float64) float64 {
	if t.Duration <= 0 {
		return 1
	}
	p := (beat - t.Start) / t.Duration
	return max(0, min(1, p))
}

// Value is the interpolated value at beat, exactly New once complete
func (t *Transition) Value(beat float64) Value {
	p := t.Progress(beat)
	if p >= 1 {
		return t.New
	}
	return t.Spec.FromNum(automation.Ease(t.Old.Num, t.New.Num, p, t.Easing))
}

// Target is one control's destination in a batch
type Target struct {
	Name string
	Spec param.Spec
	To   Value
}

// Set holds the active transitions, at most one per control
type Set struct {
	active map[string]*Transition
}

func NewSet() *Set {
	return &Set{active: make(map[string]*Transition)}
}

// Start begins a batch sharing one start beat. A control already in
// transition restarts from its interpolated value at beat; others start from
// current(name).
func (s *Set) Start(batch []Target, current func(name string) Value, beat, duration float64, easing automation.Easing) {
	for _, tg := range batch {
		from := current(tg.Name)
		if old, ok := s.active[tg.Name]; ok {
			from = old.Value(beat)
		}
		s.active[tg.Name] = &Transition{
			Name:     tg.Name,
			Spec:     tg.Spec,
			Old:      from,
			New:      tg.To,
			Start:    beat,
			Duration: duration,
			Easing:   easing,
		}
	}
}

// Update evaluates every active transition at beat. Completed transitions
// are included with their final value and then retired.
func (s *Set) Update(beat float64) (values map[string]Value, retired []string) {
	values = make(map[string]Value, len(s.active))
	for name, t := range s.active {
		values[name] = t.Value(beat)
		if t.Progress(beat) >= 1 {
			retired = append(retired, name)
		}
	}
	for _, name := range retired {
		delete(s.active, name)
	}
	sort.Strings(retired)
	return values, retired
}

// Cancel drops the transition for name; the control keeps whatever its
// other sources produce from the next resolve on.
func (s *Set) Cancel(name string) bool {
	if _, ok := s.active[name]; !ok {
		return false
	}
	delete(s.active, name)
	return true
}

func (s *Set) Active(name string) bool {
	_, ok := s.active[name]
	return ok
}

func (s *Set) Len() int { return len(s.active) }

// Shift moves every active transition by delta beats, used when the clock
// jumps backwards so progress continues from where it was.
func (s *Set) Shift(delta float64) {
	for _, t := range s.active {
		t.Start += delta
	}
}

// Names lists the controls in transition
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.active))
	for name := range s.active {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Respec updates the value domain of an active transition after reload
func (s *Set) Respec(name string, spec param.Spec) {
	if t, ok := s.active[name]; ok {
		t.Spec = spec
	}
}
