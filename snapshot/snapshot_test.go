package snapshot

import (
	"errors"
	"math/rand/v2"
	"testing"

	"go-vjctl/automation"
	"go-vjctl/param"
)

var sizeSpec = param.Spec{Type: param.Float, Range: param.Range{Min: 0, Max: 10}}

func TestRecallScenario(t *testing.T) {
	var bank Bank
	if err := bank.Save(3, Table{"size": param.F(2)}); err != nil {
		t.Fatal(err)
	}
	live := Table{"size": param.F(9)}

	table, err := bank.Get(3)
	if err != nil {
		t.Fatal(err)
	}
	set := NewSet()
	batch := Recall([]Candidate{{Name: "size", Spec: sizeSpec}}, table)
	set.Start(batch, func(name string) Value { return live[name] }, 10, 4, automation.Linear)

	steps := []struct {
		beat    float64
		want    float64
		retired bool
	}{
		{10, 9, false},
		{12, 5.5, false},
		{14, 2, true},
	}
	for _, s := range steps {
		values, retired := set.Update(s.beat)
		if got := values["size"].Num; got != s.want {
			t.Fatalf("beat %v: size = %v, want %v", s.beat, got, s.want)
		}
		if (len(retired) == 1) != s.retired {
			t.Fatalf("beat %v: retired = %v", s.beat, retired)
		}
	}
	if set.Active("size") {
		t.Fatal("transition still active after completion")
	}
}

func TestRecallIdempotent(t *testing.T) {
	live := Table{"size": param.F(4), "mirror": param.B(true)}
	cands := []Candidate{
		{Name: "size", Spec: sizeSpec},
		{Name: "mirror", Spec: param.Spec{Type: param.Bool}},
	}
	set := NewSet()
	set.Start(Recall(cands, live), func(name string) Value { return live[name] }, 0, 2, automation.SineInOut)
	for beat := 0.0; beat <= 2; beat += 0.25 {
		values, _ := set.Update(beat)
		for name, v := range values {
			if !v.Equal(live[name]) {
				t.Fatalf("beat %v: %s = %v, want %v", beat, name, v, live[name])
			}
		}
	}
}

func TestMonotonicApproach(t *testing.T) {
	for _, e := range []automation.Easing{automation.Linear, automation.QuadInOut, automation.ExpoOut} {
		set := NewSet()
		set.Start([]Target{{Name: "size", Spec: sizeSpec, To: param.F(8)}},
			func(string) Value { return param.F(1) }, 0, 4, e)
		prev := 1.0
		for beat := 0.0; beat <= 4; beat += 0.1 {
			values, _ := set.Update(beat)
			v := values["size"].Num
			if v < prev {
				t.Fatalf("%s: value went back from %v to %v", e, prev, v)
			}
			prev = v
		}
	}
}

func TestSupersedeStartsFromInterpolated(t *testing.T) {
	set := NewSet()
	cur := func(string) Value { return param.F(0) }
	set.Start([]Target{{Name: "size", Spec: sizeSpec, To: param.F(10)}}, cur, 0, 4, automation.Linear)
	set.Start([]Target{{Name: "size", Spec: sizeSpec, To: param.F(0)}}, cur, 2, 2, automation.Linear)
	values, _ := set.Update(2)
	if got := values["size"].Num; got != 5 {
		t.Fatalf("restart value = %v, want 5", got)
	}
	values, _ = set.Update(3)
	if got := values["size"].Num; got != 2.5 {
		t.Fatalf("midway = %v, want 2.5", got)
	}
}

func TestCancel(t *testing.T) {
	set := NewSet()
	set.Start([]Target{{Name: "size", Spec: sizeSpec, To: param.F(10)}},
		func(string) Value { return param.F(0) }, 0, 4, automation.Linear)
	if !set.Cancel("size") || set.Active("size") || set.Cancel("size") {
		t.Fatal("cancel")
	}
}

func TestRandomTargets(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	spec := param.Spec{Type: param.Float, Range: param.Range{Min: -1, Max: 1, Step: 0.25}}
	cands := []Candidate{
		{Name: "a", Spec: spec},
		{Name: "b", Spec: spec},
		{Name: "shape", Spec: param.Spec{Type: param.Choice, Options: []string{"x", "y"}}},
	}
	for i := 0; i < 50; i++ {
		targets := Targets(cands, map[string]bool{"b": true}, r)
		if len(targets) != 2 {
			t.Fatalf("targets = %d, want 2", len(targets))
		}
		for _, tg := range targets {
			if tg.Name == "b" {
				t.Fatal("excluded control randomized")
			}
			if tg.Spec.Type == param.Float {
				if !spec.Range.Contains(tg.To.Num) || spec.Range.Quantize(tg.To.Num) != tg.To.Num {
					t.Fatalf("off-grid target %v", tg.To.Num)
				}
			}
		}
	}
}

func TestBankSlots(t *testing.T) {
	var bank Bank
	if _, err := bank.Get(0); !errors.Is(err, ErrSlotEmpty) {
		t.Fatalf("err = %v", err)
	}
	if err := bank.Save(10, Table{}); err == nil {
		t.Fatal("slot 10 accepted")
	}
	bank.Save(2, Table{"a": param.F(1)})
	bank.Save(7, Table{"a": param.F(2)})
	if got := bank.Occupied(); len(got) != 2 || got[0] != 2 || got[1] != 7 {
		t.Fatalf("occupied = %v", got)
	}
	bank.Delete(2)
	if got := bank.Occupied(); len(got) != 1 {
		t.Fatalf("occupied = %v", got)
	}
}

func TestSequencerCycles(t *testing.T) {
	var bank Bank
	bank.Save(1, Table{})
	bank.Save(4, Table{})

	var seq Sequencer
	if _, ok := seq.Due(0, &bank); ok {
		t.Fatal("due while disengaged")
	}
	seq.Engage(0, 4)
	var got []int
	for beat := 0.0; beat < 16; beat += 0.5 {
		if slot, ok := seq.Due(beat, &bank); ok {
			got = append(got, slot)
		}
	}
	want := []int{1, 4, 1, 4}
	if len(got) != len(want) {
		t.Fatalf("recalls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("recalls = %v, want %v", got, want)
		}
	}
}
