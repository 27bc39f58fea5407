package control

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"go-vjctl/automation"
	"go-vjctl/bridge"
	"go-vjctl/clock"
	"go-vjctl/mapping"
	"go-vjctl/param"
	"go-vjctl/script"
	"go-vjctl/snapshot"
	"go-vjctl/store"
)

const eps = 1e-9

// manualClock sits at whatever beat the test puts it on
type manualClock struct {
	beat  float64
	tempo float64
}

func (c *manualClock) Advance(time.Duration) float64 { return c.beat }
func (c *manualClock) Beat() float64                 { return c.beat }
func (c *manualClock) Tempo() float64                { return c.tempo }
func (c *manualClock) SetTempo(bpm float64)          { c.tempo = bpm }
func (c *manualClock) Reset()                        { c.beat = 0 }
func (c *manualClock) Seek(beat float64)             { c.beat = beat }
func (c *manualClock) Feed(clock.Event)              {}
func (c *manualClock) Status() clock.Status {
	return clock.Status{Source: "manual", Playing: true, Tempo: c.tempo}
}

type captureSink struct {
	msgs []bridge.Message
}

func (s *captureSink) Broadcast(msgs ...bridge.Message) {
	s.msgs = append(s.msgs, msgs...)
}

func (s *captureSink) find(tag bridge.Tag, text string) bool {
	for _, msg := range s.msgs {
		if msg.Tag == tag && strings.Contains(string(msg.Payload), text) {
			return true
		}
	}
	return false
}

func doc(defs ...script.Def) *script.Document {
	return &script.Document{ID: "live", Defs: defs}
}

func newManager(t *testing.T, d *script.Document, clk *manualClock, sink *captureSink) *Manager {
	t.Helper()
	opts := Options{Clock: clk, TransitionBeats: 4, Easing: automation.Linear, Seed: 7}
	if sink != nil {
		opts.Sink = sink
	}
	m, err := New(d, nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func send(m *Manager, tag bridge.Tag, payload any) {
	m.HandleMessage(bridge.Must(tag, payload))
}

func wantNum(t *testing.T, m *Manager, name string, want float64) {
	t.Helper()
	if got := m.Float(name); math.Abs(got-want) > eps {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

var unit = param.Range{Min: 0, Max: 1}

func sweepDoc() *script.Document {
	return doc(
		script.Slider("cutoff", unit, 0.2),
		script.Automate("sweep", automation.Loop,
			automation.Breakpoint{Position: 0, Value: 0, Kind: automation.Ramp},
			automation.Breakpoint{Position: 4, Value: 1, Kind: automation.End},
		).Driving("cutoff"),
	)
}

func TestDriverOverridesLiteral(t *testing.T) {
	clk := &manualClock{tempo: 120, beat: 1}
	m := newManager(t, sweepDoc(), clk, nil)
	m.Tick(0)
	wantNum(t, m, "sweep", 0.25)
	wantNum(t, m, "cutoff", 0.25)
}

func TestMappingOverridesDriver(t *testing.T) {
	clk := &manualClock{tempo: 120, beat: 1}
	m := newManager(t, sweepDoc(), clk, nil)

	addr := mapping.Address{Device: "fader", Channel: 0, Controller: 21}
	send(m, bridge.TagLearn, bridge.LearnPayload{Name: "cutoff"})
	m.Tick(0)
	if name, ok := m.learner.Target(); !ok || name != "cutoff" {
		t.Fatalf("learn target = %q, %v", name, ok)
	}

	m.Control(mapping.Input{Address: addr, Unit: 0.73})
	clk.beat = 2
	m.Tick(0)
	wantNum(t, m, "cutoff", 0.73)
	if m.learner.State() != mapping.Idle {
		t.Fatal("learn should return to idle after binding")
	}
	if a, ok := m.table.AddressOf("cutoff"); !ok || a != addr {
		t.Fatalf("binding = %v, %v", a, ok)
	}

	send(m, bridge.TagMappingsEnabled, bridge.EnabledPayload{Enabled: false})
	m.Tick(0)
	wantNum(t, m, "cutoff", 0.5)
}

func TestBypassPrecedence(t *testing.T) {
	clk := &manualClock{tempo: 120}
	m := newManager(t, doc(script.Slider("size", param.Range{Min: 0, Max: 10}, 3)), clk, nil)

	v := param.F(8)
	send(m, bridge.TagBypass, bridge.BypassPayload{Name: "size", Value: &v})
	m.Tick(0)
	wantNum(t, m, "size", 8)

	send(m, bridge.TagSet, bridge.SetPayload{Name: "size", Value: param.F(1)})
	m.Tick(0)
	wantNum(t, m, "size", 8)

	send(m, bridge.TagBypass, bridge.BypassPayload{Name: "size"})
	m.Tick(0)
	wantNum(t, m, "size", 1)
	if st := m.State(); st.Values["size"].Num != 1 {
		t.Fatalf("persisted size = %v, want the literal 1", st.Values["size"].Num)
	}
}

func TestSnapshotRecallTransition(t *testing.T) {
	clk := &manualClock{tempo: 120}
	m := newManager(t, doc(script.Slider("size", param.Range{Min: 0, Max: 10}, 0)), clk, nil)

	send(m, bridge.TagSet, bridge.SetPayload{Name: "size", Value: param.F(2)})
	send(m, bridge.TagSnapshotStore, bridge.SlotPayload{Slot: 3})
	m.Tick(0)
	send(m, bridge.TagSet, bridge.SetPayload{Name: "size", Value: param.F(9)})
	m.Tick(0)
	wantNum(t, m, "size", 9)

	clk.beat = 10
	send(m, bridge.TagSnapshotRecall, bridge.SlotPayload{Slot: 3})
	m.Tick(0)
	wantNum(t, m, "size", 9)

	clk.beat = 12
	m.Tick(0)
	wantNum(t, m, "size", 5.5)

	clk.beat = 14
	m.Tick(0)
	wantNum(t, m, "size", 2)
	if m.trans.Len() != 0 {
		t.Fatal("transition should retire at its end")
	}
	if m.literal["size"].Num != 2 {
		t.Fatalf("literal after transition = %v, want 2", m.literal["size"].Num)
	}

	clk.beat = 20
	m.Tick(0)
	wantNum(t, m, "size", 2)
}

func TestMappingHoldsThroughTransitions(t *testing.T) {
	clk := &manualClock{tempo: 120}
	m := newManager(t, sweepDoc(), clk, nil)

	// slot 2 holds cutoff at the sweep's start value
	send(m, bridge.TagSnapshotStore, bridge.SlotPayload{Slot: 2})
	send(m, bridge.TagLearn, bridge.LearnPayload{Name: "cutoff"})
	m.Tick(0)
	m.Control(mapping.Input{Address: mapping.Address{Device: "fader", Controller: 21}, Unit: 0.73})
	m.Tick(0)
	wantNum(t, m, "cutoff", 0.73)

	send(m, bridge.TagSnapshotRecall, bridge.SlotPayload{Slot: 2})
	send(m, bridge.TagRandomize, nil)
	for beat := 0.0; beat < 6; beat += 0.5 {
		clk.beat = beat
		m.Tick(0)
		if beat == 0 && !m.trans.Active("cutoff") {
			t.Fatal("expected a transition in flight on cutoff")
		}
		if got := m.Float("cutoff"); math.Abs(got-0.73) > eps {
			t.Fatalf("beat %v: cutoff = %v, want the mapped 0.73", beat, got)
		}
	}
}

func TestInstantRecallReproducesTable(t *testing.T) {
	clk := &manualClock{tempo: 120}
	m := newManager(t, doc(
		script.Slider("size", param.Range{Min: 0, Max: 10}, 0),
		script.Checkbox("mirror", false),
		script.Select("mode", []string{"a", "b", "c"}, "a"),
	), clk, nil)

	send(m, bridge.TagSet, bridge.SetPayload{Name: "size", Value: param.F(2.5)})
	send(m, bridge.TagSet, bridge.SetPayload{Name: "mirror", Value: param.B(true)})
	send(m, bridge.TagSet, bridge.SetPayload{Name: "mode", Value: param.C(2, "c")})
	send(m, bridge.TagSnapshotStore, bridge.SlotPayload{Slot: 1})
	m.Tick(0)
	saved, err := m.bank.Get(1)
	if err != nil {
		t.Fatal(err)
	}

	send(m, bridge.TagSet, bridge.SetPayload{Name: "size", Value: param.F(9)})
	send(m, bridge.TagSet, bridge.SetPayload{Name: "mirror", Value: param.B(false)})
	send(m, bridge.TagSet, bridge.SetPayload{Name: "mode", Value: param.C(0, "a")})
	clk.beat = 3
	m.Tick(0)

	instant := 0.0
	send(m, bridge.TagSnapshotRecall, bridge.SlotPayload{Slot: 1, Beats: &instant})
	m.Tick(0)
	got := m.Frame().Values
	for name, want := range saved {
		if !got[name].Equal(want) {
			t.Fatalf("%s = %v after instant recall, want %v", name, got[name], want)
		}
	}
	if m.trans.Len() != 0 {
		t.Fatal("an instant recall leaves no transition behind")
	}

	// the configured length still applies without an override
	send(m, bridge.TagSet, bridge.SetPayload{Name: "size", Value: param.F(9)})
	m.Tick(0)
	if err := m.RecallSnapshot(1); err != nil {
		t.Fatal(err)
	}
	m.Tick(0)
	wantNum(t, m, "size", 9)
}

func TestSetCancelsTransition(t *testing.T) {
	clk := &manualClock{tempo: 120}
	m := newManager(t, doc(script.Slider("size", param.Range{Min: 0, Max: 10}, 0)), clk, nil)

	send(m, bridge.TagSnapshotStore, bridge.SlotPayload{Slot: 0})
	send(m, bridge.TagSet, bridge.SetPayload{Name: "size", Value: param.F(8)})
	m.Tick(0)
	send(m, bridge.TagSnapshotRecall, bridge.SlotPayload{Slot: 0})
	clk.beat = 1
	m.Tick(0)
	clk.beat = 2
	send(m, bridge.TagSet, bridge.SetPayload{Name: "size", Value: param.F(6)})
	m.Tick(0)
	wantNum(t, m, "size", 6)
	if m.trans.Active("size") {
		t.Fatal("set should cancel the transition")
	}
}

func TestRecallEmptySlotWarns(t *testing.T) {
	clk := &manualClock{tempo: 120}
	sink := &captureSink{}
	m := newManager(t, doc(script.Slider("size", param.Range{Min: 0, Max: 10}, 0)), clk, sink)
	send(m, bridge.TagSnapshotRecall, bridge.SlotPayload{Slot: 4})
	m.Tick(0)
	if !sink.find(bridge.TagDiagnostic, "slot 4") {
		t.Fatal("expected a diagnostic for the empty slot")
	}
}

func TestStoreRefusedWhileSequencing(t *testing.T) {
	clk := &manualClock{tempo: 120}
	m := newManager(t, doc(script.Slider("size", param.Range{Min: 0, Max: 10}, 0)), clk, nil)
	send(m, bridge.TagSnapshotStore, bridge.SlotPayload{Slot: 0})
	send(m, bridge.TagSequence, bridge.SequencePayload{Enabled: true, Every: 8})
	m.Tick(0)
	if err := m.StoreSnapshot(1); !errors.Is(err, snapshot.ErrSequencing) {
		t.Fatalf("StoreSnapshot while sequencing = %v", err)
	}
}

func TestRandomizeRespectsExclusions(t *testing.T) {
	clk := &manualClock{tempo: 120}
	m := newManager(t, doc(
		script.Slider("a", param.Range{Min: 0, Max: 100}, 50),
		script.Slider("b", param.Range{Min: 0, Max: 100}, 50),
	), clk, nil)
	send(m, bridge.TagExclude, bridge.ExcludePayload{Name: "b", Excluded: true})
	send(m, bridge.TagRandomize, nil)
	m.Tick(0)
	if !m.trans.Active("a") || m.trans.Active("b") {
		t.Fatalf("active transitions: %v", m.trans.Names())
	}
	clk.beat = 4
	m.Tick(0)
	wantNum(t, m, "b", 50)
	if v := m.Float("a"); v < 0 || v > 100 {
		t.Fatalf("a = %v out of range", v)
	}
}

func TestDisableExpression(t *testing.T) {
	clk := &manualClock{tempo: 120}
	m := newManager(t, doc(
		script.Checkbox("mirror", true),
		script.Select("shape", []string{"circle", "square"}, "square").DisabledBy("not mirror"),
	), clk, nil)
	if m.Disabled("shape") {
		t.Fatal("shape disabled while mirror is on")
	}
	send(m, bridge.TagSet, bridge.SetPayload{Name: "mirror", Value: param.B(false)})
	m.Tick(0)
	if !m.Disabled("shape") {
		t.Fatal("shape should be disabled")
	}
	if m.String("shape") != "square" {
		t.Fatalf("disabled control lost its value: %q", m.String("shape"))
	}
}

func TestReloadKeepsState(t *testing.T) {
	clk := &manualClock{tempo: 120}
	first := doc(
		script.Slider("size", param.Range{Min: 0, Max: 10}, 0),
		script.Slew("lag", 1, 1),
		script.Mod("smooth", "size", "lag"),
	)
	m := newManager(t, first, clk, nil)
	m.Tick(0)

	send(m, bridge.TagSet, bridge.SetPayload{Name: "size", Value: param.F(10)})
	clk.beat = 1
	m.Tick(0)
	wantNum(t, m, "smooth", 1)

	second := doc(
		script.Slider("size", param.Range{Min: 0, Max: 20}, 5),
		script.Slew("lag", 1, 1),
		script.Mod("smooth", "size", "lag"),
		script.Slider("gain", unit, 0.5),
	)
	if err := m.Reload(second); err != nil {
		t.Fatal(err)
	}
	clk.beat = 2
	m.Tick(0)
	wantNum(t, m, "size", 10)
	wantNum(t, m, "smooth", 2)
	wantNum(t, m, "gain", 0.5)
}

func TestReloadRejectedKeepsGraph(t *testing.T) {
	clk := &manualClock{tempo: 120}
	sink := &captureSink{}
	m := newManager(t, doc(script.Slider("size", param.Range{Min: 0, Max: 10}, 4)), clk, sink)

	bad := doc(
		script.Slider("size", param.Range{Min: 0, Max: 10}, 4),
		script.Mod("a", "b"),
		script.Mod("b", "a"),
	)
	err := m.Reload(bad)
	diags, ok := script.AsLoadError(err)
	if !ok || !strings.Contains(diags[0].Reason, "cycle") {
		t.Fatalf("Reload error = %v", err)
	}
	m.Tick(0)
	if _, ok := m.Graph().Node("a"); ok {
		t.Fatal("rejected graph was installed")
	}
	wantNum(t, m, "size", 4)
	if !sink.find(bridge.TagDiagnostic, "reload rejected") {
		t.Fatal("expected a rejection diagnostic")
	}
}

func TestReloadDropsMappingsOfRemovedControls(t *testing.T) {
	clk := &manualClock{tempo: 120}
	m := newManager(t, doc(
		script.Slider("size", param.Range{Min: 0, Max: 10}, 0),
		script.Slider("gain", unit, 0),
	), clk, nil)
	m.Submit(func(m *Manager) {
		m.table.Bind(mapping.Address{Controller: 1}, "size")
		m.table.Bind(mapping.Address{Controller: 2}, "gain")
	})
	m.Tick(0)
	if err := m.Reload(doc(script.Slider("size", param.Range{Min: 0, Max: 10}, 0))); err != nil {
		t.Fatal(err)
	}
	m.Tick(0)
	if m.table.Len() != 1 {
		t.Fatalf("bindings after reload = %v", m.table.Bindings())
	}
}

func TestInitialLoadDegradesBadSequence(t *testing.T) {
	clk := &manualClock{tempo: 120}
	d := doc(
		script.Slider("size", param.Range{Min: 0, Max: 10}, 3),
		script.Automate("wobble", automation.Loop,
			automation.Breakpoint{Position: 0, Value: 0.4, Kind: automation.Step},
		),
	)
	m := newManager(t, d, clk, nil)
	if len(m.Diagnostics()) == 0 {
		t.Fatal("expected a diagnostic")
	}
	wantNum(t, m, "wobble", 0.4)
	wantNum(t, m, "size", 3)
	if n, _ := m.Graph().Node("wobble"); n.Interactive {
		t.Fatal("degraded node should not be interactive")
	}

	if _, _, err := Build(d, true); err == nil {
		t.Fatal("strict build should fail")
	}
}

func TestInitialLoadErrorLeavesEmptyGraph(t *testing.T) {
	clk := &manualClock{tempo: 120}
	m := newManager(t, doc(script.Mod("a", "missing")), clk, nil)
	if len(m.Graph().List) != 0 {
		t.Fatal("expected an empty graph")
	}
	if len(script.Errors(m.Diagnostics())) == 0 {
		t.Fatal("expected an error diagnostic")
	}
}

func TestBuildErrors(t *testing.T) {
	slider := script.Slider("size", param.Range{Min: 0, Max: 10}, 0)
	seq := []automation.Breakpoint{
		{Position: 0, Value: 0, Kind: automation.Ramp},
		{Position: 1, Value: 1, Kind: automation.End},
	}
	tests := []struct {
		name string
		defs []script.Def
		want string
	}{
		{"cycle", []script.Def{script.Mod("a", "b"), script.Mod("b", "a")}, "cycle"},
		{"missing source", []script.Def{script.Mod("a", "nope")}, "does not exist"},
		{"modulator not effect", []script.Def{slider, script.Mod("a", "size", "size")}, "not an effect"},
		{"target not writable", []script.Def{
			script.Automate("x", automation.Loop, seq...),
			script.Automate("y", automation.Loop, seq...).Driving("x"),
		}, "not a writable control"},
		{"double driver", []script.Def{
			slider,
			script.Automate("x", automation.Loop, seq...).Driving("size"),
			script.Automate("y", automation.Loop, seq...).Driving("size"),
		}, "already driven"},
		{"disable name", []script.Def{slider.DisabledBy("ghost")}, "does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Build(doc(tt.defs...), false)
			diags, ok := script.AsLoadError(err)
			if !ok {
				t.Fatalf("Build error = %v", err)
			}
			found := false
			for _, d := range diags {
				if strings.Contains(d.Reason, tt.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("diagnostics %v do not mention %q", diags, tt.want)
			}
		})
	}
}

func TestBuildOrder(t *testing.T) {
	g, _, err := Build(doc(
		script.Mod("smooth", "size", "lag"),
		script.Slew("lag", 1, 1),
		script.Slider("size", param.Range{Min: 0, Max: 10}, 0),
	), true)
	if err != nil {
		t.Fatal(err)
	}
	pos := make(map[string]int)
	for i, n := range g.Order {
		pos[n.Name] = i
	}
	if pos["size"] > pos["smooth"] || pos["lag"] > pos["smooth"] {
		t.Fatalf("order %v", pos)
	}
	if g.List[0].Name != "smooth" {
		t.Fatal("List should keep document order")
	}
}

func TestChangedFlags(t *testing.T) {
	clk := &manualClock{tempo: 120}
	m := newManager(t, doc(
		script.Slider("size", param.Range{Min: 0, Max: 10}, 0),
		script.Slider("gain", unit, 0),
	), clk, nil)
	if !m.Changed() {
		t.Fatal("first publish should mark everything changed")
	}
	m.MarkUnchanged()
	before := m.Frame()
	m.Tick(0)
	if m.Changed() {
		t.Fatal("idle tick changed values")
	}
	if m.Frame().Values["size"] != before.Values["size"] {
		t.Fatal("idle tick altered the table")
	}

	send(m, bridge.TagSet, bridge.SetPayload{Name: "size", Value: param.F(4)})
	m.Tick(0)
	if !m.AnyChangedIn("size") || m.AnyChangedIn("gain") {
		t.Fatal("only size should be flagged")
	}
	if before.Values["size"].Num != 0 {
		t.Fatal("published frame was mutated")
	}
}

func TestSyncMessages(t *testing.T) {
	clk := &manualClock{tempo: 120}
	m := newManager(t, doc(
		script.Separator("top", "Top"),
		script.Slider("size", param.Range{Min: 0, Max: 10}, 2),
	), clk, nil)
	msgs := m.SyncMessages()
	if len(msgs) == 0 || msgs[0].Tag != bridge.TagControls {
		t.Fatalf("sync should start with controls: %v", msgs)
	}
	last := msgs[len(msgs)-1]
	p, err := bridge.Decode[bridge.ValuePayload](last)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "size" || p.Value.Num != 2 {
		t.Fatalf("last sync message = %+v", p)
	}
}

func TestUnknownControlWarns(t *testing.T) {
	clk := &manualClock{tempo: 120}
	sink := &captureSink{}
	m := newManager(t, doc(script.Slider("size", param.Range{Min: 0, Max: 10}, 2)), clk, sink)
	send(m, bridge.TagSet, bridge.SetPayload{Name: "ghost", Value: param.F(1)})
	m.Tick(0)
	if !sink.find(bridge.TagDiagnostic, "unknown control") {
		t.Fatal("expected an unknown control diagnostic")
	}
	wantNum(t, m, "size", 2)
}

func TestStateRoundTrip(t *testing.T) {
	clk := &manualClock{tempo: 120}
	d := doc(
		script.Slider("size", param.Range{Min: 0, Max: 10}, 0),
		script.Slider("gain", unit, 0),
	)
	m := newManager(t, d, clk, nil)
	send(m, bridge.TagSet, bridge.SetPayload{Name: "size", Value: param.F(7)})
	send(m, bridge.TagExclude, bridge.ExcludePayload{Name: "gain", Excluded: true})
	m.Submit(func(m *Manager) { m.table.Bind(mapping.Address{Controller: 9}, "gain") })
	m.Tick(0)
	send(m, bridge.TagSnapshotStore, bridge.SlotPayload{Slot: 2})
	m.Tick(0)

	st := m.State()
	st.Values["ghost"] = param.F(1)

	restored, err := New(d, st, Options{Clock: &manualClock{tempo: 90}})
	if err != nil {
		t.Fatal(err)
	}
	wantNum(t, restored, "size", 7)
	if _, ok := restored.Lookup("ghost"); ok {
		t.Fatal("value for a missing control was restored")
	}
	if !restored.exclude["gain"] {
		t.Fatal("exclusions not restored")
	}
	if restored.table.Len() != 1 {
		t.Fatal("mappings not restored")
	}
	if got := restored.bank.Occupied(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("occupied slots = %v", got)
	}
	if restored.Clock().Tempo() != 120 {
		t.Fatalf("tempo = %v, want 120", restored.Clock().Tempo())
	}
}

func TestDebouncedSave(t *testing.T) {
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	saver := store.NewSaver(s, nil)
	m, err := New(doc(script.Slider("size", param.Range{Min: 0, Max: 10}, 0)), nil, Options{
		Clock:     &manualClock{tempo: 120},
		Saver:     saver,
		SaveDelay: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	send(m, bridge.TagSet, bridge.SetPayload{Name: "size", Value: param.F(6)})
	m.Tick(50 * time.Millisecond)
	saver.Flush()
	if _, err := s.Load("live"); !errors.Is(err, store.ErrNoSaves) {
		t.Fatalf("saved before the quiet period: %v", err)
	}

	m.Tick(60 * time.Millisecond)
	saver.Flush()
	st, err := s.Load("live")
	if err != nil {
		t.Fatal(err)
	}
	if st.Values["size"].Num != 6 {
		t.Fatalf("saved size = %v", st.Values["size"].Num)
	}
}

func TestFrameClockDrivesAutomation(t *testing.T) {
	m, err := New(sweepDoc(), nil, Options{Clock: clock.NewFrame(120, 60)})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 30; i++ {
		m.Tick(time.Second / 60)
	}
	// 30 frames at 120bpm and 60fps is one beat
	if math.Abs(m.Beat()-1) > 1e-6 {
		t.Fatalf("beat = %v", m.Beat())
	}
	if math.Abs(m.Float("cutoff")-0.25) > 1e-6 {
		t.Fatalf("cutoff = %v", m.Float("cutoff"))
	}
}
