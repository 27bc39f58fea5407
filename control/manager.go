package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go-vjctl/automation"
	"go-vjctl/bridge"
	"go-vjctl/clock"
	"go-vjctl/debug"
	"go-vjctl/effect"
	"go-vjctl/mapping"
	"go-vjctl/param"
	"go-vjctl/record"
	"go-vjctl/script"
	"go-vjctl/snapshot"
	"go-vjctl/store"
)

var (
	ErrUnknownControl = errors.New("unknown control")
	ErrNotWritable    = errors.New("control is not writable")
	ErrNotInteractive = errors.New("control is not interactive")
	ErrNoRecorder     = errors.New("recording is not configured")
)

// Sink receives outbound panel messages. Broadcast must not block.
type Sink interface {
	Broadcast(msgs ...bridge.Message)
}

type discard struct{}

func (discard) Broadcast(...bridge.Message) {}

// Options configures a Manager
type Options struct {
	Clock           clock.Clock // required
	Sink            Sink
	Saver           *store.Saver // nil disables persistence
	Recorder        *record.Recorder
	TransitionBeats float64
	Easing          automation.Easing
	Exclude         []string      // randomize exclusions added to persisted ones
	SaveDelay       time.Duration // quiet time before a dirty state is saved
	Seed            uint64        // 0 seeds from the clock
	Log             *slog.Logger
}

// Frame is one published value table. Published frames are never mutated.
type Frame struct {
	Beat     float64
	Values   map[string]param.Value
	Disabled map[string]bool
}

type pendingReload struct {
	graph *Graph
	warns []Diagnostic
	err   error
}

// Manager owns the graph and every piece of runtime state. Tick runs on a
// single goroutine; the input methods and the consumer API are safe to call
// from any goroutine.
type Manager struct {
	opts Options
	log  *slog.Logger
	clk  clock.Clock
	sink Sink

	graph    *Graph
	literal  map[string]param.Value
	bypass   map[string]param.Value
	values   map[string]param.Value
	disabled map[string]bool
	states   effect.States
	trans    *snapshot.Set
	bank     snapshot.Bank
	seq      snapshot.Sequencer
	table    *mapping.Table
	learner  mapping.Learner
	exclude  map[string]bool
	rng      *rand.Rand
	reported map[string]bool

	beat      float64
	tempo     float64
	clockStat clock.Status
	recording bridge.RecordingPayload
	initial   []Diagnostic

	inputs   queue[mapping.Input]
	messages queue[bridge.Message]
	commands queue[func(*Manager)]
	recorded queue[record.Status]
	pending  atomic.Pointer[pendingReload]

	out       []bridge.Message
	state     map[bridge.Tag]bridge.Message // latest message per stateful tag
	published atomic.Pointer[Frame]
	view      atomic.Pointer[view]

	changedMu sync.Mutex
	changed   map[string]bool

	dirty     bool
	sinceSave time.Duration
}

// New builds the runtime for doc (which may be nil) and applies a saved
// state when one is given. Load problems do not fail New: the affected
// nodes degrade or the graph stays empty, and the diagnostics are returned
// by Diagnostics and sent to panels on the first tick.
func New(doc *script.Document, saved *store.State, opts Options) (*Manager, error) {
	if opts.Clock == nil {
		return nil, fmt.Errorf("control: clock is required")
	}
	if opts.Sink == nil {
		opts.Sink = discard{}
	}
	if opts.TransitionBeats <= 0 {
		opts.TransitionBeats = 4
	}
	if opts.Easing == "" {
		opts.Easing = automation.SineInOut
	}
	if opts.SaveDelay <= 0 {
		opts.SaveDelay = time.Second
	}
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}
	if opts.Log == nil {
		opts.Log = debug.For("control")
	}

	m := &Manager{
		opts:     opts,
		log:      opts.Log,
		clk:      opts.Clock,
		sink:     opts.Sink,
		literal:  make(map[string]param.Value),
		bypass:   make(map[string]param.Value),
		values:   make(map[string]param.Value),
		disabled: make(map[string]bool),
		states:   make(effect.States),
		trans:    snapshot.NewSet(),
		table:    mapping.NewTable(),
		exclude:  make(map[string]bool),
		rng:      rand.New(rand.NewPCG(opts.Seed, opts.Seed>>32|1)),
		reported: make(map[string]bool),
		state:    make(map[bridge.Tag]bridge.Message),
		changed:  make(map[string]bool),
		tempo:    opts.Clock.Tempo(),
	}
	for _, name := range opts.Exclude {
		m.exclude[name] = true
	}

	m.graph = Empty("")
	if doc != nil {
		m.graph.ID = doc.ID
		g, warns, err := Build(doc, false)
		m.initial = append(m.initial, warns...)
		if err != nil {
			if diags, ok := script.AsLoadError(err); ok {
				m.initial = append(m.initial, diags...)
			} else {
				m.initial = append(m.initial, script.Errorf("", "%v", err))
			}
		} else {
			m.graph = g
		}
	}
	m.install(m.graph, nil)
	if saved != nil {
		m.restore(saved)
	}

	m.clockStat = m.clk.Status()
	m.emit(bridge.TagTempo, bridge.TempoPayload{BPM: m.tempo})
	m.emit(bridge.TagClock, m.clockStat)
	m.emit(bridge.TagRecording, m.recording)
	m.emitSnapshots()
	m.emitMappings()
	m.emitLearn()
	for _, d := range m.initial {
		m.diagnose(d)
	}
	m.resolve()
	m.publish()
	m.flush()
	return m, nil
}

// Diagnostics returns the problems found while loading the initial script
func (m *Manager) Diagnostics() []Diagnostic {
	return m.initial
}

// Graph returns the live graph. Only call from the tick goroutine or
// before Run.
func (m *Manager) Graph() *Graph {
	return m.graph
}

// Tick advances the runtime by one frame
func (m *Manager) Tick(dt time.Duration) {
	prev := m.beat
	m.beat = m.clk.Advance(dt)
	if m.beat < prev {
		m.trans.Shift(m.beat - prev)
	}

	m.applyReload()
	for _, fn := range m.commands.drain() {
		fn(m)
	}
	for _, msg := range m.messages.drain() {
		m.handle(msg)
	}
	for _, in := range m.inputs.drain() {
		m.input(in)
	}
	for _, st := range m.recorded.drain() {
		m.recordDone(st)
	}
	if slot, ok := m.seq.Due(m.beat, &m.bank); ok {
		if err := m.RecallSnapshot(slot); err != nil {
			m.warn("", err)
		}
	}

	m.resolve()
	frame := m.publish()
	if m.recording.Active && m.opts.Recorder != nil {
		m.opts.Recorder.Frame(record.Frame{Beat: frame.Beat, Values: frame.Values})
	}
	m.observeClock()
	m.persist(dt)
	m.flush()
}

// Run ticks at fps until ctx is done
func (m *Manager) Run(ctx context.Context, fps int) {
	if fps <= 0 {
		fps = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			m.Shutdown()
			return
		case now := <-ticker.C:
			m.Tick(now.Sub(last))
			last = now
		}
	}
}

// Shutdown stops a running recording and queues a final save. Call it from
// the tick goroutine (Run does).
func (m *Manager) Shutdown() {
	if m.recording.Active && m.opts.Recorder != nil {
		m.opts.Recorder.Stop()
	}
	if m.dirty {
		m.save("")
	}
}

// Control queues a controller movement for the next tick
func (m *Manager) Control(in mapping.Input) {
	m.inputs.push(in)
}

// HandleMessage queues a panel message for the next tick
func (m *Manager) HandleMessage(msg bridge.Message) {
	m.messages.push(msg)
}

// Submit runs fn on the tick goroutine at the start of the next tick
func (m *Manager) Submit(fn func(*Manager)) {
	m.commands.push(fn)
}

// RecordingDone is the record.Recorder notify callback
func (m *Manager) RecordingDone(st record.Status) {
	m.recorded.push(st)
}

// Clock returns the beat clock; only Feed may be used concurrently
func (m *Manager) Clock() clock.Clock {
	return m.clk
}

// Serve drains a bridge hub's inbound channel into the manager
func (m *Manager) Serve(ctx context.Context, in <-chan bridge.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-in:
			m.HandleMessage(msg)
		}
	}
}

// Report sends a diagnostic found outside the runtime (a script that did
// not parse, a listener that failed) to the log and the panels
func (m *Manager) Report(d Diagnostic) {
	m.Submit(func(m *Manager) { m.diagnose(d) })
}

func (m *Manager) diagnose(d Diagnostic) {
	level := slog.LevelWarn
	if d.Severity == script.SeverityError {
		level = slog.LevelError
	}
	m.log.Log(context.Background(), level, d.Reason, "node", d.Node)
	m.out = append(m.out, bridge.Must(bridge.TagDiagnostic, d))
}

func (m *Manager) warn(node string, err error) {
	m.diagnose(script.Warnf(node, "%v", err))
}
