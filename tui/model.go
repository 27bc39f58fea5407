package tui

import (
	"slices"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"go-vjctl/bridge"
	"go-vjctl/debug"
	"go-vjctl/param"
	"go-vjctl/script"
	"go-vjctl/theme"
)

// maxDiagnostics is how many recent diagnostics the panel keeps
const maxDiagnostics = 4

// Panel is the bridge client the model talks through
type Panel interface {
	Messages() <-chan bridge.Message
	Send(m bridge.Message)
}

// arm is a pending slot action waiting for a digit
type arm int

const (
	armNone arm = iota
	armStore
	armDelete
)

// row is one control as the panel knows it
type row struct {
	info     bridge.ControlInfo
	value    param.Value
	known    bool
	disabled bool
}

func (r *row) selectable() bool {
	return r.info.Kind != string(script.KindSeparator) && r.info.Kind != string(script.KindEffect)
}

func (r *row) writable() bool {
	return script.Kind(r.info.Kind).Writable() && r.info.Interactive
}

type Model struct {
	panel Panel
	Theme *theme.Theme
	keys  keyMap
	help  help.Model

	script    string
	rows      []*row
	byName    map[string]*row
	cursor    int // index into rows, always a selectable row when any exists
	tempo     float64
	clock     bridge.ClockPayload
	snapshots bridge.SnapshotsPayload
	mappings  bridge.MappingsPayload
	learn     bridge.LearnPayload
	recording bridge.RecordingPayload
	diags     []script.Diagnostic
	bypassed  map[string]bool
	armed     arm

	width        int
	quitting     bool
	disconnected bool
}

// MessageMsg carries one outbound bridge message into the update loop
type MessageMsg bridge.Message

// DisconnectedMsg is sent when the hub drops the panel
type DisconnectedMsg struct{}

func NewModel(panel Panel, th *theme.Theme) Model {
	return Model{
		panel:    panel,
		Theme:    th,
		keys:     defaultKeys(),
		help:     help.New(),
		byName:   make(map[string]*row),
		bypassed: make(map[string]bool),
	}
}

func ListenForMessages(panel Panel) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-panel.Messages()
		if !ok {
			return DisconnectedMsg{}
		}
		return MessageMsg(msg)
	}
}

func (m Model) Init() tea.Cmd {
	return ListenForMessages(m.panel)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case MessageMsg:
		m.apply(bridge.Message(msg))
		return m, ListenForMessages(m.panel)

	case DisconnectedMsg:
		m.disconnected = true
	}

	return m, nil
}

// apply folds one outbound message into the panel state
func (m *Model) apply(msg bridge.Message) {
	var err error
	switch msg.Tag {
	case bridge.TagControls:
		var p bridge.ControlsPayload
		if p, err = bridge.Decode[bridge.ControlsPayload](msg); err == nil {
			m.setControls(p)
		}
	case bridge.TagValue:
		var p bridge.ValuePayload
		if p, err = bridge.Decode[bridge.ValuePayload](msg); err == nil {
			if r, ok := m.byName[p.Name]; ok {
				r.value, r.known, r.disabled = p.Value, true, p.Disabled
			}
		}
	case bridge.TagTempo:
		var p bridge.TempoPayload
		if p, err = bridge.Decode[bridge.TempoPayload](msg); err == nil {
			m.tempo = p.BPM
		}
	case bridge.TagClock:
		m.clock, err = bridge.Decode[bridge.ClockPayload](msg)
	case bridge.TagSnapshots:
		m.snapshots, err = bridge.Decode[bridge.SnapshotsPayload](msg)
	case bridge.TagMappings:
		m.mappings, err = bridge.Decode[bridge.MappingsPayload](msg)
	case bridge.TagLearn:
		m.learn, err = bridge.Decode[bridge.LearnPayload](msg)
	case bridge.TagRecording:
		m.recording, err = bridge.Decode[bridge.RecordingPayload](msg)
	case bridge.TagDiagnostic:
		var d script.Diagnostic
		if d, err = bridge.Decode[bridge.DiagnosticPayload](msg); err == nil {
			m.diags = append(m.diags, d)
			if len(m.diags) > maxDiagnostics {
				m.diags = m.diags[len(m.diags)-maxDiagnostics:]
			}
		}
	}
	if err != nil {
		debug.Log("tui", "bad %s message: %v", msg.Tag, err)
	}
}

// setControls replaces the row list, keeping values for names that survive
// a reload and the cursor on the same control when possible
func (m *Model) setControls(p bridge.ControlsPayload) {
	var current string
	if r := m.selected(); r != nil {
		current = r.info.Name
	}

	old := m.byName
	m.script = p.Script
	m.rows = m.rows[:0]
	m.byName = make(map[string]*row, len(p.Controls))
	for _, info := range p.Controls {
		r := &row{info: info}
		if prev, ok := old[info.Name]; ok && prev.info.Kind == info.Kind {
			r.value, r.known, r.disabled = prev.value, prev.known, prev.disabled
		}
		m.rows = append(m.rows, r)
		m.byName[info.Name] = r
	}
	for name := range m.bypassed {
		if _, ok := m.byName[name]; !ok {
			delete(m.bypassed, name)
		}
	}

	m.cursor = slices.IndexFunc(m.rows, func(r *row) bool { return r.info.Name == current && r.selectable() })
	if m.cursor < 0 {
		m.cursor = 0
		m.move(0)
	}
}

func (m *Model) selected() *row {
	if m.cursor < 0 || m.cursor >= len(m.rows) || !m.rows[m.cursor].selectable() {
		return nil
	}
	return m.rows[m.cursor]
}

// move steps the cursor by dir over selectable rows; dir 0 settles on the
// nearest selectable row at or after the cursor
func (m *Model) move(dir int) {
	step := dir
	if step == 0 {
		step = 1
	}
	for i := m.cursor + dir; i >= 0 && i < len(m.rows); i += step {
		if m.rows[i].selectable() {
			m.cursor = i
			return
		}
	}
}

func (m *Model) send(tag bridge.Tag, payload any) {
	m.panel.Send(bridge.Must(tag, payload))
}

func (m *Model) handleKey(msg tea.KeyMsg) {
	k := m.keys
	r := m.selected()

	switch {
	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, k.Up):
		m.move(-1)
	case key.Matches(msg, k.Down):
		m.move(1)
	case key.Matches(msg, k.Dec):
		m.adjust(r, -1)
	case key.Matches(msg, k.Inc):
		m.adjust(r, 1)
	case key.Matches(msg, k.CoarseDec):
		m.adjust(r, -10)
	case key.Matches(msg, k.CoarseInc):
		m.adjust(r, 10)

	case key.Matches(msg, k.Slot):
		slot := int(msg.String()[0] - '0')
		switch m.armed {
		case armStore:
			m.send(bridge.TagSnapshotStore, bridge.SlotPayload{Slot: slot})
		case armDelete:
			m.send(bridge.TagSnapshotDelete, bridge.SlotPayload{Slot: slot})
		default:
			m.send(bridge.TagSnapshotRecall, bridge.SlotPayload{Slot: slot})
		}
		m.armed = armNone
	case key.Matches(msg, k.ArmStore):
		m.armed = armStore
	case key.Matches(msg, k.ArmDelete):
		m.armed = armDelete
	case key.Matches(msg, k.Cancel):
		m.armed = armNone
		if m.learn.Awaiting {
			m.send(bridge.TagLearnCancel, nil)
		}
	case key.Matches(msg, k.Sequence):
		m.send(bridge.TagSequence, bridge.SequencePayload{Enabled: !m.snapshots.Sequencing})

	case key.Matches(msg, k.Learn):
		if r != nil && r.writable() {
			m.send(bridge.TagLearn, bridge.LearnPayload{Name: r.info.Name})
		}
	case key.Matches(msg, k.Unmap):
		if r != nil {
			m.send(bridge.TagUnmap, bridge.NamePayload{Name: r.info.Name})
		}
	case key.Matches(msg, k.Mappings):
		m.send(bridge.TagMappingsEnabled, bridge.EnabledPayload{Enabled: !m.mappings.Enabled})
	case key.Matches(msg, k.Bypass):
		m.toggleBypass(r)

	case key.Matches(msg, k.Randomize):
		m.send(bridge.TagRandomize, nil)
	case key.Matches(msg, k.RandomOne):
		if r != nil && r.writable() {
			m.send(bridge.TagRandomizeControl, bridge.NamePayload{Name: r.info.Name})
		}
	case key.Matches(msg, k.Revert):
		if r != nil && r.writable() {
			m.send(bridge.TagRevertControl, bridge.NamePayload{Name: r.info.Name})
		}
	case key.Matches(msg, k.Exclude):
		if r != nil && r.writable() {
			m.send(bridge.TagExclude, bridge.ExcludePayload{Name: r.info.Name, Excluded: !r.info.Excluded})
		}

	case key.Matches(msg, k.TempoDown):
		m.send(bridge.TagTempo, bridge.TempoPayload{BPM: m.tempo - 1})
	case key.Matches(msg, k.TempoUp):
		m.send(bridge.TagTempo, bridge.TempoPayload{BPM: m.tempo + 1})
	case key.Matches(msg, k.ResetClock):
		m.send(bridge.TagResetClock, nil)
	case key.Matches(msg, k.Record):
		if m.recording.Active {
			m.send(bridge.TagRecordStop, nil)
		} else {
			m.send(bridge.TagRecordStart, nil)
		}
	case key.Matches(msg, k.Save):
		m.send(bridge.TagSave, nil)
	}
}

// adjust moves a writable control by steps: slider steps, checkbox
// toggles, select option moves
func (m *Model) adjust(r *row, steps int) {
	if r == nil || !r.writable() || !r.known {
		return
	}
	var v param.Value
	switch script.Kind(r.info.Kind) {
	case script.KindSlider:
		step := r.info.Step
		if step <= 0 {
			step = (r.info.Max - r.info.Min) / 100
		}
		n := r.value.Float() + float64(steps)*step
		v = param.F(max(r.info.Min, min(r.info.Max, n)))
	case script.KindCheckbox:
		v = param.B(!r.value.Bool())
	case script.KindSelect:
		if len(r.info.Options) == 0 {
			return
		}
		i := optionIndex(r.info.Options, r.value)
		i = max(0, min(len(r.info.Options)-1, i+sign(steps)))
		v = param.C(i, r.info.Options[i])
	default:
		return
	}
	if v.Equal(r.value) {
		return
	}
	m.send(bridge.TagSet, bridge.SetPayload{Name: r.info.Name, Value: v})
}

// toggleBypass freezes a control at its shown value, or releases it
func (m *Model) toggleBypass(r *row) {
	if r == nil {
		return
	}
	name := r.info.Name
	if m.bypassed[name] {
		delete(m.bypassed, name)
		m.send(bridge.TagBypass, bridge.BypassPayload{Name: name})
		return
	}
	if !r.known {
		return
	}
	v := r.value
	m.bypassed[name] = true
	m.send(bridge.TagBypass, bridge.BypassPayload{Name: name, Value: &v})
}

// optionIndex finds a choice value's option; values from the wire carry
// only the label
func optionIndex(options []string, v param.Value) int {
	if i := slices.Index(options, v.Text); i >= 0 {
		return i
	}
	return max(0, v.Index())
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
