package control

import (
	"math"
	"slices"

	"github.com/samber/lo"

	"go-vjctl/bridge"
	"go-vjctl/script"
)

// stateful tags replace each other: a client only needs the latest
var stateful = map[bridge.Tag]bool{
	bridge.TagTempo:     true,
	bridge.TagClock:     true,
	bridge.TagRecording: true,
	bridge.TagSnapshots: true,
	bridge.TagMappings:  true,
	bridge.TagLearn:     true,
	bridge.TagControls:  true,
}

// syncOrder is the order of the full-state sync sent to new clients
var syncOrder = []bridge.Tag{
	bridge.TagControls,
	bridge.TagTempo,
	bridge.TagClock,
	bridge.TagSnapshots,
	bridge.TagMappings,
	bridge.TagLearn,
	bridge.TagRecording,
}

// view is what a newly connected client needs, readable from any goroutine
type view struct {
	state map[bridge.Tag]bridge.Message
	order []string
}

// emit queues a message for this tick. Stateful tags coalesce so each
// tick sends at most one of them.
func (m *Manager) emit(tag bridge.Tag, payload any) {
	msg := bridge.Must(tag, payload)
	if stateful[tag] {
		m.state[tag] = msg
		for i := range m.out {
			if m.out[i].Tag == tag {
				m.out[i] = msg
				return
			}
		}
	}
	m.out = append(m.out, msg)
}

func (m *Manager) emitSnapshots() {
	occupied := m.bank.Occupied()
	if occupied == nil {
		occupied = []int{}
	}
	p := bridge.SnapshotsPayload{Occupied: occupied, Sequencing: m.seq.Engaged()}
	if p.Sequencing {
		p.Every = m.seq.Every()
	}
	m.emit(bridge.TagSnapshots, p)
}

func (m *Manager) emitMappings() {
	m.emit(bridge.TagMappings, bridge.MappingsPayload{
		Enabled:  m.table.Enabled(),
		Bindings: m.table.Bindings(),
	})
}

func (m *Manager) emitLearn() {
	name, ok := m.learner.Target()
	m.emit(bridge.TagLearn, bridge.LearnPayload{Name: name, Awaiting: ok})
}

func (m *Manager) emitControls() {
	infos := make([]bridge.ControlInfo, 0, len(m.graph.List))
	for _, n := range m.graph.List {
		info := bridge.ControlInfo{
			Name:        n.Name,
			Kind:        string(n.Kind),
			Label:       n.Def.Label,
			Interactive: n.Interactive,
			Excluded:    m.exclude[n.Name],
		}
		switch n.Kind {
		case script.KindSlider:
			info.Min, info.Max, info.Step = n.Spec.Range.Min, n.Spec.Range.Max, n.Spec.Range.Step
		case script.KindSelect:
			info.Options = n.Spec.Options
		case script.KindAutomate:
			if n.Def.Bounds != nil {
				info.Min, info.Max = n.Def.Bounds.Min, n.Def.Bounds.Max
			}
		}
		if n.Writable() {
			info.Default = n.Spec.FromNum(n.Def.Default.Num)
		}
		infos = append(infos, info)
	}
	m.emit(bridge.TagControls, bridge.ControlsPayload{Script: m.graph.ID, Controls: infos})
}

// observeClock mirrors clock state changes. Tempo changes below a
// twentieth of a BPM are ignored so an estimated tempo does not flood.
func (m *Manager) observeClock() {
	if t := m.clk.Tempo(); math.Abs(t-m.tempo) >= 0.05 {
		m.tempo = t
		m.emit(bridge.TagTempo, bridge.TempoPayload{BPM: t})
	}
	if st := m.clk.Status(); st.Playing != m.clockStat.Playing ||
		st.Degraded != m.clockStat.Degraded || st.Source != m.clockStat.Source {
		m.clockStat = st
		m.emit(bridge.TagClock, st)
	}
}

// flush publishes the sync view and sends this tick's messages
func (m *Manager) flush() {
	if len(m.out) == 0 {
		return
	}
	order := lo.FilterMap(m.graph.List, func(n *Node, _ int) (string, bool) {
		return n.Name, n.Valued()
	})
	v := &view{state: make(map[bridge.Tag]bridge.Message, len(m.state)), order: order}
	for tag, msg := range m.state {
		v.state[tag] = msg
	}
	m.view.Store(v)

	out := slices.Clone(m.out)
	m.out = m.out[:0]
	m.sink.Broadcast(out...)
}

// SyncMessages returns the full state for a newly connected panel. Safe to
// call from any goroutine.
func (m *Manager) SyncMessages() []bridge.Message {
	v := m.view.Load()
	if v == nil {
		return nil
	}
	var out []bridge.Message
	for _, tag := range syncOrder {
		if msg, ok := v.state[tag]; ok {
			out = append(out, msg)
		}
	}
	f := m.published.Load()
	for _, name := range v.order {
		val, ok := f.Values[name]
		if !ok {
			continue
		}
		out = append(out, bridge.Must(bridge.TagValue, bridge.ValuePayload{
			Name:     name,
			Value:    val,
			Disabled: f.Disabled[name],
		}))
	}
	return out
}
