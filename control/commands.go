package control

import (
	"errors"
	"fmt"

	"go-vjctl/bridge"
	"go-vjctl/mapping"
	"go-vjctl/param"
	"go-vjctl/script"
	"go-vjctl/snapshot"
)

// handle applies one panel message. Problems become warnings; nothing a
// panel sends can stop the tick.
func (m *Manager) handle(msg bridge.Message) {
	if err := m.dispatch(msg); err != nil {
		var d Diagnostic
		if errors.As(err, &d) {
			m.diagnose(d)
			return
		}
		m.warn("", fmt.Errorf("%s: %w", msg.Tag, err))
	}
}

func (m *Manager) dispatch(msg bridge.Message) error {
	switch msg.Tag {
	case bridge.TagSet:
		p, err := bridge.Decode[bridge.SetPayload](msg)
		if err != nil {
			return err
		}
		return m.Set(p.Name, p.Value)
	case bridge.TagBypass:
		p, err := bridge.Decode[bridge.BypassPayload](msg)
		if err != nil {
			return err
		}
		return m.Bypass(p.Name, p.Value)
	case bridge.TagSnapshotStore:
		p, err := bridge.Decode[bridge.SlotPayload](msg)
		if err != nil {
			return err
		}
		return m.StoreSnapshot(p.Slot)
	case bridge.TagSnapshotRecall:
		p, err := bridge.Decode[bridge.SlotPayload](msg)
		if err != nil {
			return err
		}
		if p.Beats != nil {
			return m.RecallSnapshotIn(p.Slot, *p.Beats)
		}
		return m.RecallSnapshot(p.Slot)
	case bridge.TagSnapshotDelete:
		p, err := bridge.Decode[bridge.SlotPayload](msg)
		if err != nil {
			return err
		}
		return m.DeleteSnapshot(p.Slot)
	case bridge.TagRandomize:
		m.Randomize()
	case bridge.TagRandomizeControl:
		p, err := bridge.Decode[bridge.NamePayload](msg)
		if err != nil {
			return err
		}
		return m.RandomizeControl(p.Name)
	case bridge.TagRevertControl:
		p, err := bridge.Decode[bridge.NamePayload](msg)
		if err != nil {
			return err
		}
		return m.RevertControl(p.Name)
	case bridge.TagExclude:
		p, err := bridge.Decode[bridge.ExcludePayload](msg)
		if err != nil {
			return err
		}
		return m.Exclude(p.Name, p.Excluded)
	case bridge.TagLearn:
		p, err := bridge.Decode[bridge.LearnPayload](msg)
		if err != nil {
			return err
		}
		return m.Learn(p.Name)
	case bridge.TagLearnCancel:
		m.learner.Cancel()
		m.emitLearn()
	case bridge.TagUnmap:
		p, err := bridge.Decode[bridge.NamePayload](msg)
		if err != nil {
			return err
		}
		if m.table.Unbind(p.Name) {
			m.emitMappings()
			m.markDirty()
		}
	case bridge.TagMappingsEnabled:
		p, err := bridge.Decode[bridge.EnabledPayload](msg)
		if err != nil {
			return err
		}
		m.table.SetEnabled(p.Enabled)
		m.emitMappings()
	case bridge.TagTempo:
		p, err := bridge.Decode[bridge.TempoPayload](msg)
		if err != nil {
			return err
		}
		m.clk.SetTempo(p.BPM)
		m.markDirty()
	case bridge.TagResetClock:
		m.clk.Reset()
	case bridge.TagRecordStart:
		var p bridge.RecordPayload
		if !msg.Bare() {
			var err error
			if p, err = bridge.Decode[bridge.RecordPayload](msg); err != nil {
				return err
			}
		}
		return m.StartRecording(p.Path)
	case bridge.TagRecordStop:
		m.StopRecording()
	case bridge.TagSave:
		var p bridge.SavePayload
		if !msg.Bare() {
			var err error
			if p, err = bridge.Decode[bridge.SavePayload](msg); err != nil {
				return err
			}
		}
		m.save(p.Name)
	case bridge.TagSequence:
		p, err := bridge.Decode[bridge.SequencePayload](msg)
		if err != nil {
			return err
		}
		m.Sequence(p.Enabled, p.Every)
	default:
		return fmt.Errorf("unknown tag")
	}
	return nil
}

// writable finds a node the operator may edit
func (m *Manager) writable(name string) (*Node, error) {
	n, ok := m.graph.Nodes[name]
	switch {
	case !ok:
		return nil, script.Diagnostic{Severity: script.SeverityWarning, Node: name, Reason: ErrUnknownControl.Error()}
	case !n.Writable():
		return nil, script.Diagnostic{Severity: script.SeverityWarning, Node: name, Reason: ErrNotWritable.Error()}
	case !n.Interactive:
		return nil, script.Diagnostic{Severity: script.SeverityWarning, Node: name, Reason: ErrNotInteractive.Error()}
	}
	return n, nil
}

// Set changes a control's literal value, cancelling any transition on it
func (m *Manager) Set(name string, v param.Value) error {
	n, err := m.writable(name)
	if err != nil {
		return err
	}
	c, ok := n.Spec.Coerce(v)
	if !ok {
		return script.Warnf(name, "value %s does not fit the control", v)
	}
	m.trans.Cancel(name)
	m.setLiteral(name, c)
	return nil
}

// Bypass forces a node's value until cleared with a nil value. Bypasses
// are never persisted.
func (m *Manager) Bypass(name string, v *param.Value) error {
	n, ok := m.graph.Nodes[name]
	if !ok || !n.Valued() {
		return script.Warnf(name, "%v", ErrUnknownControl)
	}
	if v == nil {
		delete(m.bypass, name)
		return nil
	}
	c, ok := n.Spec.Coerce(*v)
	if !ok {
		return script.Warnf(name, "value %s does not fit the control", *v)
	}
	m.bypass[name] = c
	return nil
}

func (m *Manager) candidates() []snapshot.Candidate {
	var out []snapshot.Candidate
	for _, n := range m.graph.Writable() {
		if n.Interactive {
			out = append(out, snapshot.Candidate{Name: n.Name, Spec: n.Spec})
		}
	}
	return out
}

func (m *Manager) current(name string) param.Value {
	if v, ok := m.values[name]; ok {
		return v
	}
	return m.literal[name]
}

func (m *Manager) start(batch []snapshot.Target) {
	m.startIn(batch, m.opts.TransitionBeats)
}

func (m *Manager) startIn(batch []snapshot.Target, beats float64) {
	if len(batch) == 0 {
		return
	}
	m.trans.Start(batch, m.current, m.beat, max(0, beats), m.opts.Easing)
}

// StoreSnapshot captures the resolved table into slot, including edits
// applied earlier in the same tick
func (m *Manager) StoreSnapshot(slot int) error {
	if m.seq.Engaged() {
		return snapshot.ErrSequencing
	}
	m.resolve()
	table := make(snapshot.Table, len(m.values))
	for name, v := range m.values {
		table[name] = v
	}
	if err := m.bank.Save(slot, table); err != nil {
		return err
	}
	m.emitSnapshots()
	m.markDirty()
	return nil
}

// RecallSnapshot starts a transition batch toward a stored slot
func (m *Manager) RecallSnapshot(slot int) error {
	return m.RecallSnapshotIn(slot, m.opts.TransitionBeats)
}

// RecallSnapshotIn is RecallSnapshot over the given number of beats. With 0
// the slot's values are in place when the tick publishes.
func (m *Manager) RecallSnapshotIn(slot int, beats float64) error {
	table, err := m.bank.Get(slot)
	if err != nil {
		return fmt.Errorf("slot %d: %w", slot, err)
	}
	m.startIn(snapshot.Recall(m.candidates(), table), beats)
	return nil
}

func (m *Manager) DeleteSnapshot(slot int) error {
	if err := m.bank.Delete(slot); err != nil {
		return err
	}
	m.emitSnapshots()
	m.markDirty()
	return nil
}

// Randomize moves every non-excluded control to a random value
func (m *Manager) Randomize() {
	m.start(snapshot.Targets(m.candidates(), m.exclude, m.rng))
}

func (m *Manager) RandomizeControl(name string) error {
	n, err := m.writable(name)
	if err != nil {
		return err
	}
	m.start([]snapshot.Target{{Name: name, Spec: n.Spec, To: n.Spec.Random(m.rng)}})
	return nil
}

// RevertControl moves a control back to its authored default
func (m *Manager) RevertControl(name string) error {
	n, err := m.writable(name)
	if err != nil {
		return err
	}
	m.start([]snapshot.Target{{Name: name, Spec: n.Spec, To: n.Spec.FromNum(n.Def.Default.Num)}})
	return nil
}

func (m *Manager) Exclude(name string, excluded bool) error {
	if _, err := m.writable(name); err != nil {
		return err
	}
	if m.exclude[name] == excluded {
		return nil
	}
	if excluded {
		m.exclude[name] = true
	} else {
		delete(m.exclude, name)
	}
	m.emitControls()
	m.markDirty()
	return nil
}

// Learn arms the learn state machine for a control
func (m *Manager) Learn(name string) error {
	if _, err := m.writable(name); err != nil {
		return err
	}
	m.learner.Begin(name)
	m.emitLearn()
	return nil
}

// Sequence engages or disengages automatic slot sequencing
func (m *Manager) Sequence(enabled bool, every float64) {
	if enabled {
		m.seq.Engage(m.beat, every)
	} else {
		m.seq.Disengage()
	}
	m.emitSnapshots()
}

func (m *Manager) input(in mapping.Input) {
	if b, ok := m.learner.Offer(in, m.table); ok {
		m.log.Info("learned mapping", "control", b.Control, "address", b.Address.String())
		m.emitLearn()
		m.emitMappings()
		m.markDirty()
		return
	}
	m.table.Receive(in)
}
