package control

import (
	"go-vjctl/bridge"
	"go-vjctl/effect"
	"go-vjctl/param"
	"go-vjctl/script"
)

// resolve computes every node for the current beat. Each node's value is
// its highest-precedence source: mapping, bypass, transition, driver
// (automate or mod), then the literal.
func (m *Manager) resolve() {
	tvals, retired := m.trans.Update(m.beat)
	ctx := effect.Context{Beat: m.beat, Lookup: m.lookupFloat}

	for _, n := range m.graph.Order {
		if !n.Valued() {
			continue
		}
		v := m.base(n, ctx)
		if tv, ok := tvals[n.Name]; ok {
			v = tv
		}
		if bv, ok := m.bypass[n.Name]; ok {
			v = bv
		}
		if n.Writable() {
			if u, ok := m.table.Engaged(n.Name); ok {
				v = n.Spec.FromUnit(u)
			}
		}
		m.values[n.Name] = v
	}

	// a finished transition leaves its target as the new literal
	for _, name := range retired {
		if n, ok := m.graph.Nodes[name]; ok && n.Writable() {
			m.setLiteral(name, tvals[name])
		}
	}
	m.evalDisabled()
}

func (m *Manager) base(n *Node, ctx effect.Context) param.Value {
	switch n.Kind {
	case script.KindAutomate:
		if n.Seq == nil {
			return n.Spec.FromNum(n.Fallback)
		}
		return n.Spec.FromNum(n.Seq.Evaluate(m.beat))
	case script.KindMod:
		src := m.values[n.Def.Source].Num
		return n.Spec.FromNum(n.Chain.Apply(src, ctx, m.states))
	}
	if n.Driver != "" {
		if dv, ok := m.values[n.Driver]; ok {
			return n.Spec.FromNum(dv.Num)
		}
	}
	return m.literal[n.Name]
}

func (m *Manager) lookupFloat(name string) (float64, bool) {
	v, ok := m.values[name]
	return v.Num, ok
}

func (m *Manager) lookupAny(name string) (any, bool) {
	v, ok := m.values[name]
	if !ok {
		return nil, false
	}
	switch v.Type {
	case param.Bool:
		return v.Bool(), true
	case param.Choice:
		return v.Text, true
	default:
		return v.Num, true
	}
}

// evalDisabled evaluates disable-expressions. An expression that cannot be
// evaluated counts as false and is reported once.
func (m *Manager) evalDisabled() {
	for _, n := range m.graph.List {
		if n.Disable == nil {
			continue
		}
		d, err := n.Disable.Eval(m.lookupAny)
		if err != nil {
			d = false
			key := n.Name + "\x00" + err.Error()
			if !m.reported[key] {
				m.reported[key] = true
				m.diagnose(script.Warnf(n.Name, "disable: %v", err))
			}
		}
		m.disabled[n.Name] = d
	}
}

func (m *Manager) setLiteral(name string, v param.Value) {
	if old, ok := m.literal[name]; ok && old.Equal(v) && old.Num == v.Num {
		return
	}
	m.literal[name] = v
	m.markDirty()
}

// publish makes the resolved values visible to consumers and queues a value
// message for every node whose value or disabled flag changed.
func (m *Manager) publish() *Frame {
	prev := m.published.Load()
	changed := make(map[string]bool)
	for name, v := range m.values {
		if prev == nil {
			changed[name] = true
			continue
		}
		pv, ok := prev.Values[name]
		if !ok || !pv.Equal(v) || pv.Num != v.Num || prev.Disabled[name] != m.disabled[name] {
			changed[name] = true
		}
	}
	removed := prev != nil && len(prev.Values) != len(m.values)-countNew(prev, changed)

	var f *Frame
	if prev != nil && len(changed) == 0 && !removed {
		f = &Frame{Beat: m.beat, Values: prev.Values, Disabled: prev.Disabled}
	} else {
		f = &Frame{
			Beat:     m.beat,
			Values:   make(map[string]param.Value, len(m.values)),
			Disabled: make(map[string]bool, len(m.disabled)),
		}
		for name, v := range m.values {
			f.Values[name] = v
		}
		for name, d := range m.disabled {
			if d {
				f.Disabled[name] = true
			}
		}
	}
	m.published.Store(f)

	if len(changed) == 0 {
		return f
	}
	for _, n := range m.graph.List {
		if changed[n.Name] {
			m.out = append(m.out, bridge.Must(bridge.TagValue, bridge.ValuePayload{
				Name:     n.Name,
				Value:    m.values[n.Name],
				Disabled: m.disabled[n.Name],
			}))
		}
	}
	m.changedMu.Lock()
	for name := range changed {
		m.changed[name] = true
	}
	m.changedMu.Unlock()
	return f
}

// countNew counts changed names that were absent from prev
func countNew(prev *Frame, changed map[string]bool) int {
	n := 0
	for name := range changed {
		if _, ok := prev.Values[name]; !ok {
			n++
		}
	}
	return n
}
