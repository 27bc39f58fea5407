package control

import "go-vjctl/param"

// Frame returns the latest published table
func (m *Manager) Frame() *Frame {
	return m.published.Load()
}

// Beat returns the beat of the latest published table
func (m *Manager) Beat() float64 {
	return m.published.Load().Beat
}

// Lookup returns the published value of name
func (m *Manager) Lookup(name string) (param.Value, bool) {
	v, ok := m.published.Load().Values[name]
	return v, ok
}

// Get returns the published value of name, or the zero value
func (m *Manager) Get(name string) param.Value {
	v, _ := m.Lookup(name)
	return v
}

func (m *Manager) Float(name string) float64 { return m.Get(name).Float() }
func (m *Manager) Bool(name string) bool     { return m.Get(name).Bool() }
func (m *Manager) String(name string) string { return m.Get(name).String() }

// Disabled reports the advisory disabled flag of a control
func (m *Manager) Disabled(name string) bool {
	return m.published.Load().Disabled[name]
}

// Changed reports whether any value changed since the last MarkUnchanged
func (m *Manager) Changed() bool {
	m.changedMu.Lock()
	defer m.changedMu.Unlock()
	return len(m.changed) > 0
}

// AnyChangedIn reports whether one of names changed since the last
// MarkUnchanged
func (m *Manager) AnyChangedIn(names ...string) bool {
	m.changedMu.Lock()
	defer m.changedMu.Unlock()
	for _, name := range names {
		if m.changed[name] {
			return true
		}
	}
	return false
}

// MarkUnchanged clears the changed flags
func (m *Manager) MarkUnchanged() {
	m.changedMu.Lock()
	clear(m.changed)
	m.changedMu.Unlock()
}
