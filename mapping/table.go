package mapping

import (
	"sort"
)

// Binding is the persisted form of one mapping
type Binding struct {
	Address Address `json:"address"`
	Control string  `json:"control"`
}

// Table holds address <-> control bindings. Each address drives at most one
// control and each control is driven by at most one address.
type Table struct {
	byAddr  map[Address]string
	byName  map[string]Address
	last    map[string]float64 // last received unit value per control
	enabled bool
}

func NewTable() *Table {
	return &Table{
		byAddr:  make(map[Address]string),
		byName:  make(map[string]Address),
		last:    make(map[string]float64),
		enabled: true,
	}
}

// Bind maps a to name, replacing any previous binding of either side
func (t *Table) Bind(a Address, name string) {
	if old, ok := t.byAddr[a]; ok {
		delete(t.byName, old)
		delete(t.last, old)
	}
	if old, ok := t.byName[name]; ok {
		delete(t.byAddr, old)
	}
	delete(t.last, name)
	t.byAddr[a] = name
	t.byName[name] = a
}

// Unbind removes the binding driving name
func (t *Table) Unbind(name string) bool {
	a, ok := t.byName[name]
	if !ok {
		return false
	}
	delete(t.byName, name)
	delete(t.byAddr, a)
	delete(t.last, name)
	return true
}

func (t *Table) Lookup(a Address) (string, bool) {
	name, ok := t.byAddr[a]
	return name, ok
}

func (t *Table) AddressOf(name string) (Address, bool) {
	a, ok := t.byName[name]
	return a, ok
}

// Receive records an input for its bound control
func (t *Table) Receive(in Input) (string, bool) {
	name, ok := t.byAddr[in.Address]
	if !ok {
		return "", false
	}
	t.last[name] = in.Unit
	return name, true
}

// Engaged returns the last received position for name when the binding is
// live: mappings enabled, bound, and at least one message received.
func (t *Table) Engaged(name string) (float64, bool) {
	if !t.enabled {
		return 0, false
	}
	u, ok := t.last[name]
	return u, ok
}

func (t *Table) SetEnabled(on bool) { t.enabled = on }
func (t *Table) Enabled() bool      { return t.enabled }
func (t *Table) Len() int           { return len(t.byName) }

// Prune drops bindings whose control no longer exists and returns them
func (t *Table) Prune(exists func(name string) bool) []Binding {
	var dropped []Binding
	for _, b := range t.Bindings() {
		if !exists(b.Control) {
			t.Unbind(b.Control)
			dropped = append(dropped, b)
		}
	}
	return dropped
}

// Bindings lists the table sorted by control name
func (t *Table) Bindings() []Binding {
	out := make([]Binding, 0, len(t.byName))
	for name, a := range t.byName {
		out = append(out, Binding{Address: a, Control: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Control < out[j].Control })
	return out
}

// Load replaces the table contents. Later bindings win on conflicts.
func (t *Table) Load(bindings []Binding) {
	t.byAddr = make(map[Address]string)
	t.byName = make(map[string]Address)
	t.last = make(map[string]float64)
	for _, b := range bindings {
		if b.Control == "" {
			continue
		}
		t.Bind(b.Address, b.Control)
	}
}
