package control

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"go-vjctl/effect"
	"go-vjctl/param"
	"go-vjctl/script"
)

// DefaultDebounce is how long the watcher waits for writes to settle
const DefaultDebounce = 150 * time.Millisecond

// Reload validates doc against the full rules and, if it passes, queues it
// to replace the live graph at the start of the next tick. On failure the
// live graph stays and the diagnostics are sent to panels. Safe to call from
// any goroutine.
func (m *Manager) Reload(doc *script.Document) error {
	g, warns, err := Build(doc, true)
	m.pending.Store(&pendingReload{graph: g, warns: warns, err: err})
	return err
}

func (m *Manager) applyReload() {
	p := m.pending.Swap(nil)
	if p == nil {
		return
	}
	for _, d := range p.warns {
		m.diagnose(d)
	}
	if p.err != nil {
		if diags, ok := script.AsLoadError(p.err); ok {
			for _, d := range diags {
				m.diagnose(d)
			}
		} else {
			m.diagnose(script.Errorf("", "%v", p.err))
		}
		m.diagnose(script.Warnf("", "reload rejected, previous script kept"))
		return
	}
	if p.graph.ID == "" {
		p.graph.ID = m.graph.ID
	}
	m.install(p.graph, m.graph)
	m.log.Info("script reloaded", "script", p.graph.ID, "nodes", len(p.graph.List))
}

// install makes g live. Nodes whose name and kind match a node of old keep
// their literal, bypass, transition and effect memory; everything else
// starts from its defaults.
func (m *Manager) install(g *Graph, old *Graph) {
	same := func(n *Node) bool {
		if old == nil {
			return false
		}
		on, ok := old.Nodes[n.Name]
		return ok && identity(on) == identity(n)
	}

	literal := make(map[string]param.Value)
	bypass := make(map[string]param.Value)
	values := make(map[string]param.Value)
	for _, n := range g.List {
		if !n.Valued() {
			continue
		}
		keep := same(n)
		if n.Writable() {
			literal[n.Name] = n.Spec.FromNum(n.Def.Default.Num)
			if keep {
				if v, ok := n.Spec.Coerce(m.literal[n.Name]); ok {
					literal[n.Name] = v
				}
			}
		}
		if !keep {
			continue
		}
		if v, ok := m.bypass[n.Name]; ok {
			if c, ok := n.Spec.Coerce(v); ok {
				bypass[n.Name] = c
			}
		}
		if v, ok := m.values[n.Name]; ok {
			if c, ok := n.Spec.Coerce(v); ok {
				values[n.Name] = c
			}
		}
	}

	for _, name := range m.trans.Names() {
		n, ok := g.Nodes[name]
		if !ok || !n.Writable() || !same(n) {
			m.trans.Cancel(name)
			continue
		}
		m.trans.Respec(name, n.Spec)
	}

	keys := make(map[effect.Key]bool)
	for _, n := range g.List {
		if n.Chain != nil {
			for _, k := range n.Chain.Keys() {
				keys[k] = true
			}
		}
	}
	m.states.Retain(keys)

	m.graph = g
	m.literal = literal
	m.bypass = bypass
	m.values = values
	m.disabled = make(map[string]bool)
	clear(m.reported)

	m.pruneMappings()
	if name, ok := m.learner.Target(); ok {
		if _, err := m.writable(name); err != nil {
			m.learner.Cancel()
			m.emitLearn()
		}
	}
	m.emitControls()
}

// pruneMappings drops bindings to controls that do not exist
func (m *Manager) pruneMappings() {
	dropped := m.table.Prune(func(name string) bool {
		n, ok := m.graph.Nodes[name]
		return ok && n.Writable()
	})
	for _, b := range dropped {
		m.diagnose(script.Warnf(b.Control, "mapping from %s dropped: control does not exist", b.Address))
	}
	if len(dropped) > 0 {
		m.emitMappings()
		m.markDirty()
	}
}

// Watch reloads path whenever it changes until ctx is done. Editors that
// save by rename are handled by watching the directory.
func (m *Manager) Watch(ctx context.Context, path string, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.log.Warn("watcher error", "err", err)
		case <-timer.C:
			m.reloadFile(abs)
		}
	}
}

func (m *Manager) reloadFile(path string) {
	doc, err := script.Load(path)
	if err != nil {
		// keep the previous graph; the rename step of some editors leaves
		// the file briefly missing
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		m.pending.Store(&pendingReload{err: err})
		return
	}
	if err := m.Reload(doc); err != nil {
		m.log.Warn("reload rejected", "script", path, "err", err)
	}
}
