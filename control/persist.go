package control

import (
	"maps"
	"sort"
	"time"

	"go-vjctl/bridge"
	"go-vjctl/record"
	"go-vjctl/script"
	"go-vjctl/store"
)

func (m *Manager) markDirty() {
	m.dirty = true
	m.sinceSave = 0
}

// persist requests a save once the state has been quiet for SaveDelay
func (m *Manager) persist(dt time.Duration) {
	if !m.dirty || m.opts.Saver == nil {
		return
	}
	m.sinceSave += dt
	if m.sinceSave >= m.opts.SaveDelay {
		m.save("")
	}
}

func (m *Manager) save(name string) {
	m.dirty = false
	m.sinceSave = 0
	if m.opts.Saver == nil {
		return
	}
	m.opts.Saver.Request(m.graph.ID, name, m.State())
}

// State captures the persisted state: literals (never bypasses), mappings,
// snapshots, exclusions and tempo. The result shares nothing with the
// manager.
func (m *Manager) State() *store.State {
	excluded := make([]string, 0, len(m.exclude))
	for name := range m.exclude {
		excluded = append(excluded, name)
	}
	sort.Strings(excluded)
	return &store.State{
		Script:    m.graph.ID,
		Values:    maps.Clone(m.literal),
		Mappings:  m.table.Bindings(),
		Snapshots: m.bank.Export(),
		Excluded:  excluded,
		Tempo:     m.clk.Tempo(),
	}
}

// restore applies a saved state over the freshly installed graph. Values
// for controls that no longer exist are ignored.
func (m *Manager) restore(st *store.State) {
	for name, v := range st.Values {
		n, ok := m.graph.Nodes[name]
		if !ok || !n.Writable() {
			continue
		}
		if c, ok := n.Spec.Coerce(v); ok {
			m.literal[name] = c
		}
	}
	m.table.Load(st.Mappings)
	m.pruneMappings()
	m.bank.Import(st.Snapshots)
	for _, name := range st.Excluded {
		m.exclude[name] = true
	}
	if st.Tempo > 0 {
		m.clk.SetTempo(st.Tempo)
		m.tempo = m.clk.Tempo()
	}
	m.emitControls()
	m.emitMappings()
	m.emitSnapshots()
}

// StartRecording begins writing the published table every tick
func (m *Manager) StartRecording(name string) error {
	if m.opts.Recorder == nil {
		return ErrNoRecorder
	}
	path, err := m.opts.Recorder.Start(name)
	if err != nil {
		return err
	}
	m.recording = bridge.RecordingPayload{Active: true, Path: path}
	m.emit(bridge.TagRecording, m.recording)
	return nil
}

// StopRecording ends the recording; completion is reported asynchronously
func (m *Manager) StopRecording() {
	if m.opts.Recorder == nil || !m.recording.Active {
		return
	}
	m.opts.Recorder.Stop()
	m.recording = bridge.RecordingPayload{}
	m.emit(bridge.TagRecording, m.recording)
}

func (m *Manager) recordDone(st record.Status) {
	if st.Err != nil {
		m.diagnose(script.Errorf("", "recording failed: %v", st.Err))
	} else {
		m.log.Info("recording finished", "path", st.Path)
	}
	if m.recording.Active && m.recording.Path == st.Path {
		m.recording = bridge.RecordingPayload{}
		m.emit(bridge.TagRecording, m.recording)
	}
}
