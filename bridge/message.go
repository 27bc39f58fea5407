// Package bridge carries the panel protocol: tag-discriminated JSON
// messages exchanged with panel clients over websocket or in process.
package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go-vjctl/clock"
	"go-vjctl/mapping"
	"go-vjctl/param"
	"go-vjctl/script"
)

// Tag discriminates a message. Each tag has a fixed shape: either bare or
// with one payload type.
type Tag string

// Outbound
const (
	TagValue      Tag = "value"
	TagTempo      Tag = "tempo"
	TagClock      Tag = "clock"
	TagRecording  Tag = "recording"
	TagSnapshots  Tag = "snapshots"
	TagMappings   Tag = "mappings"
	TagLearn      Tag = "learn"
	TagControls   Tag = "controls"
	TagDiagnostic Tag = "diagnostic"
)

// Inbound. learn and tempo are used in both directions.
const (
	TagSet              Tag = "set"
	TagBypass           Tag = "bypass"
	TagSnapshotStore    Tag = "snapshot-store"
	TagSnapshotRecall   Tag = "snapshot-recall"
	TagSnapshotDelete   Tag = "snapshot-delete"
	TagRandomize        Tag = "randomize"
	TagRandomizeControl Tag = "randomize-control"
	TagRevertControl    Tag = "revert-control"
	TagExclude          Tag = "exclude"
	TagLearnCancel      Tag = "learn-cancel"
	TagUnmap            Tag = "unmap"
	TagMappingsEnabled  Tag = "mappings-enabled"
	TagResetClock       Tag = "reset-clock"
	TagRecordStart      Tag = "record-start"
	TagRecordStop       Tag = "record-stop"
	TagSave             Tag = "save"
	TagSequence         Tag = "sequence"
)

// Message is one protocol message
type Message struct {
	Tag     Tag             `json:"tag"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New builds a message; a nil payload makes a bare tag
func New(tag Tag, payload any) (Message, error) {
	if payload == nil {
		return Message{Tag: tag}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", tag, err)
	}
	return Message{Tag: tag, Payload: data}, nil
}

// Must is New for payload types that always encode
func Must(tag Tag, payload any) Message {
	m, err := New(tag, payload)
	if err != nil {
		panic(err)
	}
	return m
}

// Bare reports whether the message carries no payload
func (m Message) Bare() bool {
	return len(m.Payload) == 0 || bytes.Equal(m.Payload, []byte("null"))
}

// Decode unmarshals the payload of m into a T
func Decode[T any](m Message) (T, error) {
	var v T
	if m.Bare() {
		return v, fmt.Errorf("%s: missing payload", m.Tag)
	}
	dec := json.NewDecoder(bytes.NewReader(m.Payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("%s: %w", m.Tag, err)
	}
	return v, nil
}

// Encode renders m as one line of JSON
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Parse reads one message
func Parse(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode message: %w", err)
	}
	if m.Tag == "" {
		return m, fmt.Errorf("decode message: missing tag")
	}
	return m, nil
}

// Outbound payloads

type ValuePayload struct {
	Name     string      `json:"name"`
	Value    param.Value `json:"value"`
	Disabled bool        `json:"disabled,omitempty"`
}

type TempoPayload struct {
	BPM float64 `json:"bpm"`
}

type ClockPayload = clock.Status

type RecordingPayload struct {
	Active bool   `json:"active"`
	Path   string `json:"path,omitempty"`
}

type SnapshotsPayload struct {
	Occupied   []int   `json:"occupied"`
	Sequencing bool    `json:"sequencing"`
	Every      float64 `json:"every,omitempty"`
}

type MappingsPayload struct {
	Enabled  bool              `json:"enabled"`
	Bindings []mapping.Binding `json:"bindings"`
}

type LearnPayload struct {
	Name     string `json:"name,omitempty"`
	Awaiting bool   `json:"awaiting,omitempty"`
}

// ControlInfo describes one node to the panel
type ControlInfo struct {
	Name        string      `json:"name"`
	Kind        string      `json:"kind"`
	Label       string      `json:"label,omitempty"`
	Min         float64     `json:"min,omitempty"`
	Max         float64     `json:"max,omitempty"`
	Step        float64     `json:"step,omitempty"`
	Options     []string    `json:"options,omitempty"`
	Default     param.Value `json:"default"`
	Interactive bool        `json:"interactive"`
	Excluded    bool        `json:"excluded,omitempty"`
}

type ControlsPayload struct {
	Script   string        `json:"script"`
	Controls []ControlInfo `json:"controls"`
}

type DiagnosticPayload = script.Diagnostic

// Inbound payloads

type SetPayload struct {
	Name  string      `json:"name"`
	Value param.Value `json:"value"`
}

// BypassPayload forces a value; a nil Value clears the bypass
type BypassPayload struct {
	Name  string       `json:"name"`
	Value *param.Value `json:"value"`
}

// SlotPayload addresses a snapshot slot. Beats, on recall only, overrides
// the configured transition length; 0 recalls instantly.
type SlotPayload struct {
	Slot  int      `json:"slot"`
	Beats *float64 `json:"beats,omitempty"`
}

type NamePayload struct {
	Name string `json:"name"`
}

type ExcludePayload struct {
	Name     string `json:"name"`
	Excluded bool   `json:"excluded"`
}

type EnabledPayload struct {
	Enabled bool `json:"enabled"`
}

type RecordPayload struct {
	Path string `json:"path,omitempty"`
}

type SavePayload struct {
	Name string `json:"name,omitempty"`
}

type SequencePayload struct {
	Enabled bool    `json:"enabled"`
	Every   float64 `json:"every,omitempty"`
}
