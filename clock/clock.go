// Package clock provides the beat clock: the single musical-time source the
// runtime advances once per frame.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// PPQ is the MIDI clock resolution in pulses per quarter note
const PPQ = 24

// EventKind identifies an incoming timing message
type EventKind int

const (
	Pulse EventKind = iota
	Start
	Stop
	Continue
	SongPosition // absolute position in Beat
	TimeCode     // absolute position in Seconds
	Transport    // absolute position, play state and optional tempo
)

func (k EventKind) String() string {
	switch k {
	case Pulse:
		return "pulse"
	case Start:
		return "start"
	case Stop:
		return "stop"
	case Continue:
		return "continue"
	case SongPosition:
		return "song-position"
	case TimeCode:
		return "time-code"
	case Transport:
		return "transport"
	}
	return "unknown"
}

// Event is a timed message from a device or transport
type Event struct {
	Kind    EventKind
	At      time.Time
	Beat    float64
	Seconds float64
	Playing bool
	Tempo   float64 // 0 = unchanged
}

// Status is the externally visible clock state
type Status struct {
	Source   string  `json:"source"`
	Playing  bool    `json:"playing"`
	Degraded bool    `json:"degraded"`
	Tempo    float64 `json:"tempo"`
}

// Clock is advanced once per tick by the runtime goroutine. Only Feed may be
// called from other goroutines.
type Clock interface {
	Advance(dt time.Duration) float64
	Beat() float64
	Tempo() float64
	SetTempo(bpm float64)
	Reset()
	Seek(beat float64)
	Feed(ev Event)
	Status() Status
}

// Source names a clock strategy
type Source string

const (
	SourceFrame     Source = "frame"
	SourceMIDI      Source = "midi"
	SourceTransport Source = "transport"
	SourceHybrid    Source = "hybrid"
)

// New builds the strategy named by source
func New(source Source, tempo float64, fps int, timeout time.Duration) (Clock, error) {
	switch source {
	case SourceFrame, "":
		return NewFrame(tempo, fps), nil
	case SourceMIDI:
		return NewExternal(tempo, timeout), nil
	case SourceTransport:
		return NewTransport(tempo, timeout), nil
	case SourceHybrid:
		return NewHybrid(tempo, timeout), nil
	}
	return nil, fmt.Errorf("unknown clock source %q", source)
}

// inbox queues events fed from device goroutines until the next Advance
type inbox struct {
	mu     sync.Mutex
	events []Event
}

func (b *inbox) Feed(ev Event) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

func (b *inbox) drain() []Event {
	b.mu.Lock()
	events := b.events
	b.events = nil
	b.mu.Unlock()
	return events
}

func clampTempo(bpm float64) float64 {
	if bpm < 20 {
		bpm = 20
	}
	if bpm > 300 {
		bpm = 300
	}
	return bpm
}
