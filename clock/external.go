package clock

import (
	"math"
	"time"
)

const (
	pulseBeats = 1.0 / PPQ
	// largest per-pulse correction while reconciling (half a pulse), which
	// keeps every pulse moving forward
	maxCorrection = pulseBeats / 2
	// drift beyond this is treated as a jump instead of being slewed out
	snapDrift = 1.0
)

// External accumulates beats from MIDI clock pulses. Song-position messages
// reset the accumulator (jumps and loops). In hybrid mode absolute positions
// are reconciled gradually instead, unless the drift is large.
type External struct {
	inbox
	hybrid bool

	beat    float64
	playing bool
	tempo   float64 // nominal, used until pulses give a rate
	rate    float64 // beats per second estimated from pulses

	lastPulse time.Time
	pending   float64 // hybrid: correction still to apply

	silence  time.Duration
	timeout  time.Duration
	degraded bool
}

func NewExternal(tempo float64, timeout time.Duration) *External {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &External{
		tempo:   clampTempo(tempo),
		timeout: timeout,
	}
}

// NewHybrid uses pulses for the fine rate and absolute position messages
// (song position, time code, transport) for coarse reconciliation.
func NewHybrid(tempo float64, timeout time.Duration) *External {
	e := NewExternal(tempo, timeout)
	e.hybrid = true
	return e
}

func (e *External) Advance(dt time.Duration) float64 {
	events := e.drain()
	for _, ev := range events {
		e.apply(ev)
	}

	if len(events) > 0 {
		e.silence = 0
		e.degraded = false
		return e.beat
	}

	if !e.playing {
		return e.beat
	}
	e.silence += dt
	if e.silence <= e.timeout {
		return e.beat
	}
	if !e.degraded {
		// catch up the time lost waiting for the timeout
		e.degraded = true
		e.beat += e.beatsPerSecond() * (e.silence - dt).Seconds()
	}
	e.beat += e.beatsPerSecond() * dt.Seconds()
	return e.beat
}

func (e *External) apply(ev Event) {
	switch ev.Kind {
	case Pulse:
		if !e.lastPulse.IsZero() && !ev.At.IsZero() {
			if d := ev.At.Sub(e.lastPulse).Seconds(); d > 0 && d < 1 {
				inst := pulseBeats / d
				if e.rate == 0 {
					e.rate = inst
				} else {
					e.rate = e.rate*0.9 + inst*0.1
				}
			}
		}
		e.lastPulse = ev.At
		if !e.playing {
			return
		}
		step := pulseBeats
		if e.pending != 0 {
			corr := math.Max(-maxCorrection, math.Min(maxCorrection, e.pending))
			e.pending -= corr
			step += corr
		}
		e.beat += step
	case Start:
		e.beat = 0
		e.pending = 0
		e.playing = true
	case Continue:
		e.playing = true
	case Stop:
		e.playing = false
	case SongPosition, Transport:
		if ev.Kind == Transport {
			e.playing = ev.Playing
			if ev.Tempo > 0 {
				e.tempo = clampTempo(ev.Tempo)
			}
		}
		e.position(ev.Beat)
	case TimeCode:
		e.position(ev.Seconds * e.beatsPerSecond())
	}
}

func (e *External) position(target float64) {
	if !e.hybrid {
		e.beat = target
		e.pending = 0
		return
	}
	drift := target - e.beat
	if math.Abs(drift) > snapDrift {
		e.beat = target
		e.pending = 0
		return
	}
	e.pending = drift
}

func (e *External) beatsPerSecond() float64 {
	if e.rate > 0 {
		return e.rate
	}
	return e.tempo / 60
}

func (e *External) Beat() float64 { return e.beat }

// Tempo is derived from the pulse rate once pulses have been seen
func (e *External) Tempo() float64 {
	return e.beatsPerSecond() * 60
}

// SetTempo sets the nominal tempo used before a pulse rate is known
func (e *External) SetTempo(bpm float64) { e.tempo = clampTempo(bpm) }

func (e *External) Reset() {
	e.beat = 0
	e.pending = 0
}

func (e *External) Seek(beat float64) {
	e.beat = beat
	e.pending = 0
}

func (e *External) Status() Status {
	source := SourceMIDI
	if e.hybrid {
		source = SourceHybrid
	}
	return Status{
		Source:   string(source),
		Playing:  e.playing,
		Degraded: e.degraded,
		Tempo:    e.Tempo(),
	}
}
