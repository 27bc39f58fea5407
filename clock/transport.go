package clock

import "time"

// positionJitter is how far behind the current beat an absolute position
// may arrive without moving the clock backwards
const positionJitter = 1.0 / 32

// TransportClock follows explicit absolute position and play-state
// messages and advances at tempo between them.
type TransportClock struct {
	inbox
	beat    float64
	playing bool
	tempo   float64

	silence  time.Duration
	timeout  time.Duration
	degraded bool
}

func NewTransport(tempo float64, timeout time.Duration) *TransportClock {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &TransportClock{
		tempo:   clampTempo(tempo),
		timeout: timeout,
	}
}

func (t *TransportClock) Advance(dt time.Duration) float64 {
	events := t.drain()
	for _, ev := range events {
		switch ev.Kind {
		case Transport:
			t.playing = ev.Playing
			if ev.Tempo > 0 {
				t.tempo = clampTempo(ev.Tempo)
			}
			t.position(ev.Beat)
		case SongPosition:
			t.position(ev.Beat)
		case TimeCode:
			t.position(ev.Seconds * t.tempo / 60)
		case Start:
			t.beat = 0
			t.playing = true
		case Continue:
			t.playing = true
		case Stop:
			t.playing = false
		}
	}

	if len(events) > 0 {
		t.silence = 0
		t.degraded = false
	} else if t.playing {
		t.silence += dt
		if t.silence > t.timeout {
			t.degraded = true
		}
	}

	if t.playing {
		t.beat += t.tempo / 60 * dt.Seconds()
	}
	return t.beat
}

func (t *TransportClock) position(target float64) {
	if target < t.beat && t.beat-target < positionJitter {
		return
	}
	t.beat = target
}

func (t *TransportClock) Beat() float64        { return t.beat }
func (t *TransportClock) Tempo() float64       { return t.tempo }
func (t *TransportClock) SetTempo(bpm float64) { t.tempo = clampTempo(bpm) }
func (t *TransportClock) Reset()               { t.beat = 0 }
func (t *TransportClock) Seek(beat float64)    { t.beat = beat }

func (t *TransportClock) Status() Status {
	return Status{
		Source:   string(SourceTransport),
		Playing:  t.playing,
		Degraded: t.degraded,
		Tempo:    t.tempo,
	}
}
