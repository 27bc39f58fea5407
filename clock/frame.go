package clock

import "time"

// Frame derives beats from the frame count: every Advance adds a fixed
// increment of tempo/60/fps beats regardless of wall time.
type Frame struct {
	inbox
	beat    float64
	tempo   float64
	fps     float64
	playing bool
}

func NewFrame(tempo float64, fps int) *Frame {
	if fps <= 0 {
		fps = 60
	}
	return &Frame{
		tempo:   clampTempo(tempo),
		fps:     float64(fps),
		playing: true,
	}
}

func (f *Frame) Advance(time.Duration) float64 {
	for _, ev := range f.drain() {
		switch ev.Kind {
		case Start:
			f.beat = 0
			f.playing = true
		case Continue:
			f.playing = true
		case Stop:
			f.playing = false
		case SongPosition, Transport:
			f.beat = ev.Beat
		}
	}
	if f.playing {
		f.beat += f.tempo / 60 / f.fps
	}
	return f.beat
}

func (f *Frame) Beat() float64        { return f.beat }
func (f *Frame) Tempo() float64       { return f.tempo }
func (f *Frame) SetTempo(bpm float64) { f.tempo = clampTempo(bpm) }
func (f *Frame) Reset()               { f.beat = 0 }
func (f *Frame) Seek(beat float64)    { f.beat = beat }

func (f *Frame) Status() Status {
	return Status{Source: string(SourceFrame), Playing: f.playing, Tempo: f.tempo}
}
