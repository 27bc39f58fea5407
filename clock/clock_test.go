package clock

import (
	"math"
	"testing"
	"time"
)

const frameDT = time.Second / 60

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestFrameAdvance(t *testing.T) {
	c := NewFrame(120, 60)
	for i := 0; i < 60; i++ {
		c.Advance(frameDT)
	}
	if !near(c.Beat(), 2) {
		t.Fatalf("beat after 60 frames at 120bpm = %v, want 2", c.Beat())
	}

	c.Feed(Event{Kind: Stop})
	c.Advance(frameDT)
	b := c.Beat()
	c.Advance(frameDT)
	if c.Beat() != b {
		t.Fatal("stopped frame clock advanced")
	}
}

func pulses(c Clock, start time.Time, n int, bpm float64) time.Time {
	interval := time.Duration(float64(time.Minute) / bpm / PPQ)
	at := start
	for i := 0; i < n; i++ {
		c.Feed(Event{Kind: Pulse, At: at})
		at = at.Add(interval)
	}
	return at
}

func TestExternalPulses(t *testing.T) {
	c := NewExternal(120, 500*time.Millisecond)
	c.Feed(Event{Kind: Start})
	pulses(c, time.Now(), PPQ, 100)
	c.Advance(frameDT)
	if !near(c.Beat(), 1) {
		t.Fatalf("beat after 24 pulses = %v, want 1", c.Beat())
	}
	if math.Abs(c.Tempo()-100) > 0.5 {
		t.Fatalf("tempo from pulse rate = %v, want ~100", c.Tempo())
	}
}

func TestExternalIgnoresPulsesWhenStopped(t *testing.T) {
	c := NewExternal(120, 500*time.Millisecond)
	pulses(c, time.Now(), PPQ, 120)
	c.Advance(frameDT)
	if c.Beat() != 0 {
		t.Fatalf("beat = %v before start, want 0", c.Beat())
	}
}

func TestExternalSongPositionAndStart(t *testing.T) {
	c := NewExternal(120, 500*time.Millisecond)
	c.Feed(Event{Kind: Start})
	pulses(c, time.Now(), 48, 120)
	c.Feed(Event{Kind: SongPosition, Beat: 16})
	c.Advance(frameDT)
	if c.Beat() != 16 {
		t.Fatalf("beat after song position = %v, want 16", c.Beat())
	}

	c.Feed(Event{Kind: Start})
	c.Advance(frameDT)
	if c.Beat() != 0 {
		t.Fatalf("beat after start = %v, want 0", c.Beat())
	}
}

func TestExternalDegradedDeadReckoning(t *testing.T) {
	c := NewExternal(120, 500*time.Millisecond)
	c.Feed(Event{Kind: Start})
	c.Advance(frameDT)

	for i := 0; i < 5; i++ {
		c.Advance(100 * time.Millisecond)
	}
	if c.Status().Degraded {
		t.Fatal("degraded before timeout")
	}
	if c.Beat() != 0 {
		t.Fatalf("beat moved during grace period: %v", c.Beat())
	}

	c.Advance(100 * time.Millisecond)
	if !c.Status().Degraded {
		t.Fatal("expected degraded after timeout")
	}
	// 600ms of silence at 2 beats per second
	if !near(c.Beat(), 1.2) {
		t.Fatalf("beat after catch-up = %v, want 1.2", c.Beat())
	}
	c.Advance(100 * time.Millisecond)
	if !near(c.Beat(), 1.4) {
		t.Fatalf("dead-reckoned beat = %v, want 1.4", c.Beat())
	}

	pulses(c, time.Now(), 1, 120)
	c.Advance(frameDT)
	if c.Status().Degraded {
		t.Fatal("pulse should clear degraded")
	}
}

func TestExternalStoppedNeverDegrades(t *testing.T) {
	c := NewExternal(120, 100*time.Millisecond)
	for i := 0; i < 10; i++ {
		c.Advance(100 * time.Millisecond)
	}
	if c.Status().Degraded || c.Beat() != 0 {
		t.Fatalf("stopped clock: degraded=%v beat=%v", c.Status().Degraded, c.Beat())
	}
}

func TestHybridSoftCorrection(t *testing.T) {
	c := NewHybrid(120, time.Second)
	c.Feed(Event{Kind: Start})
	at := pulses(c, time.Now(), PPQ, 120)
	c.Advance(frameDT)

	c.Feed(Event{Kind: SongPosition, Beat: 1.25})
	c.Advance(frameDT)
	if !near(c.Beat(), 1) {
		t.Fatalf("small drift should not jump, beat = %v", c.Beat())
	}

	prev := c.Beat()
	for i := 0; i < 2*PPQ; i++ {
		at = pulses(c, at, 1, 120)
		c.Advance(frameDT)
		if c.Beat() <= prev {
			t.Fatalf("beat went from %v to %v", prev, c.Beat())
		}
		if step := c.Beat() - prev; step > pulseBeats+maxCorrection+1e-9 {
			t.Fatalf("step %v exceeds correction bound", step)
		}
		prev = c.Beat()
	}
	// 48 pulses is 2 beats plus the absorbed 0.25
	if !near(c.Beat(), 3.25) {
		t.Fatalf("reconciled beat = %v, want 3.25", c.Beat())
	}
}

func TestHybridSnapsLargeDrift(t *testing.T) {
	c := NewHybrid(120, time.Second)
	c.Feed(Event{Kind: Start})
	c.Feed(Event{Kind: SongPosition, Beat: 32})
	c.Advance(frameDT)
	if c.Beat() != 32 {
		t.Fatalf("beat = %v, want snap to 32", c.Beat())
	}
}

func TestTransportFollowsPosition(t *testing.T) {
	c := NewTransport(120, time.Second)
	c.Feed(Event{Kind: Transport, Beat: 8, Playing: true, Tempo: 90})
	c.Advance(time.Second)
	// position applied, then one second at 90bpm
	if !near(c.Beat(), 9.5) {
		t.Fatalf("beat = %v, want 9.5", c.Beat())
	}
	if c.Tempo() != 90 {
		t.Fatalf("tempo = %v, want 90", c.Tempo())
	}

	// slightly late position report is absorbed
	c.Feed(Event{Kind: Transport, Beat: 9.49, Playing: true})
	c.Advance(0)
	if !near(c.Beat(), 9.5) {
		t.Fatalf("jitter moved clock back to %v", c.Beat())
	}

	c.Feed(Event{Kind: Transport, Beat: 4, Playing: false})
	c.Advance(time.Second)
	if c.Beat() != 4 {
		t.Fatalf("explicit backward seek: beat = %v, want 4", c.Beat())
	}
}

func TestTransportDegrades(t *testing.T) {
	c := NewTransport(120, 200*time.Millisecond)
	c.Feed(Event{Kind: Transport, Beat: 0, Playing: true})
	c.Advance(0)
	c.Advance(300 * time.Millisecond)
	if !c.Status().Degraded {
		t.Fatal("expected degraded")
	}
	if !near(c.Beat(), 0.6) {
		t.Fatalf("beat = %v, want 0.6", c.Beat())
	}
}

func TestNewSources(t *testing.T) {
	for _, src := range []Source{SourceFrame, SourceMIDI, SourceTransport, SourceHybrid} {
		c, err := New(src, 120, 60, time.Second)
		if err != nil {
			t.Fatalf("%s: %v", src, err)
		}
		if got := c.Status().Source; got != string(src) {
			t.Fatalf("%s: status source = %q", src, got)
		}
	}
	c, _ := New(SourceTransport, 120, 60, time.Second)
	if _, ok := c.(*TransportClock); !ok {
		t.Fatalf("transport source built %T", c)
	}
}

func TestNewUnknownSource(t *testing.T) {
	if _, err := New("ableton", 120, 60, time.Second); err == nil {
		t.Fatal("expected error")
	}
}
