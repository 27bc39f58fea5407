package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"go-vjctl/clock"
	"go-vjctl/mapping"
)

type events chan clock.Event

func (e events) Feed(ev clock.Event) { e <- ev }

type inputs chan mapping.Input

func (i inputs) Control(in mapping.Input) { i <- in }

func TestPacketConversion(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		kind      clock.EventKind
		hasEvent  bool
		hasInput  bool
		wantBeat  float64
		wantPlay  bool
		wantUnit  float64
		wantTempo float64
	}{
		{"position", `{"beat":16.5,"tempo":128}`, clock.Transport, true, false, 16.5, true, 0, 128},
		{"stopped position", `{"beat":4,"playing":false}`, clock.Transport, true, false, 4, false, 0, 0},
		{"stop", `{"playing":false}`, clock.Stop, true, false, 0, false, 0, 0},
		{"continue", `{"playing":true}`, clock.Continue, true, false, 0, false, 0, 0},
		{"value only", `{"address":"/fx/mix","value":0.4}`, 0, false, true, 0, false, 0.4, 0},
		{"clamped value", `{"address":"/fx/mix","value":3}`, 0, false, true, 0, false, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode([]byte(tt.data))
			if err != nil {
				t.Fatal(err)
			}
			ev, ok := p.Event(time.Time{})
			if ok != tt.hasEvent {
				t.Fatalf("event present = %v, want %v", ok, tt.hasEvent)
			}
			if ok {
				if ev.Kind != tt.kind {
					t.Fatalf("kind = %v, want %v", ev.Kind, tt.kind)
				}
				if ev.Kind == clock.Transport && (ev.Beat != tt.wantBeat || ev.Playing != tt.wantPlay || ev.Tempo != tt.wantTempo) {
					t.Fatalf("event = %+v", ev)
				}
			}
			in, ok := p.Input()
			if ok != tt.hasInput {
				t.Fatalf("input present = %v, want %v", ok, tt.hasInput)
			}
			if ok && (in.Address.Path != "/fx/mix" || in.Unit != tt.wantUnit) {
				t.Fatalf("input = %+v", in)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, data := range []string{`not json`, `{"address":"/a"}`} {
		if _, err := Decode([]byte(data)); err == nil {
			t.Errorf("Decode(%s) succeeded", data)
		}
	}
}

func TestServeUDP(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Skipf("udp unavailable: %v", err)
	}
	evs := make(events, 4)
	ins := make(inputs, 4)
	s := NewServer(evs, ins)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, conn) }()

	client, err := net.DialUDP("udp", nil, conn.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	client.Write([]byte(`garbage`))
	client.Write([]byte(`{"beat":8,"address":"/a","value":0.5}`))

	select {
	case ev := <-evs:
		if ev.Beat != 8 || !ev.Playing {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	select {
	case in := <-ins:
		if in.Address.Path != "/a" || in.Unit != 0.5 {
			t.Fatalf("input = %+v", in)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no input received")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}
