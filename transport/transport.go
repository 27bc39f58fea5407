// Package transport receives the generic timed-transport protocol: JSON
// datagrams carrying a play position and, optionally, one addressed value.
//
//	{"beat": 16.5, "playing": true, "tempo": 128, "address": "/fx/mix", "value": 0.4}
//
// Every field is optional. A datagram with a beat becomes a clock Transport
// event; one with only "playing" becomes Continue or Stop; one with an
// address and value becomes a controller input on that address.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"go-vjctl/clock"
	"go-vjctl/debug"
	"go-vjctl/mapping"
)

// maxDatagram bounds a single packet
const maxDatagram = 64 * 1024

// Packet is one datagram
type Packet struct {
	Beat    *float64 `json:"beat,omitempty"`
	Playing *bool    `json:"playing,omitempty"`
	Tempo   float64  `json:"tempo,omitempty"`
	Address string   `json:"address,omitempty"`
	Value   *float64 `json:"value,omitempty"`
}

// Decode parses one datagram
func Decode(data []byte) (Packet, error) {
	var p Packet
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode datagram: %w", err)
	}
	if p.Address != "" && p.Value == nil {
		return p, fmt.Errorf("decode datagram: address %q without value", p.Address)
	}
	return p, nil
}

// Event converts the timing part of p. ok is false when p carries none.
// A position without a play state counts as playing.
func (p Packet) Event(at time.Time) (clock.Event, bool) {
	switch {
	case p.Beat != nil:
		playing := true
		if p.Playing != nil {
			playing = *p.Playing
		}
		return clock.Event{Kind: clock.Transport, At: at, Beat: *p.Beat, Playing: playing, Tempo: p.Tempo}, true
	case p.Playing != nil && *p.Playing:
		return clock.Event{Kind: clock.Continue, At: at}, true
	case p.Playing != nil:
		return clock.Event{Kind: clock.Stop, At: at}, true
	}
	return clock.Event{}, false
}

// Input converts the addressed value of p. Values are clamped to [0, 1].
func (p Packet) Input() (mapping.Input, bool) {
	if p.Address == "" || p.Value == nil {
		return mapping.Input{}, false
	}
	u := max(0, min(1, *p.Value))
	return mapping.Input{Address: mapping.Address{Path: p.Address}, Unit: u}, true
}

// Clock receives timing events
type Clock interface {
	Feed(ev clock.Event)
}

// Controls receives controller inputs
type Controls interface {
	Control(in mapping.Input)
}

// Server feeds datagrams to a clock and a control runtime
type Server struct {
	clock    Clock
	controls Controls
	log      *slog.Logger
}

func NewServer(clk Clock, controls Controls) *Server {
	return &Server{clock: clk, controls: controls, log: debug.For("transport")}
}

// Handle applies one datagram
func (s *Server) Handle(data []byte, at time.Time) error {
	p, err := Decode(data)
	if err != nil {
		return err
	}
	if ev, ok := p.Event(at); ok && s.clock != nil {
		s.clock.Feed(ev)
	}
	if in, ok := p.Input(); ok && s.controls != nil {
		s.controls.Control(in)
	}
	return nil
}

// ListenAndServe opens a UDP socket on addr and serves it until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	s.log.Info("listening", "addr", conn.LocalAddr().String())
	return s.Serve(ctx, conn)
}

// Serve reads datagrams from conn until ctx is done, then closes conn.
// Malformed datagrams are logged and skipped.
func (s *Server) Serve(ctx context.Context, conn *net.UDPConn) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("transport: read: %w", err)
		}
		if err := s.Handle(buf[:n], time.Now()); err != nil {
			s.log.Warn("bad datagram", "from", from.String(), "err", err)
		}
	}
}
