package midi

import (
	"context"
	"slices"

	"go-vjctl/bridge"
	"go-vjctl/debug"
	"go-vjctl/snapshot"
)

// Surface layout: slots 0-4 on the bottom row, 5-9 on the row above.
// The first top-row button arms a store; the next slot pad stores instead
// of recalling.
const (
	slotsPerRow = 5
	storeRow    = 8
	storeCol    = 0
)

func slotPad(slot int) (row, col int) {
	return slot / slotsPerRow, slot % slotsPerRow
}

func padSlot(row, col int) (int, bool) {
	if row < 0 || row > 1 || col < 0 || col >= slotsPerRow {
		return 0, false
	}
	slot := row*slotsPerRow + col
	return slot, slot < snapshot.Slots
}

// Panel is the bridge client side the surface talks through
type Panel interface {
	Messages() <-chan bridge.Message
	Send(m bridge.Message)
}

// Surface shows the snapshot slots on a Launchpad and turns pad presses
// into snapshot recall and store messages
type Surface struct {
	panel Panel
	pad   Controller

	occupied []int
	recalled int // last slot recalled from the pad, -1 for none
	armed    bool
	lit      map[[2]int]LEDUpdate
}

func NewSurface(panel Panel, pad Controller) *Surface {
	return &Surface{
		panel:    panel,
		pad:      pad,
		recalled: -1,
		lit:      make(map[[2]int]LEDUpdate),
	}
}

// Run serves the surface until ctx is done, the panel closes or the pad is
// disconnected
func (s *Surface) Run(ctx context.Context) {
	s.render()
	pads := s.pad.PadEvents()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.panel.Messages():
			if !ok {
				return
			}
			s.message(msg)
		case ev, ok := <-pads:
			if !ok {
				return
			}
			s.press(ev)
		}
	}
}

func (s *Surface) message(msg bridge.Message) {
	if msg.Tag != bridge.TagSnapshots {
		return
	}
	p, err := bridge.Decode[bridge.SnapshotsPayload](msg)
	if err != nil {
		debug.Log("surface", "bad snapshots message: %v", err)
		return
	}
	s.occupied = p.Occupied
	if !slices.Contains(s.occupied, s.recalled) {
		s.recalled = -1
	}
	s.render()
}

func (s *Surface) press(ev PadEvent) {
	if ev.Row == storeRow && ev.Col == storeCol {
		s.armed = !s.armed
		s.render()
		return
	}
	slot, ok := padSlot(ev.Row, ev.Col)
	if !ok {
		return
	}
	if s.armed {
		s.armed = false
		s.panel.Send(bridge.Must(bridge.TagSnapshotStore, bridge.SlotPayload{Slot: slot}))
		s.render()
		return
	}
	if !slices.Contains(s.occupied, slot) {
		return
	}
	s.recalled = slot
	s.panel.Send(bridge.Must(bridge.TagSnapshotRecall, bridge.SlotPayload{Slot: slot}))
	s.render()
}

// render sends only the pads whose color changed
func (s *Surface) render() {
	var updates []LEDUpdate
	set := func(u LEDUpdate) {
		key := [2]int{u.Row, u.Col}
		if prev, ok := s.lit[key]; ok && prev == u {
			return
		}
		s.lit[key] = u
		updates = append(updates, u)
	}

	for slot := 0; slot < snapshot.Slots; slot++ {
		row, col := slotPad(slot)
		u := LEDUpdate{Row: row, Col: col, Color: ColorOff, Channel: ChannelStatic}
		switch {
		case s.armed:
			u.Color = ColorDimRed
		case slot == s.recalled:
			u.Color, u.Channel = ColorBrightGreen, ChannelPulse
		case slices.Contains(s.occupied, slot):
			u.Color = ColorGreen
		}
		set(u)
	}
	store := LEDUpdate{Row: storeRow, Col: storeCol, Color: ColorDimRed, Channel: ChannelStatic}
	if s.armed {
		store.Color, store.Channel = ColorRed, ChannelPulse
	}
	set(store)

	if err := s.pad.SetLEDBatch(updates); err != nil {
		debug.Log("surface", "led update: %v", err)
	}
}
