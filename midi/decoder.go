package midi

import (
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-vjctl/clock"
	"go-vjctl/mapping"
)

// mtcRates are the frame rates of the MTC rate code
var mtcRates = [4]float64{24, 25, 29.97, 30}

// Decoded is what one MIDI message turned into
type Decoded struct {
	Event    clock.Event
	HasEvent bool
	Input    mapping.Input
	HasInput bool
}

// Decoder turns raw messages from one input port into clock events and
// controller inputs. It keeps the state needed for 14-bit CC pairs and
// MTC quarter frames, so use one Decoder per port.
type Decoder struct {
	device  string
	highRes HighResRange

	msb map[[2]uint8]uint8 // (channel, controller) -> last MSB

	quarters [8]uint8
	seen     uint8 // bitmask of received quarter-frame pieces
}

func NewDecoder(device string, highRes HighResRange) *Decoder {
	return &Decoder{
		device:  device,
		highRes: highRes,
		msb:     make(map[[2]uint8]uint8),
	}
}

// Decode interprets msg received at at
func (d *Decoder) Decode(msg gomidi.Message, at time.Time) (Decoded, bool) {
	var ch, cc, value, qf uint8
	var spp uint16
	var sysex []byte

	switch {
	case msg.Is(gomidi.TimingClockMsg):
		return event(clock.Event{Kind: clock.Pulse, At: at})
	case msg.Is(gomidi.StartMsg):
		d.seen = 0
		return event(clock.Event{Kind: clock.Start, At: at})
	case msg.Is(gomidi.ContinueMsg):
		return event(clock.Event{Kind: clock.Continue, At: at})
	case msg.Is(gomidi.StopMsg):
		return event(clock.Event{Kind: clock.Stop, At: at})
	case msg.GetSPP(&spp):
		// GetSPP takes the first data byte as the MSB; on the wire it is
		// the LSB. The pointer counts sixteenth notes.
		spp = spp>>7 | (spp&0x7F)<<7
		return event(clock.Event{Kind: clock.SongPosition, At: at, Beat: float64(spp) / 4})
	case msg.GetMTC(&qf):
		return d.quarterFrame(qf, at)
	case msg.GetSysEx(&sysex):
		return d.fullFrame(sysex, at)
	case msg.GetControlChange(&ch, &cc, &value):
		return d.controlChange(ch, cc, value)
	}
	return Decoded{}, false
}

func event(ev clock.Event) (Decoded, bool) {
	return Decoded{Event: ev, HasEvent: true}, true
}

// controlChange handles 7-bit CCs and the two halves of 14-bit pairs. An
// MSB alone moves the control with a zero LSB; the following LSB refines
// it.
func (d *Decoder) controlChange(ch, cc, value uint8) (Decoded, bool) {
	addr := mapping.Address{Device: d.device, Channel: ch, Controller: cc}
	switch {
	case d.highRes.Contains(cc):
		d.msb[[2]uint8{ch, cc}] = value
		addr.HighRes = true
		return input(addr, float64(int(value)<<7)/16383)
	case cc >= 32 && cc < 64 && d.highRes.Contains(cc-32):
		msb := d.msb[[2]uint8{ch, cc - 32}]
		addr.Controller = cc - 32
		addr.HighRes = true
		return input(addr, float64(int(msb)<<7|int(value))/16383)
	}
	return input(addr, float64(value)/127)
}

func input(addr mapping.Address, unit float64) (Decoded, bool) {
	return Decoded{Input: mapping.Input{Address: addr, Unit: unit}, HasInput: true}, true
}

// quarterFrame collects the eight MTC pieces. A position is produced when
// piece 7 completes a full set; it describes the time two frames ago.
func (d *Decoder) quarterFrame(data uint8, at time.Time) (Decoded, bool) {
	piece := (data >> 4) & 0x07
	d.quarters[piece] = data & 0x0F
	d.seen |= 1 << piece
	if piece != 7 || d.seen != 0xFF {
		return Decoded{}, false
	}
	d.seen = 0
	q := d.quarters
	frames := int(q[0] | q[1]<<4)
	seconds := int(q[2] | q[3]<<4)
	minutes := int(q[4] | q[5]<<4)
	hours := int(q[6] | (q[7]&0x01)<<4)
	fps := mtcRates[(q[7]>>1)&0x03]
	return event(clock.Event{
		Kind:    clock.TimeCode,
		At:      at,
		Seconds: timecode(hours, minutes, seconds, float64(frames)+2, fps),
	})
}

// fullFrame decodes the body of the MTC full-frame sysex:
// 7F <device> 01 01 hh mm ss ff
func (d *Decoder) fullFrame(body []byte, at time.Time) (Decoded, bool) {
	if len(body) < 8 || body[0] != 0x7F || body[2] != 0x01 || body[3] != 0x01 {
		return Decoded{}, false
	}
	hh := body[4]
	fps := mtcRates[(hh>>5)&0x03]
	d.seen = 0
	return event(clock.Event{
		Kind:    clock.TimeCode,
		At:      at,
		Seconds: timecode(int(hh&0x1F), int(body[5]&0x3F), int(body[6]&0x3F), float64(body[7]&0x1F), fps),
	})
}

func timecode(h, m, s int, frames, fps float64) float64 {
	return float64(h*3600+m*60+s) + frames/fps
}
