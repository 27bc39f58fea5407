package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-vjctl/debug"
)

// setup puts a Launchpad X in programmer mode at full brightness with
// host-driven LEDs. Each is the body of an F0 00 20 29 02 0C ... F7 sysex.
var setup = [][]byte{
	{0x00, 0x20, 0x29, 0x02, 0x0C, 0x00, 0x7F},       // programmer mode
	{0x00, 0x20, 0x29, 0x02, 0x0C, 0x08, 0x7F},       // brightness
	{0x00, 0x20, 0x29, 0x02, 0x0C, 0x0A, 0x01, 0x01}, // external LED feedback
}

// LaunchpadController is a Novation Launchpad X used as a pad surface
type LaunchpadController struct {
	id       string
	outPort  drivers.Out
	inPort   drivers.In
	send     func(msg gomidi.Message) error
	stopFunc func()

	padChan chan PadEvent
}

// NewLaunchpadController creates and configures a Launchpad
func NewLaunchpadController(id string, inPort drivers.In, outPort drivers.Out) (*LaunchpadController, error) {
	lp := &LaunchpadController{
		id:      id,
		inPort:  inPort,
		outPort: outPort,
		padChan: make(chan PadEvent, 32),
	}

	if outPort != nil {
		send, err := gomidi.SendTo(outPort)
		if err != nil {
			return nil, fmt.Errorf("open output: %w", err)
		}
		lp.send = send
		for _, body := range setup {
			if err := send(gomidi.SysEx(body)); err != nil {
				return nil, fmt.Errorf("launchpad setup: %w", err)
			}
		}
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			var channel, note, velocity uint8
			var cc, value uint8

			// 8x8 grid + side buttons
			if msg.GetNoteOn(&channel, &note, &velocity) && velocity > 0 {
				if row, col := noteToRowCol(note); row >= 0 {
					lp.pad(PadEvent{Row: row, Col: col, Velocity: velocity})
				}
			}

			// top row buttons CC 91-98
			if msg.GetControlChange(&channel, &cc, &value) && value > 0 {
				if row, col := ccToRowCol(cc); row >= 0 {
					lp.pad(PadEvent{Row: row, Col: col, Velocity: value})
				}
			}
		})
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		lp.stopFunc = stop
	}

	return lp, nil
}

func (lp *LaunchpadController) pad(ev PadEvent) {
	select {
	case lp.padChan <- ev:
	default:
		debug.Log("launchpad", "pad event dropped row=%d col=%d", ev.Row, ev.Col)
	}
}

func (lp *LaunchpadController) ID() string {
	return lp.id
}

func (lp *LaunchpadController) Type() ControllerType {
	return ControllerLaunchpad
}

func (lp *LaunchpadController) PadEvents() <-chan PadEvent {
	return lp.padChan
}

func (lp *LaunchpadController) SetLED(row, col int, color uint8, channel uint8) error {
	if lp.send == nil {
		return nil
	}
	return lp.send(gomidi.NoteOn(channel, rowColToNote(row, col), color))
}

// SetLEDBatch sends one note-on per update; the first failure stops the
// batch
func (lp *LaunchpadController) SetLEDBatch(updates []LEDUpdate) error {
	if lp.send == nil || len(updates) == 0 {
		return nil
	}

	for _, u := range updates {
		if err := lp.send(gomidi.NoteOn(u.Channel, rowColToNote(u.Row, u.Col), u.Color)); err != nil {
			return err
		}
	}
	return nil
}

// ClearLEDs turns off every pad
func (lp *LaunchpadController) ClearLEDs() error {
	var updates []LEDUpdate
	for row := 0; row < 9; row++ {
		for col := 0; col < 9; col++ {
			if row == 8 && col == 8 {
				continue // no LED at 8,8
			}
			updates = append(updates, LEDUpdate{Row: row, Col: col, Color: ColorOff})
		}
	}
	return lp.SetLEDBatch(updates)
}

func (lp *LaunchpadController) Close() error {
	lp.ClearLEDs()
	if lp.stopFunc != nil {
		lp.stopFunc()
	}
	close(lp.padChan)
	return nil
}

// Launchpad X note mapping
// 8x8 Grid:  Row 0 (bottom) = notes 11-18, Row 7 = notes 81-88
// Side col:  Col 8 (right side scene buttons) = notes 19, 29, 39, 49, 59, 69, 79, 89
// Top row:   Row 8 (top control row) = CC 91-98 (handled via CC messages)

func rowColToNote(row, col int) uint8 {
	// Top row uses CC, but for LED control we use notes 91-98
	if row == 8 {
		return uint8(91 + col)
	}
	return uint8((row+1)*10 + col + 1)
}

func noteToRowCol(note uint8) (row, col int) {
	if note >= 91 && note <= 98 {
		return 8, int(note - 91)
	}
	row = int(note/10) - 1
	col = int(note%10) - 1
	// 8x8 grid (rows 0-7, cols 0-7) plus side column (col 8)
	if row < 0 || row > 7 || col < 0 || col > 8 {
		return -1, -1
	}
	return row, col
}

// ccToRowCol converts CC messages to row/col (for top row buttons)
func ccToRowCol(cc uint8) (row, col int) {
	if cc >= 91 && cc <= 98 {
		return 8, int(cc - 91)
	}
	return -1, -1
}
