package midi

import (
	"fmt"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-vjctl/clock"
	"go-vjctl/debug"
	"go-vjctl/mapping"
)

// Sink receives what input ports decode. Both methods are called from the
// driver's listener goroutine and must not block.
type Sink interface {
	Feed(ev clock.Event)
	Control(in mapping.Input)
}

// Route is a Sink sending timing to a clock and inputs to a control runtime
type Route struct {
	Clock    interface{ Feed(clock.Event) }
	Controls interface{ Control(mapping.Input) }
}

func (r Route) Feed(ev clock.Event) {
	if r.Clock != nil {
		r.Clock.Feed(ev)
	}
}

func (r Route) Control(in mapping.Input) {
	if r.Controls != nil {
		r.Controls.Control(in)
	}
}

// InputController is a plain input port: clock source, fader box, keyboard
type InputController struct {
	id       string
	inPort   drivers.In
	stopFunc func()
}

// NewInputController listens on inPort and forwards decoded messages to
// sink. Timing and sysex are enabled so clock and MTC arrive.
func NewInputController(id string, inPort drivers.In, highRes HighResRange, sink Sink) (*InputController, error) {
	ic := &InputController{id: id, inPort: inPort}
	dec := NewDecoder(id, highRes)
	stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
		d, ok := dec.Decode(msg, time.Now())
		if !ok {
			return
		}
		if d.HasEvent {
			sink.Feed(d.Event)
		}
		if d.HasInput {
			debug.LogEvery(64, "midi", "%s = %.3f", d.Input.Address, d.Input.Unit)
			sink.Control(d.Input)
		}
	}, gomidi.UseTimeCode(), gomidi.UseSysEx(), gomidi.HandleError(func(err error) {
		debug.Log("midi", "listener error on %s: %v", id, err)
	}))
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	ic.stopFunc = stop
	return ic, nil
}

func (ic *InputController) ID() string {
	return ic.id
}

func (ic *InputController) Type() ControllerType {
	return ControllerInput
}

// PadEvents is nil: plain inputs have no grid
func (ic *InputController) PadEvents() <-chan PadEvent {
	return nil
}

// SetLED is a no-op for inputs (no visual feedback)
func (ic *InputController) SetLED(row, col int, color uint8, channel uint8) error {
	return nil
}

func (ic *InputController) SetLEDBatch(updates []LEDUpdate) error {
	return nil
}

func (ic *InputController) ClearLEDs() error {
	return nil
}

func (ic *InputController) Close() error {
	if ic.stopFunc != nil {
		ic.stopFunc()
	}
	return nil
}
