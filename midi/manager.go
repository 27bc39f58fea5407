package midi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-vjctl/debug"
)

// ErrScanTimeout means the driver did not list its ports in time. CoreMIDI
// hangs this way until its daemons are restarted.
var ErrScanTimeout = errors.New("midi port scan timed out")

// Ports is one listing of the system's MIDI ports
type Ports struct {
	Ins  []drivers.In
	Outs []drivers.Out
}

// ListPorts lists ports, giving up after timeout
func ListPorts(timeout time.Duration) (Ports, error) {
	ch := make(chan Ports, 1)
	go func() {
		ch <- Ports{Ins: gomidi.GetInPorts(), Outs: gomidi.GetOutPorts()}
	}()
	select {
	case p := <-ch:
		return p, nil
	case <-time.After(timeout):
		return Ports{}, ErrScanTimeout
	}
}

// Out returns the output port named like an input, or nil
func (p Ports) Out(name string) drivers.Out {
	for _, out := range p.Outs {
		if strings.EqualFold(out.String(), name) {
			return out
		}
	}
	return nil
}

// DeviceEvent reports a port opened or lost. Controller is nil on
// disconnect.
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// Options selects which ports the DeviceManager opens
type Options struct {
	// Inputs are case-insensitive substrings of input port names to open
	// as clock/controller inputs; "*" opens every non-Launchpad port
	Inputs    []string
	HighRes   HighResRange
	Sink      Sink
	Launchpad bool // open Launchpads as snapshot surfaces
}

// DeviceManager polls for ports, opening matching ones as they appear and
// closing them when they vanish.
type DeviceManager struct {
	opts     Options
	pollRate time.Duration

	mu     sync.Mutex
	open   map[string]Controller
	events chan DeviceEvent
}

func NewDeviceManager(opts Options) *DeviceManager {
	return &DeviceManager{
		opts:     opts,
		pollRate: time.Second,
		open:     make(map[string]Controller),
		events:   make(chan DeviceEvent, 16),
	}
}

// Events is closed when Run returns
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Run polls until ctx is done, then closes every open port
func (dm *DeviceManager) Run(ctx context.Context) {
	defer close(dm.events)
	defer dm.closeAll()

	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()
	for {
		dm.scan(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// wants reports whether a port should be opened, and as what
func (dm *DeviceManager) wants(name string) (want, launchpad bool) {
	if isLaunchpad(name) {
		return dm.opts.Launchpad, true
	}
	return matchPort(name, dm.opts.Inputs), false
}

func (dm *DeviceManager) scan(ctx context.Context) {
	ports, err := ListPorts(3 * time.Second)
	if err != nil {
		debug.Log("midi", "%v", err)
		return
	}

	present := make(map[string]bool, len(ports.Ins))
	for _, in := range ports.Ins {
		id := in.String()
		want, lp := dm.wants(id)
		if !want {
			continue
		}
		present[id] = true
		if dm.isOpen(id) {
			continue
		}
		c, err := dm.openPort(id, in, ports, lp)
		if err != nil {
			debug.Log("midi", "open %s: %v", id, err)
			continue
		}
		debug.Log("midi", "connected %s (%s)", id, c.Type())
		dm.send(ctx, DeviceEvent{Type: DeviceConnected, Controller: c, ID: id})
	}

	for _, id := range dm.dropMissing(present) {
		debug.Log("midi", "disconnected %s", id)
		dm.send(ctx, DeviceEvent{Type: DeviceDisconnected, ID: id})
	}
}

func (dm *DeviceManager) isOpen(id string) bool {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	_, ok := dm.open[id]
	return ok
}

func (dm *DeviceManager) openPort(id string, in drivers.In, ports Ports, launchpad bool) (Controller, error) {
	var c Controller
	var err error
	if launchpad {
		c, err = NewLaunchpadController(id, in, ports.Out(id))
	} else {
		c, err = NewInputController(id, in, dm.opts.HighRes, dm.opts.Sink)
	}
	if err != nil {
		return nil, err
	}
	dm.mu.Lock()
	dm.open[id] = c
	dm.mu.Unlock()
	return c, nil
}

// dropMissing closes open ports that are no longer listed
func (dm *DeviceManager) dropMissing(present map[string]bool) []string {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	var gone []string
	for id, c := range dm.open {
		if present[id] {
			continue
		}
		c.Close()
		delete(dm.open, id)
		gone = append(gone, id)
	}
	return gone
}

func (dm *DeviceManager) send(ctx context.Context, ev DeviceEvent) {
	select {
	case dm.events <- ev:
	case <-ctx.Done():
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for id, c := range dm.open {
		c.Close()
		delete(dm.open, id)
	}
}

func isLaunchpad(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "launchpad") && strings.Contains(name, "midi")
}

// matchPort reports whether a port name matches one of the patterns
func matchPort(name string, patterns []string) bool {
	name = strings.ToLower(name)
	for _, p := range patterns {
		if p == "*" || (p != "" && strings.Contains(name, strings.ToLower(p))) {
			return true
		}
	}
	return false
}
