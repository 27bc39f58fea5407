package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-vjctl/clock"
	"go-vjctl/mapping"
	vjmidi "go-vjctl/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "monitor":
		monitor(arg(2))
	case "clock":
		followClock(arg(2))
	case "leds":
		testLEDs()
	default:
		usage()
	}
}

func arg(i int) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return ""
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list            - List all MIDI ports")
	fmt.Println("  monitor <port>  - Print decoded controller and timing input")
	fmt.Println("  clock <port>    - Follow a MIDI clock and print beat and tempo")
	fmt.Println("  leds            - Show the snapshot slot layout on a Launchpad")
}

// getPorts lists ports, explaining the usual CoreMIDI hang on timeout
func getPorts() (vjmidi.Ports, bool) {
	ports, err := vjmidi.ListPorts(3 * time.Second)
	if errors.Is(err, vjmidi.ErrScanTimeout) {
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return ports, false
	}
	return ports, err == nil
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	r, ok := getPorts()
	if !ok {
		return
	}
	for i, p := range r.Ins {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, p := range r.Outs {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
}

func findIn(pattern string) drivers.In {
	r, ok := getPorts()
	if !ok {
		return nil
	}
	pattern = strings.ToLower(pattern)
	for _, p := range r.Ins {
		if strings.Contains(strings.ToLower(p.String()), pattern) {
			return p
		}
	}
	fmt.Printf("No input port matching %q\n", pattern)
	return nil
}

func waitForInterrupt() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
}

// printer prints everything an input port decodes
type printer struct{}

func (printer) Feed(ev clock.Event) {
	switch ev.Kind {
	case clock.Pulse:
		return
	case clock.SongPosition:
		fmt.Printf("%-14s beat %.2f\n", ev.Kind, ev.Beat)
	case clock.TimeCode:
		fmt.Printf("%-14s %.3fs\n", ev.Kind, ev.Seconds)
	default:
		fmt.Printf("%s\n", ev.Kind)
	}
}

func (printer) Control(in mapping.Input) {
	fmt.Printf("%-14s %-28s %.4f\n", "control", in.Address, in.Unit)
}

func monitor(pattern string) {
	in := findIn(pattern)
	if in == nil {
		return
	}
	ic, err := vjmidi.NewInputController(in.String(), in, vjmidi.HighResRange{First: 0, Last: 31, On: true}, printer{})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer ic.Close()

	fmt.Printf("Monitoring %s (ctrl+c to stop)\n", in.String())
	waitForInterrupt()
}

func followClock(pattern string) {
	in := findIn(pattern)
	if in == nil {
		return
	}
	clk := clock.NewExternal(120, 500*time.Millisecond)
	ic, err := vjmidi.NewInputController(in.String(), in, vjmidi.HighResRange{}, vjmidi.Route{Clock: clk})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer ic.Close()

	fmt.Printf("Following %s (ctrl+c to stop)\n", in.String())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	frame := time.NewTicker(time.Second / 60)
	defer frame.Stop()
	report := time.NewTicker(250 * time.Millisecond)
	defer report.Stop()
	last := time.Now()
	for {
		select {
		case <-sig:
			return
		case now := <-frame.C:
			clk.Advance(now.Sub(last))
			last = now
		case <-report.C:
			st := clk.Status()
			fmt.Printf("\rbeat %8.2f  %6.1f bpm  playing=%-5v degraded=%-5v", clk.Beat(), clk.Tempo(), st.Playing, st.Degraded)
		}
	}
}

func testLEDs() {
	r, ok := getPorts()
	if !ok {
		return
	}

	var inPort drivers.In
	var outPort drivers.Out
	for _, p := range r.Ins {
		name := strings.ToLower(p.String())
		if strings.Contains(name, "launchpad") && strings.Contains(name, "midi") {
			inPort = p
			break
		}
	}
	for _, p := range r.Outs {
		name := strings.ToLower(p.String())
		if strings.Contains(name, "launchpad") && strings.Contains(name, "midi") {
			outPort = p
			break
		}
	}
	if inPort == nil || outPort == nil {
		fmt.Println("No Launchpad found")
		return
	}

	lp, err := vjmidi.NewLaunchpadController(inPort.String(), inPort, outPort)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer lp.Close()

	// slots 0-9 on the bottom two rows, the store button top left
	var updates []vjmidi.LEDUpdate
	for slot := 0; slot < 10; slot++ {
		updates = append(updates, vjmidi.LEDUpdate{Row: slot / 5, Col: slot % 5, Color: vjmidi.ColorGreen, Channel: vjmidi.ChannelStatic})
	}
	updates = append(updates, vjmidi.LEDUpdate{Row: 8, Col: 0, Color: vjmidi.ColorRed, Channel: vjmidi.ChannelPulse})
	if err := lp.SetLEDBatch(updates); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("Press pads to see events, Enter to clear...")
	go func() {
		for ev := range lp.PadEvents() {
			fmt.Printf("pad row=%d col=%d velocity=%d\n", ev.Row, ev.Col, ev.Velocity)
		}
	}()
	fmt.Scanln()
}
