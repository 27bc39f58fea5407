// Package app wires the runtime from a config: clock, control manager,
// persistence, recorder, panel hub, MIDI devices and the transport listener.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"go-vjctl/automation"
	"go-vjctl/bridge"
	"go-vjctl/clock"
	"go-vjctl/config"
	"go-vjctl/control"
	"go-vjctl/debug"
	"go-vjctl/midi"
	"go-vjctl/record"
	"go-vjctl/script"
	"go-vjctl/store"
	"go-vjctl/transport"
)

// Options selects what New starts besides the runtime itself
type Options struct {
	Config *config.Config
	Script string // resolved script path; empty runs an empty graph
	NoMIDI bool
}

// App is a wired runtime. Manager must be ticked by exactly one goroutine:
// either Run or the caller's own frame loop.
type App struct {
	Config  *config.Config
	Manager *control.Manager
	Hub     *bridge.Hub
	Clock   clock.Clock
	Store   *store.Store

	script  string
	saver   *store.Saver
	noMIDI  bool
	log     *slog.Logger
	wg      sync.WaitGroup
	startup []script.Diagnostic
}

func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	a := &App{
		Config: cfg,
		script: opts.Script,
		noMIDI: opts.NoMIDI,
		log:    debug.For("app"),
	}

	clk, err := clock.New(clock.Source(cfg.Clock.Source), cfg.Clock.Tempo, cfg.FPS, cfg.ClockTimeout())
	if err != nil {
		return nil, err
	}
	a.Clock = clk

	easing, err := automation.ParseEasing(cfg.Transition.Easing)
	if err != nil {
		return nil, fmt.Errorf("config transition: %w", err)
	}

	a.Store, err = store.Open(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	a.Store.SetKeep(cfg.KeepSaves)

	doc, saved := a.loadScript()

	a.Hub = bridge.NewHub(debug.For("bridge"))

	// the recorder and saver report back into the manager, which does not
	// exist yet when they are built
	var m *control.Manager
	a.saver = store.NewSaver(a.Store, func(id string, err error) {
		a.log.Error("save failed", "script", id, "err", err)
		if m != nil {
			m.Report(script.Errorf("", "save failed: %v", err))
		}
	})
	recorder := record.New(recordDir(cfg), func(st record.Status) {
		if m != nil {
			m.RecordingDone(st)
		}
	})

	m, err = control.New(doc, saved, control.Options{
		Clock:           clk,
		Sink:            a.Hub,
		Saver:           a.saver,
		Recorder:        recorder,
		TransitionBeats: cfg.Transition.Beats,
		Easing:          easing,
		Exclude:         cfg.Exclude,
	})
	if err != nil {
		return nil, err
	}
	a.Manager = m
	a.Hub.OnConnect(m.SyncMessages)
	for _, d := range a.startup {
		m.Report(d)
	}
	return a, nil
}

// loadScript reads the script and its newest save. A script that does not
// parse starts as an empty graph under its own ID so the watcher can
// replace it once fixed.
func (a *App) loadScript() (*script.Document, *store.State) {
	if a.script == "" {
		return nil, nil
	}
	doc, err := script.Load(a.script)
	if err != nil {
		a.log.Error("load script", "script", a.script, "err", err)
		a.startup = append(a.startup, script.Errorf("", "%v", err))
		doc = &script.Document{ID: script.ID(a.script)}
	}
	saved, err := a.Store.Load(doc.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNoSaves) {
			a.log.Warn("load saved state", "script", doc.ID, "err", err)
			a.startup = append(a.startup, script.Warnf("", "saved state not loaded: %v", err))
		}
		saved = nil
	}
	return doc, saved
}

func recordDir(cfg *config.Config) string {
	if cfg.RecordDir != "" {
		return cfg.RecordDir
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return "recordings"
	}
	return filepath.Join(dir, "recordings")
}

func (a *App) spawn(name string, fn func() error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := fn(); err != nil {
			a.log.Error(name, "err", err)
			a.Manager.Report(script.Errorf("", "%s: %v", name, err))
		}
	}()
}

// Start runs the background services until ctx is done. It does not tick
// the manager.
func (a *App) Start(ctx context.Context) {
	a.spawn("saver", func() error { a.saver.Run(ctx); return nil })
	a.spawn("panel inbox", func() error { a.Manager.Serve(ctx, a.Hub.Inbound()); return nil })

	if addr := a.Config.Bridge.Listen; addr != "" {
		a.spawn("panel listener", func() error { return a.Hub.ListenAndServe(ctx, addr) })
	}
	if addr := a.Config.Transport.Listen; addr != "" {
		srv := transport.NewServer(a.Clock, a.Manager)
		a.spawn("transport listener", func() error { return srv.ListenAndServe(ctx, addr) })
	}
	if a.script != "" {
		a.spawn("script watcher", func() error { return a.Manager.Watch(ctx, a.script, control.DefaultDebounce) })
	}
	if !a.noMIDI {
		a.startMIDI(ctx)
	}
}

func (a *App) startMIDI(ctx context.Context) {
	cfg := a.Config.MIDI
	devices := midi.NewDeviceManager(midi.Options{
		Inputs: cfg.Inputs,
		HighRes: midi.HighResRange{
			First: uint8(cfg.HighRes.First),
			Last:  uint8(cfg.HighRes.Last),
			On:    cfg.HighRes.Enabled,
		},
		Sink:      midi.Route{Clock: a.Clock, Controls: a.Manager},
		Launchpad: cfg.Launchpad,
	})
	a.spawn("midi devices", func() error { devices.Run(ctx); return nil })
	a.spawn("launchpad surfaces", func() error { a.surfaces(ctx, devices.Events()); return nil })
}

// surfaces attaches a snapshot surface to every Launchpad that connects
func (a *App) surfaces(ctx context.Context, events <-chan midi.DeviceEvent) {
	stops := make(map[string]context.CancelFunc)
	defer func() {
		for _, stop := range stops {
			stop()
		}
	}()
	for ev := range events {
		switch ev.Type {
		case midi.DeviceConnected:
			if ev.Controller.Type() != midi.ControllerLaunchpad {
				continue
			}
			sctx, stop := context.WithCancel(ctx)
			stops[ev.ID] = stop
			pipe := a.Hub.Attach()
			surface := midi.NewSurface(pipe, ev.Controller)
			go func() {
				defer pipe.Close()
				surface.Run(sctx)
			}()
		case midi.DeviceDisconnected:
			if stop, ok := stops[ev.ID]; ok {
				stop()
				delete(stops, ev.ID)
			}
		}
	}
}

// Run ticks the manager at the configured frame rate until ctx is done
func (a *App) Run(ctx context.Context) {
	a.Manager.Run(ctx, a.Config.FPS)
}

// Close waits for the services started by Start and writes any pending
// save. Call it after ctx is done and the manager has stopped ticking.
func (a *App) Close() {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		a.log.Warn("services did not stop in time")
	}
	a.saver.Flush()
}
