package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"go-vjctl/app"
	"go-vjctl/config"
	"go-vjctl/debug"
	"go-vjctl/theme"
	"go-vjctl/tui"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/go-vjctl/config.cue)")
	scriptPath := flag.String("script", "", "script to load (overrides the config)")
	debugLog := flag.Bool("debug", false, "write a debug log next to the config")
	headless := flag.Bool("headless", false, "run without the terminal panel")
	noMIDI := flag.Bool("no-midi", false, "do not open MIDI ports")
	palette := flag.String("palette", "", "GIMP palette for the panel")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *debugLog || cfg.Debug {
		if err := enableDebug(cfg, *debugLog); err != nil {
			fmt.Fprintf(os.Stderr, "Error: debug log: %v\n", err)
		}
	}

	a, err := app.New(app.Options{
		Config: cfg,
		Script: cfg.ScriptPath(*scriptPath),
		NoMIDI: *noMIDI,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a.Start(ctx)
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	if *headless {
		<-ctx.Done()
	} else {
		pipe := a.Hub.Attach()
		th := theme.New(theme.LoadGPLOr(*palette))
		p := tea.NewProgram(tui.NewModel(pipe, th), tea.WithAltScreen())
		go func() {
			<-ctx.Done()
			p.Quit()
		}()
		if _, err := p.Run(); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
		pipe.Close()
		cancel()
	}

	<-done
	a.Close()
}

// enableDebug starts the file log. The -debug flag logs everything; a
// config-enabled log uses the configured level.
func enableDebug(cfg *config.Config, verbose bool) error {
	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	if err := debug.Enable(filepath.Join(dir, "debug.log")); err != nil {
		return err
	}
	level := slog.LevelDebug
	if !verbose && cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return fmt.Errorf("log level: %w", err)
		}
	}
	debug.SetLevel(level)
	return nil
}
