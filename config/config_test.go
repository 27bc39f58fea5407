package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func write(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.cue")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.cue"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FPS != 60 || cfg.Clock.Source != "frame" || cfg.Transition.Beats != 4 {
		t.Fatalf("got %+v", cfg)
	}
}

func TestLoadCue(t *testing.T) {
	path := write(t, `
script: "show.yaml"
clock: {
	source:    "hybrid"
	timeoutMs: 250
}
midi: inputs: ["iac", "nanokontrol"]
exclude: ["master"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Script != "show.yaml" || cfg.Clock.Source != "hybrid" {
		t.Fatalf("got %+v", cfg)
	}
	if cfg.ClockTimeout() != 250*time.Millisecond {
		t.Fatalf("timeout = %v", cfg.ClockTimeout())
	}
	if len(cfg.MIDI.Inputs) != 2 || !cfg.IsExcluded("master") {
		t.Fatalf("got %+v", cfg)
	}
	// not in the file
	if cfg.FPS != 60 || cfg.KeepSaves != 20 {
		t.Fatalf("defaults lost: fps=%d keep=%d", cfg.FPS, cfg.KeepSaves)
	}
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	for _, src := range []string{
		`colour: "red"`,
		`fps: "fast"`,
		`clock: source: "wallclock"`,
		`clock: tempo: 900`,
		`midi: highRes: first: 40`,
		`bridge: port: 80`,
	} {
		if _, err := Load(write(t, src)); err == nil {
			t.Errorf("Load(%s) succeeded", src)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Script = "/shows/main.yaml"
	cfg.MIDI.Inputs = []string{"*"}
	cfg.Transport.Listen = ":9000"

	path := filepath.Join(t.TempDir(), "sub", "config.cue")
	if err := cfg.SaveTo(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Script != cfg.Script || got.Transport.Listen != ":9000" || got.MIDI.Inputs[0] != "*" {
		t.Fatalf("got %+v", got)
	}
}

func TestScriptPath(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ScriptPath("flag.yaml"); got != "flag.yaml" {
		t.Fatalf("flag should win, got %q", got)
	}
	cfg.Script = "/abs/show.yaml"
	if got := cfg.ScriptPath(""); got != "/abs/show.yaml" {
		t.Fatalf("got %q", got)
	}
}
