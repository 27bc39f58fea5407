package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaSrc string

// ClockConfig selects the beat clock strategy
type ClockConfig struct {
	Source    string  `json:"source,omitempty"`
	Tempo     float64 `json:"tempo,omitempty"`
	TimeoutMs int     `json:"timeoutMs,omitempty"`
}

// TransitionConfig is the default snapshot/randomize transition
type TransitionConfig struct {
	Beats  float64 `json:"beats,omitempty"`
	Easing string  `json:"easing,omitempty"`
}

// HighResConfig reserves a CC range for 14-bit pairs (controller + 32)
type HighResConfig struct {
	Enabled bool `json:"enabled,omitempty"`
	First   int  `json:"first,omitempty"`
	Last    int  `json:"last,omitempty"`
}

// MIDIConfig selects which ports are opened
type MIDIConfig struct {
	Inputs    []string      `json:"inputs,omitempty"` // port name substrings, "*" for all
	Launchpad bool          `json:"launchpad"`
	HighRes   HighResConfig `json:"highRes,omitempty"`
}

// ListenConfig is a network listen address; empty disables the listener
type ListenConfig struct {
	Listen string `json:"listen,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Script     string           `json:"script,omitempty"`
	FPS        int              `json:"fps,omitempty"`
	StateDir   string           `json:"stateDir,omitempty"`
	KeepSaves  int              `json:"keepSaves,omitempty"`
	RecordDir  string           `json:"recordDir,omitempty"`
	Exclude    []string         `json:"exclude,omitempty"`
	Debug      bool             `json:"debug,omitempty"`
	LogLevel   string           `json:"logLevel,omitempty"`
	Clock      ClockConfig      `json:"clock"`
	Transition TransitionConfig `json:"transition"`
	MIDI       MIDIConfig       `json:"midi"`
	Bridge     ListenConfig     `json:"bridge"`
	Transport  ListenConfig     `json:"transport"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		FPS:       60,
		KeepSaves: 20,
		LogLevel:  "info",
		Clock: ClockConfig{
			Source:    "frame",
			Tempo:     120,
			TimeoutMs: 500,
		},
		Transition: TransitionConfig{
			Beats:  4,
			Easing: "sine-in-out",
		},
		MIDI: MIDIConfig{
			Launchpad: true,
			HighRes:   HighResConfig{First: 0, Last: 31},
		},
		Bridge: ListenConfig{Listen: "127.0.0.1:7447"},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-vjctl"), nil
}

// ConfigPath returns the full path to config.cue
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.cue"), nil
}

// Load reads the config at path (ConfigPath when empty), or returns
// defaults if the file does not exist. The file is CUE (JSON is valid CUE)
// and must satisfy the embedded schema; fields it leaves out keep their
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return DefaultConfig(), nil
		}
		path = p
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	return Parse(path, content)
}

// Parse validates CUE source against the schema and decodes it over the
// defaults. filename is used in error positions.
func Parse(filename string, content []byte) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString("close({" + schemaSrc + "})")
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}

	value := ctx.CompileBytes(content, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("config %s: %w", filename, err)
	}
	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("config %s: %w", filename, err)
	}

	cfg := DefaultConfig()
	if err := unified.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", filename, err)
	}
	return cfg, nil
}

// Save writes the config to ConfigPath as JSON
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path as JSON
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ClockTimeout is the silence after which an external clock degrades
func (c *Config) ClockTimeout() time.Duration {
	return time.Duration(c.Clock.TimeoutMs) * time.Millisecond
}

// ScriptPath resolves the script to load: the flag value wins, then the
// config file entry. Relative config entries are resolved against the
// config directory.
func (c *Config) ScriptPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if c.Script == "" || filepath.IsAbs(c.Script) {
		return c.Script
	}
	dir, err := ConfigDir()
	if err != nil {
		return c.Script
	}
	return filepath.Join(dir, c.Script)
}

// IsExcluded reports whether a control is excluded from randomize by config
func (c *Config) IsExcluded(name string) bool {
	for _, n := range c.Exclude {
		if n == name {
			return true
		}
	}
	return false
}
