// Package store persists per-script control state as timestamped JSON
// saves, one directory per script.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go-vjctl/mapping"
	"go-vjctl/param"
	"go-vjctl/snapshot"
)

const (
	timestampFormat = "2006-01-02_15-04-05.000"
	timestampLen    = len(timestampFormat)
	// DefaultKeep is how many saves are kept per script
	DefaultKeep = 20
)

var ErrNoSaves = errors.New("no saves")

// State is everything persisted for one script
type State struct {
	Script    string                 `json:"script"`
	Values    map[string]param.Value `json:"values"`
	Mappings  []mapping.Binding      `json:"mappings"`
	Snapshots []snapshot.Table       `json:"snapshots"`
	Excluded  []string               `json:"excluded,omitempty"`
	Tempo     float64                `json:"tempo,omitempty"`
}

// SaveInfo represents a saved state file (for listing)
type SaveInfo struct {
	Filename  string
	Name      string // parsed from filename (empty if unnamed)
	Timestamp time.Time
}

// Store reads and writes saves below a base directory
type Store struct {
	dir  string
	keep int
}

// DefaultDir returns ~/.config/go-vjctl/scripts
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-vjctl", "scripts"), nil
}

// Open returns a store rooted at dir, or at DefaultDir when dir is empty
func Open(dir string) (*Store, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	return &Store{dir: dir, keep: DefaultKeep}, nil
}

// SetKeep changes how many saves Prune keeps (0 keeps everything)
func (s *Store) SetKeep(n int) { s.keep = n }

// ScriptDir returns the directory holding a script's saves
func (s *Store) ScriptDir(id string) string {
	return filepath.Join(s.dir, sanitizeFilename(id))
}

// ListScripts returns the ids that have a save directory
func (s *Store) ListScripts() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ListSaves returns timestamped saves for a script, newest first
func (s *Store) ListSaves(id string) ([]SaveInfo, error) {
	entries, err := os.ReadDir(s.ScriptDir(id))
	if err != nil {
		if os.IsNotExist(err) {
			return []SaveInfo{}, nil
		}
		return nil, err
	}

	var saves []SaveInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}

		// 2024-01-15_14-30-00.000.json or 2024-01-15_14-30-00.000_name.json
		baseName := strings.TrimSuffix(name, ".json")
		if len(baseName) < timestampLen {
			continue
		}
		ts, err := time.ParseInLocation(timestampFormat, baseName[:timestampLen], time.Local)
		if err != nil {
			continue
		}
		saveName := ""
		if len(baseName) > timestampLen+1 && baseName[timestampLen] == '_' {
			saveName = baseName[timestampLen+1:]
		}
		saves = append(saves, SaveInfo{
			Filename:  name,
			Name:      saveName,
			Timestamp: ts,
		})
	}

	sort.Slice(saves, func(i, j int) bool {
		return saves[i].Timestamp.After(saves[j].Timestamp)
	})
	return saves, nil
}

// Save writes st as a new timestamped save and prunes old ones. name is
// optional and becomes part of the filename.
func (s *Store) Save(id, name string, st *State) (string, error) {
	if id == "" {
		id = "untitled"
	}
	dir := s.ScriptDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	st.Script = id
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}

	filename := time.Now().Format(timestampFormat)
	if name != "" {
		filename += "_" + sanitizeFilename(name)
	}
	filename += ".json"

	// write then rename so a crash never leaves a truncated newest save
	tmp, err := os.CreateTemp(dir, ".save-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, filename)); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	return filename, s.Prune(id)
}

// Load reads the most recent save of a script
func (s *Store) Load(id string) (*State, error) {
	saves, err := s.ListSaves(id)
	if err != nil {
		return nil, err
	}
	if len(saves) == 0 {
		return nil, fmt.Errorf("script %s: %w", id, ErrNoSaves)
	}
	return s.LoadFile(id, saves[0].Filename)
}

// LoadFile reads a specific save
func (s *Store) LoadFile(id, filename string) (*State, error) {
	data, err := os.ReadFile(filepath.Join(s.ScriptDir(id), filename))
	if err != nil {
		return nil, err
	}
	st := &State{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	if st.Values == nil {
		st.Values = make(map[string]param.Value)
	}
	return st, nil
}

// Prune deletes all but the newest saves
func (s *Store) Prune(id string) error {
	if s.keep <= 0 {
		return nil
	}
	saves, err := s.ListSaves(id)
	if err != nil {
		return err
	}
	var errs []error
	for i := s.keep; i < len(saves); i++ {
		errs = append(errs, s.DeleteSave(id, saves[i].Filename))
	}
	return errors.Join(errs...)
}

// DeleteSave deletes a specific save file
func (s *Store) DeleteSave(id, filename string) error {
	return os.Remove(filepath.Join(s.ScriptDir(id), filename))
}

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	r := strings.NewReplacer(
		" ", "-", "/", "-", "\\", "-", ":", "-",
		"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
	)
	return r.Replace(name)
}
