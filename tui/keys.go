package tui

import "github.com/charmbracelet/bubbles/key"

func Key(help string, keyboardKey ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keyboardKey...), key.WithHelp(keyboardKey[0], help))
}

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	Dec        key.Binding
	Inc        key.Binding
	CoarseDec  key.Binding
	CoarseInc  key.Binding
	Slot       key.Binding
	ArmStore   key.Binding
	ArmDelete  key.Binding
	Cancel     key.Binding
	Learn      key.Binding
	Unmap      key.Binding
	Mappings   key.Binding
	Bypass     key.Binding
	Randomize  key.Binding
	RandomOne  key.Binding
	Revert     key.Binding
	Exclude    key.Binding
	Sequence   key.Binding
	TempoDown  key.Binding
	TempoUp    key.Binding
	ResetClock key.Binding
	Record     key.Binding
	Save       key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:         Key("up", "k", "up"),
		Down:       Key("down", "j", "down"),
		Dec:        Key("decrease", "h", "left"),
		Inc:        Key("increase", "l", "right"),
		CoarseDec:  Key("decrease x10", "H", "shift+left"),
		CoarseInc:  Key("increase x10", "L", "shift+right"),
		Slot:       key.NewBinding(key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("0-9", "recall slot")),
		ArmStore:   Key("store to slot", "s"),
		ArmDelete:  Key("clear slot", "backspace"),
		Cancel:     Key("cancel", "esc"),
		Learn:      Key("learn", "m"),
		Unmap:      Key("unmap", "M"),
		Mappings:   Key("mappings on/off", "o"),
		Bypass:     Key("bypass", "b"),
		Randomize:  Key("randomize all", "r"),
		RandomOne:  Key("randomize one", "R"),
		Revert:     Key("revert to default", "d"),
		Exclude:    Key("exclude from random", "x"),
		Sequence:   Key("sequence slots", "p"),
		TempoDown:  Key("tempo -1", "-"),
		TempoUp:    Key("tempo +1", "+", "="),
		ResetClock: Key("reset clock", "z"),
		Record:     Key("record", "e"),
		Save:       Key("save", "w"),
		Help:       Key("help", "?"),
		Quit:       Key("quit", "q", "ctrl+c"),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Dec, k.Slot, k.ArmStore, k.Learn, k.Randomize, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Dec, k.Inc, k.CoarseDec, k.CoarseInc},
		{k.Slot, k.ArmStore, k.ArmDelete, k.Sequence, k.Cancel},
		{k.Learn, k.Unmap, k.Mappings, k.Bypass, k.Revert},
		{k.Randomize, k.RandomOne, k.Exclude},
		{k.TempoDown, k.TempoUp, k.ResetClock, k.Record, k.Save, k.Help, k.Quit},
	}
}
