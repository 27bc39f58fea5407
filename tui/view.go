package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"go-vjctl/mapping"
	"go-vjctl/param"
	"go-vjctl/script"
	"go-vjctl/snapshot"
	"go-vjctl/widgets"
)

const (
	nameWidth = 16
	barWidth  = 24
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	t := m.Theme
	headerStyle := lipgloss.NewStyle().Foreground(t.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(t.Muted())
	warnStyle := lipgloss.NewStyle().Foreground(t.Warning())

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(headerStyle.Render(m.header()))
	if m.disconnected {
		out.WriteString("  " + warnStyle.Render("DISCONNECTED"))
	}
	out.WriteString("\n\n")

	if len(m.rows) == 0 {
		out.WriteString(dimStyle.Render("  no controls"))
		out.WriteString("\n")
	}
	for i, r := range m.rows {
		out.WriteString(m.renderRow(r, i == m.cursor))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(m.renderSlots())
	out.WriteString("\n")

	if m.learn.Awaiting {
		out.WriteString(warnStyle.Render(fmt.Sprintf("learning %s: move a control (esc cancels)", m.learn.Name)))
		out.WriteString("\n")
	}
	for _, d := range m.diags {
		style := dimStyle
		if d.Severity == script.SeverityError {
			style = warnStyle
		}
		out.WriteString(style.Render(d.Error()))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(m.help.View(m.keys))
	return out.String()
}

func (m Model) header() string {
	play := "STOP"
	if m.clock.Playing {
		play = "PLAY"
	}
	parts := []string{"go-vjctl", m.script, play, fmt.Sprintf("%5.1fbpm", m.tempo)}
	if m.clock.Source != "" {
		src := m.clock.Source
		if m.clock.Degraded {
			src += " (lost)"
		}
		parts = append(parts, src)
	}
	if !m.mappings.Enabled {
		parts = append(parts, "maps off")
	}
	if m.recording.Active {
		parts = append(parts, "REC")
	}
	return strings.Join(lo.Compact(parts), "  ")
}

func (m Model) renderRow(r *row, selected bool) string {
	t := m.Theme
	sym := t.Symbols
	dimStyle := lipgloss.NewStyle().Foreground(t.Muted())
	nameStyle := lipgloss.NewStyle().Foreground(t.FG())
	if selected {
		nameStyle = lipgloss.NewStyle().Foreground(t.Cursor()).Background(t.BG()).Bold(true)
	}

	if !r.selectable() {
		label := r.info.Label
		if label == "" {
			label = r.info.Name
		}
		return dimStyle.Render("── " + label)
	}

	cursor := " "
	if selected {
		cursor = string(sym.Cursor)
	}
	flags := []rune{' ', ' '}
	switch {
	case m.learn.Awaiting && m.learn.Name == r.info.Name:
		flags[0] = sym.Learning
	case m.isMapped(r.info.Name):
		flags[0] = sym.Mapped
	}
	switch {
	case m.bypassed[r.info.Name]:
		flags[1] = sym.Bypassed
	case r.disabled:
		flags[1] = sym.Disabled
	case !script.Kind(r.info.Kind).Writable():
		flags[1] = sym.Driven
	}

	name := r.info.Label
	if name == "" {
		name = r.info.Name
	}
	name = fmt.Sprintf("%-*s", nameWidth, widgets.Truncate(name, nameWidth))

	value := "?"
	if r.known {
		value = m.renderValue(r)
	}
	line := fmt.Sprintf("%s%s %s %s", cursor, string(flags), nameStyle.Render(name), value)
	if r.info.Excluded {
		line += dimStyle.Render("  (no random)")
	}
	if r.disabled || !r.info.Interactive {
		return lipgloss.NewStyle().Faint(true).Render(line)
	}
	return line
}

func (m Model) renderValue(r *row) string {
	t := m.Theme
	switch script.Kind(r.info.Kind) {
	case script.KindCheckbox:
		if r.value.Bool() {
			return lipgloss.NewStyle().Foreground(t.Success()).Render(string(t.Symbols.Solid) + " on")
		}
		return lipgloss.NewStyle().Foreground(t.Muted()).Render(string(t.Symbols.Empty) + " off")
	case script.KindSelect:
		on := lipgloss.NewStyle().Foreground(t.Accent())
		off := lipgloss.NewStyle().Foreground(t.Muted())
		return widgets.RenderChoices(r.info.Options, optionIndex(r.info.Options, r.value), on, off)
	}

	unit := 0.0
	if r.info.Max > r.info.Min {
		unit = param.Range{Min: r.info.Min, Max: r.info.Max}.ToUnit(r.value.Float())
	}
	bar := widgets.RenderBar(unit, widgets.BarStyle{
		Width: barWidth,
		Full:  t.Symbols.BarFull,
		Empty: t.Symbols.BarEmpty,
		Fill:  t.Color(0.3 + 0.7*unit),
		Track: t.Muted(),
	})
	return fmt.Sprintf("%s %s", bar, r.value.String())
}

func (m Model) renderSlots() string {
	t := m.Theme
	slots := make([]widgets.Slot, snapshot.Slots)
	for i := range slots {
		slots[i] = widgets.Slot{Color: t.RGB(RoleEmpty), Symbol: t.Symbols.Empty}
	}
	for _, i := range m.snapshots.Occupied {
		if i >= 0 && i < len(slots) {
			slots[i] = widgets.Slot{Color: t.RGB(RoleStored), Symbol: t.Symbols.Solid}
		}
	}

	line := "slots " + widgets.RenderSlotRow(slots)
	switch m.armed {
	case armStore:
		line += lipgloss.NewStyle().Foreground(t.Warning()).Render("  store to?")
	case armDelete:
		line += lipgloss.NewStyle().Foreground(t.Warning()).Render("  clear which?")
	}
	if m.snapshots.Sequencing {
		line += fmt.Sprintf("  sequencing every %g beats", m.snapshots.Every)
	}
	return line
}

func (m Model) isMapped(name string) bool {
	return lo.ContainsBy(m.mappings.Bindings, func(b mapping.Binding) bool { return b.Control == name })
}

// Slot colors as palette positions
const (
	RoleEmpty  = 0.2
	RoleStored = 0.9
)
