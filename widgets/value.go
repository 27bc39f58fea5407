package widgets

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// BarStyle configures RenderBar
type BarStyle struct {
	Width int
	Full  rune
	Empty rune
	Fill  lipgloss.Color
	Track lipgloss.Color
}

// RenderBar renders a horizontal bar filled to unit (0-1)
func RenderBar(unit float64, s BarStyle) string {
	if s.Width <= 0 {
		return ""
	}
	unit = math.Max(0, math.Min(1, unit))
	n := int(math.Round(unit * float64(s.Width)))
	full := lipgloss.NewStyle().Foreground(s.Fill).Render(strings.Repeat(string(s.Full), n))
	empty := lipgloss.NewStyle().Foreground(s.Track).Render(strings.Repeat(string(s.Empty), s.Width-n))
	return full + empty
}

// RenderChoices renders select options with the current one highlighted
func RenderChoices(options []string, current int, on, off lipgloss.Style) string {
	parts := make([]string, len(options))
	for i, o := range options {
		if i == current {
			parts[i] = on.Render("[" + o + "]")
		} else {
			parts[i] = off.Render(" " + o + " ")
		}
	}
	return strings.Join(parts, "")
}

// Truncate shortens s to width cells, marking the cut with an ellipsis
func Truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if width <= 1 || len(r) == 0 {
		return string(r[:min(len(r), max(width, 0))])
	}
	for len(r) > 0 && lipgloss.Width(string(r)) > width-1 {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
