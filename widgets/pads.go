package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderPad renders a single colored pad
func RenderPad(color [3]uint8, symbol rune) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render(string(symbol))
}

// Slot is one snapshot slot as shown in the panel
type Slot struct {
	Color  [3]uint8
	Symbol rune
}

// RenderSlotRow renders numbered slots: "0■ 1□ 2□ ..."
func RenderSlotRow(slots []Slot) string {
	var out strings.Builder
	for i, s := range slots {
		if i > 0 {
			out.WriteString(" ")
		}
		fmt.Fprintf(&out, "%d%s", i, RenderPad(s.Color, s.Symbol))
	}
	return out.String()
}

// RenderLegendItem renders a single legend item: "■ Name - description"
func RenderLegendItem(color [3]uint8, symbol rune, name, desc string) string {
	return fmt.Sprintf("  %s %s - %s", RenderPad(color, symbol), name, desc)
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
