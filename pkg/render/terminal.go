package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
	hiddenStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c"))
	kindStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#bac2de")).Italic(true)
)

// Terminal draws blocks as a vertical stack of boxes for previews in a
// terminal. Width is the total width of each box.
func Terminal(blocks []Block, width int) string {
	if width < 12 {
		width = 12
	}

	boxes := make([]string, 0, len(blocks))
	for _, b := range blocks {
		boxes = append(boxes, terminalBox(b, width))
	}
	return lipgloss.JoinVertical(lipgloss.Left, boxes...)
}

func terminalBox(b Block, width int) string {
	style := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Width(width - 2)

	var lines []string
	header := titleStyle.Render("[" + b.Title + "]")
	header += " " + kindStyle.Render(string(b.Kind))
	lines = append(lines, header)

	switch {
	case b.IsError():
		style = style.BorderForeground(lipgloss.Color("#f38ba8"))
		lines = append(lines, errorStyle.Render("! "+b.Error))
	case b.Body != "":
		lines = append(lines, b.Body)
	}
	if !b.Visible {
		lines = append(lines, hiddenStyle.Render("(hidden on load)"))
	}

	return style.Render(strings.Join(lines, "\n"))
}
