package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/flock-cli/flock/internal/core"
)

// Palette, kept muted so agent output stays the visually loudest thing on
// screen.
var (
	colorBorder   = lipgloss.AdaptiveColor{Light: "240", Dark: "238"}
	colorAccent   = lipgloss.AdaptiveColor{Light: "61", Dark: "105"}
	colorDim      = lipgloss.AdaptiveColor{Light: "245", Dark: "243"}
	colorRunning  = lipgloss.AdaptiveColor{Light: "34", Dark: "42"}
	colorWaiting  = lipgloss.AdaptiveColor{Light: "172", Dark: "214"}
	colorError    = lipgloss.AdaptiveColor{Light: "160", Dark: "196"}
	colorComplete = lipgloss.AdaptiveColor{Light: "28", Dark: "40"}
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	listStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	detailStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	selectedRowStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	dimStyle         = lipgloss.NewStyle().Foreground(colorDim)
	helpStyle        = lipgloss.NewStyle().Foreground(colorDim)
	toastErrorStyle  = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	inputLabelStyle  = lipgloss.NewStyle().Foreground(colorWaiting).Bold(true)
	errorTextStyle   = lipgloss.NewStyle().Foreground(colorError)
)

// statusStyle colors a status symbol/label by kind.
func statusStyle(kind core.AgentStatusKind) lipgloss.Style {
	switch kind {
	case core.StatusRunning:
		return lipgloss.NewStyle().Foreground(colorRunning)
	case core.StatusAwaitingInput:
		return lipgloss.NewStyle().Foreground(colorWaiting).Bold(true)
	case core.StatusError:
		return lipgloss.NewStyle().Foreground(colorError)
	case core.StatusCompleted:
		return lipgloss.NewStyle().Foreground(colorComplete)
	default:
		return dimStyle
	}
}

// sparkline renders the activity ring as a fixed-width strip of blocks.
func sparkline(history []bool, width int) string {
	if width <= 0 {
		width = core.ActivityHistoryCap
	}
	out := make([]rune, 0, width)
	start := 0
	if len(history) > width {
		start = len(history) - width
	}
	for i := 0; i < width-len(history); i++ {
		out = append(out, ' ')
	}
	for _, active := range history[start:] {
		if active {
			out = append(out, '▂')
		} else {
			out = append(out, '·')
		}
	}
	return string(out)
}
