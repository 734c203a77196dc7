package scanui

import "github.com/charmbracelet/lipgloss"

// Matrix color palette, same family as the rest of the terminal tooling.
var (
	colorMatrixGreen = lipgloss.Color("#00FF41")
	colorGreen       = lipgloss.Color("#00CC33")
	colorMidGreen    = lipgloss.Color("#008F11")
	colorDimGreen    = lipgloss.Color("#004A0A")
	colorWarning     = lipgloss.Color("#FFAA00")
)

var (
	styleTitle = lipgloss.NewStyle().
			Foreground(colorMatrixGreen).
			Bold(true).
			Padding(0, 1)

	styleHeader = lipgloss.NewStyle().
			Foreground(colorMidGreen)

	styleAddr = lipgloss.NewStyle().
			Foreground(colorMatrixGreen).
			Bold(true)

	styleValue = lipgloss.NewStyle().
			Foreground(colorGreen)

	styleDim = lipgloss.NewStyle().
			Foreground(colorDimGreen)

	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("#002200")).
			Foreground(colorGreen).
			Padding(0, 1)

	styleScanning = lipgloss.NewStyle().
			Foreground(colorMatrixGreen).
			Bold(true)

	stylePaused = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)
)
