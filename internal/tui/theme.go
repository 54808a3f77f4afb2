package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mohaanymo/initfix/internal/engine"
)

// Palette
var (
	colorInk    = lipgloss.Color("#1e1e2e")
	colorFrame  = lipgloss.Color("#45475a")
	colorFaint  = lipgloss.Color("#6c7086")
	colorSoft   = lipgloss.Color("#9399b2")
	colorPlain  = lipgloss.Color("#cdd6f4")
	colorBlue   = lipgloss.Color("#89b4fa")
	colorGreen  = lipgloss.Color("#a6e3a1")
	colorYellow = lipgloss.Color("#f9e2af")
	colorMauve  = lipgloss.Color("#cba6f7")
	colorSky    = lipgloss.Color("#89dceb")
	colorRed    = lipgloss.Color("#f38ba8")
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func framed(padV, padH int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorFrame).
		Padding(padV, padH)
}

func badge(bg lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(colorInk).
		Background(bg).
		Padding(0, 1).
		Bold(true)
}

var (
	headerStyle  = framed(0, 2)
	contentStyle = framed(1, 2)

	titleStyle    = fg(colorBlue).Bold(true)
	subtitleStyle = fg(colorSky).Bold(true)
	selectedStyle = fg(colorSky).Bold(true)
	successStyle  = fg(colorGreen).Bold(true)
	errorStyle    = fg(colorRed).Bold(true)
	warningStyle  = fg(colorYellow)

	labelStyle  = fg(colorFaint)
	dimStyle    = fg(colorFaint)
	helpStyle   = fg(colorFaint)
	valueStyle  = fg(colorPlain)
	normalStyle = fg(colorPlain)

	keyHelpStyle   = fg(colorSoft)
	statLabelStyle = fg(colorSoft)
	statValueStyle = fg(colorSky).Bold(true)

	spinnerStyle   = fg(colorBlue)
	progressActive = fg(colorBlue)
	progressWait   = fg(colorFaint)

	videoBadge = badge(colorBlue)
	audioBadge = badge(colorMauve)
	fileBadge  = badge(colorYellow)
)

// stageStyle colors a job's in-flight stage.
func stageStyle(s engine.Stage) lipgloss.Style {
	switch s {
	case engine.StageLoaded:
		return fg(colorSky)
	case engine.StageTransformed:
		return fg(colorMauve)
	default:
		return dimStyle
	}
}

var spinner = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
