package tui

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha palette
const (
	primaryColor   = "#89b4fa" // Blue
	secondaryColor = "#a6e3a1" // Green
	accentColor    = "#fab387" // Peach
	mauveColor     = "#cba6f7" // Mauve

	successColor = "#a6e3a1"
	warningColor = "#f9e2af"
	errorColor   = "#f38ba8"
	infoColor    = "#94e2d5"

	textColor     = "#cdd6f4"
	subtext0Color = "#a6adc8"
	mantleColor   = "#181825"
	borderColor   = "#45475a"
)

var (
	BaseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(textColor))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(successColor)).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(errorColor)).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(warningColor)).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(infoColor))

	MutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(subtext0Color))

	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(textColor)).
			Background(lipgloss.Color(mantleColor)).
			Bold(true).
			Padding(0, 2)

	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(secondaryColor)).
			Width(8)

	KeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(accentColor)).
			Bold(true)

	EveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(errorColor))

	MatchStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor))

	BadgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(mantleColor)).
			Background(lipgloss.Color(mauveColor)).
			Padding(0, 1).
			Bold(true)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(borderColor)).
			Padding(0, 1)
)
