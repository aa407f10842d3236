package tui

import "github.com/charmbracelet/lipgloss"

// Color constants matching the dark dashboard theme
const (
	ColorBg      = "#0d1117"
	ColorBorder  = "#30363d"
	ColorBlue    = "#58a6ff"
	ColorGreen   = "#3fb950"
	ColorRed     = "#f85149"
	ColorYellow  = "#d29922"
	ColorMagenta = "#bc8cff"
	ColorCyan    = "#39c5cf"
	ColorGray    = "#8b949e"
	ColorText    = "#c9d1d9"
	ColorBright  = "#f0f6fc"
)

// Styles holds all lipgloss styles for the TUI
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Help     lipgloss.Style

	// Conversation
	Prompt      lipgloss.Style
	Question    lipgloss.Style
	AnswerLabel lipgloss.Style
	Answer      lipgloss.Style
	Context     lipgloss.Style
	Progress    lipgloss.Style
	Notice      lipgloss.Style
	Error       lipgloss.Style

	// Status badges
	StatusAdded   lipgloss.Style
	StatusSkipped lipgloss.Style
	StatusPartial lipgloss.Style
	StatusFailed  lipgloss.Style

	Border  lipgloss.Style
	Spinner lipgloss.Style
}

func badge(color string) lipgloss.Style {
	return lipgloss.NewStyle().
		Background(lipgloss.Color(color)).
		Foreground(lipgloss.Color(ColorBg)).
		Padding(0, 1).
		Bold(true)
}

// DefaultStyles creates the default style set
func DefaultStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(ColorMagenta)),

		Subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorCyan)),

		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGray)).
			Italic(true),

		Prompt: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorYellow)),

		Question: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorYellow)).
			Bold(true),

		AnswerLabel: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGreen)).
			Bold(true),

		Answer: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorText)),

		Context: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGray)),

		Progress: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorCyan)),

		Notice: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorRed)),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorRed)).
			Bold(true),

		StatusAdded:   badge(ColorGreen),
		StatusSkipped: badge(ColorGray),
		StatusPartial: badge(ColorYellow),
		StatusFailed:  badge(ColorRed),

		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorBorder)).
			Padding(0, 1),

		Spinner: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorBlue)),
	}
}

// StatusBadge returns the badge style for an ingestion status.
func (s *Styles) StatusBadge(status string) lipgloss.Style {
	switch status {
	case "added":
		return s.StatusAdded
	case "partial":
		return s.StatusPartial
	case "failed":
		return s.StatusFailed
	default:
		return s.StatusSkipped
	}
}
