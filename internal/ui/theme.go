package ui

import "github.com/charmbracelet/lipgloss"

// Theme is the CLI color palette (Tokyo Night).
type Theme struct {
	TextPrimary lipgloss.Color
	TextDim     lipgloss.Color
	Border      lipgloss.Color

	Accent  lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color
}

// DefaultTheme is the dark theme.
var DefaultTheme = Theme{
	TextPrimary: lipgloss.Color("#c0caf5"),
	TextDim:     lipgloss.Color("#565f89"),
	Border:      lipgloss.Color("#414868"),

	Accent:  lipgloss.Color("#7aa2f7"),
	Success: lipgloss.Color("#9ece6a"),
	Warning: lipgloss.Color("#e0af68"),
	Error:   lipgloss.Color("#f7768e"),
	Info:    lipgloss.Color("#7dcfff"),
}

// Styles are the lipgloss styles used by Printer.
type Styles struct {
	Base    lipgloss.Style
	Dim     lipgloss.Style
	Title   lipgloss.Style
	Label   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	Box     lipgloss.Style
	Offset  lipgloss.Style
}

// NewStyles builds styles for renderer r. The renderer decides whether colors
// are emitted, so output to a pipe or file stays plain.
func NewStyles(r *lipgloss.Renderer, t Theme) Styles {
	return Styles{
		Base:    r.NewStyle().Foreground(t.TextPrimary),
		Dim:     r.NewStyle().Foreground(t.TextDim),
		Title:   r.NewStyle().Foreground(t.Accent).Bold(true),
		Label:   r.NewStyle().Foreground(t.TextDim),
		Success: r.NewStyle().Foreground(t.Success),
		Warning: r.NewStyle().Foreground(t.Warning),
		Error:   r.NewStyle().Foreground(t.Error).Bold(true),
		Info:    r.NewStyle().Foreground(t.Info),
		Box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),
		Offset: r.NewStyle().Foreground(t.TextDim),
	}
}
