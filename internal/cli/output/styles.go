package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used in text mode.
type Styles struct {
	Header1   lipgloss.Style
	Header2   lipgloss.Style
	Key       lipgloss.Style
	Code      lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Muted     lipgloss.Style
	Highlight lipgloss.Style
}

// DefaultStyles returns the styles for an interactive terminal.
func DefaultStyles() Styles {
	return Styles{
		Header1:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Header2:   lipgloss.NewStyle().Bold(true),
		Key:       lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Code:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Success:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
	}
}

// PlainStyles returns styles that render text unchanged.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header1: plain, Header2: plain, Key: plain, Code: plain,
		Success: plain, Warning: plain, Error: plain, Muted: plain, Highlight: plain,
	}
}
