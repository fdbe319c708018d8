package session

import "github.com/charmbracelet/lipgloss"

// Styles controls how the session decorates its output.
type Styles struct {
	Prompt lipgloss.Style
	Answer lipgloss.Style
	Source lipgloss.Style
	Error  lipgloss.Style

	plain bool
}

// PlainStyles writes text undecorated. It is the default.
func PlainStyles() Styles {
	return Styles{
		Prompt: lipgloss.NewStyle(),
		Answer: lipgloss.NewStyle(),
		Source: lipgloss.NewStyle(),
		Error:  lipgloss.NewStyle(),
		plain:  true,
	}
}

// ColorStyles highlights prompts, sources and errors for terminals.
func ColorStyles() Styles {
	return Styles{
		Prompt: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Answer: lipgloss.NewStyle(),
		Source: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Error:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}

func (s Styles) render(style lipgloss.Style, text string) string {
	if s.plain {
		return text
	}
	return style.Render(text)
}
