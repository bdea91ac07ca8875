package main

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Styles holds the output styles.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	// Plain disables styling entirely; Render returns text unchanged.
	Plain bool
}

// NewStyles returns colored styles.
func NewStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7aa2f7")).
			Bold(true),
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bb9af7")).
			Bold(true),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#565f89")),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9ece6a")),
		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e0af68")),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f7768e")).
			Bold(true),
	}
}

// Render applies st to text unless s is plain.
func (s Styles) Render(st lipgloss.Style, text string) string {
	if s.Plain {
		return text
	}
	return st.Render(text)
}

// stylesFor picks colored styles only when w is a terminal.
func stylesFor(w io.Writer) Styles {
	if f, ok := w.(*os.File); ok {
		fd := f.Fd()
		if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			return NewStyles()
		}
	}
	return Styles{Plain: true}
}

// indent prefixes every non-empty line of s with two spaces.
func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = "  " + l
		}
	}
	return strings.Join(lines, "\n")
}
