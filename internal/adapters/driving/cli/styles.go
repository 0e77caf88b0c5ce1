package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Theme defines the colour palette of styled output.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Muted     lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:   lipgloss.Color("#7C3AED"), // Purple
		Secondary: lipgloss.Color("#06B6D4"), // Cyan
		Muted:     lipgloss.Color("#6C7086"), // Medium gray
		Success:   lipgloss.Color("#A6E3A1"), // Green
		Warning:   lipgloss.Color("#F9E2AF"), // Yellow
		Error:     lipgloss.Color("#F38BA8"), // Red
	}
}

// printer writes command output, styled only when it goes to a terminal.
type printer struct {
	w      io.Writer
	styled bool

	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	theme := DefaultTheme()
	return &printer{
		w:       w,
		styled:  isTerminal(w),
		title:   lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		label:   lipgloss.NewStyle().Bold(true).Foreground(theme.Secondary),
		muted:   lipgloss.NewStyle().Foreground(theme.Muted),
		success: lipgloss.NewStyle().Foreground(theme.Success),
		warning: lipgloss.NewStyle().Foreground(theme.Warning),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

// Title prints a heading.
func (p *printer) Title(s string) {
	_, _ = io.WriteString(p.w, p.render(p.title, s)+"\n")
}

// Field prints an indented "label: value" line.
func (p *printer) Field(label, value string) {
	_, _ = io.WriteString(p.w, "  "+p.render(p.label, label+":")+" "+value+"\n")
}

// Item prints an indented list item.
func (p *printer) Item(s string) {
	_, _ = io.WriteString(p.w, "  - "+s+"\n")
}

// Muted prints de-emphasised text.
func (p *printer) Muted(s string) {
	_, _ = io.WriteString(p.w, p.render(p.muted, s)+"\n")
}

// Success prints a check-marked line.
func (p *printer) Success(s string) {
	_, _ = io.WriteString(p.w, p.render(p.success, "✓ "+s)+"\n")
}

// Warning prints a warning line.
func (p *printer) Warning(s string) {
	_, _ = io.WriteString(p.w, p.render(p.warning, "! "+s)+"\n")
}
