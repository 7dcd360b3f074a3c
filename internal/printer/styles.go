package printer

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/slok/mpifilter/internal/model"
)

// Styles are the terminal styles of the text output.
type Styles struct {
	OK      lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	Muted   lipgloss.Style
}

// NewStyles returns the styles for w. Colors are only used when enabled and w
// is a color capable terminal.
func NewStyles(w io.Writer, color bool) Styles {
	if !color {
		return PlainStyles()
	}

	r := lipgloss.NewRenderer(w)
	return Styles{
		OK:      r.NewStyle().Foreground(lipgloss.Color("46")).Bold(true),
		Warning: r.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		Error:   r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		Info:    r.NewStyle().Foreground(lipgloss.Color("33")),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// PlainStyles returns styles that render text as is.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{OK: plain, Warning: plain, Error: plain, Info: plain, Muted: plain}
}

// CheckIcon returns the styled icon of a check status.
func (s Styles) CheckIcon(status model.CheckStatus) string {
	switch status {
	case model.CheckStatusOK:
		return s.OK.Render("OK")
	case model.CheckStatusWarning:
		return s.Warning.Render("!!")
	case model.CheckStatusError:
		return s.Error.Render("XX")
	default:
		return "??"
	}
}

// RunStatus returns the styled status of a task run.
func (s Styles) RunStatus(status model.TaskStatus) string {
	switch status {
	case model.TaskStatusDone:
		return s.OK.Render(string(status))
	case model.TaskStatusFailed:
		return s.Error.Render(string(status))
	default:
		return s.Info.Render(string(status))
	}
}
