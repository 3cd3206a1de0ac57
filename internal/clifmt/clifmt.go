// Package clifmt renders ragctl output: styled when stdout is a terminal,
// plain otherwise, gated by isatty/NO_COLOR detection.
package clifmt

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Styles holds the lipgloss styles used across ragctl's output. NoColor
// collapses every style to an unstyled passthrough.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Active  lipgloss.Style
}

func coloredStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("154")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("154")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Active:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("154")),
	}
}

func plainStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
		Active:  lipgloss.NewStyle(),
	}
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Writer prints status lines to an io.Writer, styled when the target is a
// terminal and NO_COLOR is unset.
type Writer struct {
	out    io.Writer
	styles Styles
}

// New builds a Writer, auto-detecting whether out should be styled.
func New(out io.Writer) *Writer {
	useColor := IsTTY(out)
	if _, noColor := os.LookupEnv("NO_COLOR"); noColor {
		useColor = false
	}
	styles := plainStyles()
	if useColor {
		styles = coloredStyles()
	}
	return &Writer{out: out, styles: styles}
}

func (w *Writer) line(style lipgloss.Style, icon, msg string) {
	fmt.Fprintln(w.out, style.Render(icon+" "+msg))
}

// Success prints a checkmark-prefixed success line.
func (w *Writer) Success(msg string) { w.line(w.styles.Success, "✓", msg) }

// Successf is the Printf variant of Success.
func (w *Writer) Successf(format string, args ...any) { w.Success(fmt.Sprintf(format, args...)) }

// Warning prints a warning-prefixed line.
func (w *Writer) Warning(msg string) { w.line(w.styles.Warning, "!", msg) }

// Error prints an error-prefixed line.
func (w *Writer) Error(msg string) { w.line(w.styles.Error, "✗", msg) }

// Errorf is the Printf variant of Error.
func (w *Writer) Errorf(format string, args ...any) { w.Error(fmt.Sprintf(format, args...)) }

// Header prints a bold section heading.
func (w *Writer) Header(msg string) {
	fmt.Fprintln(w.out, w.styles.Header.Render(msg))
}

// KBRow prints one list_kbs row, marking the active entry.
func (w *Writer) KBRow(name, path string, active bool) {
	marker := "  "
	style := w.styles.Dim
	if active {
		marker = "* "
		style = w.styles.Active
	}
	fmt.Fprintln(w.out, style.Render(fmt.Sprintf("%s%-24s %s", marker, name, path)))
}

// Context prints a query's formatted context block verbatim.
func (w *Writer) Context(context string) {
	fmt.Fprint(w.out, context)
}
