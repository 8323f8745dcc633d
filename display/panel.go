package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/teranos/strata/errors"
)

// Panel styles
var (
	StyleDefault = pterm.NewStyle(pterm.FgDefault)
	StyleError   = pterm.NewStyle(pterm.FgRed)
	StyleWarning = pterm.NewStyle(pterm.FgYellow)
	StyleDim     = pterm.NewStyle(pterm.FgGray)
)

// Panel writes body inside a titled box
func Panel(w io.Writer, title, body string, style *pterm.Style) {
	if style == nil {
		style = StyleDefault
	}
	box := pterm.DefaultBox.
		WithTitle(style.Sprint(title)).
		WithTitleTopLeft().
		WithBoxStyle(style).
		Sprint(strings.TrimRight(body, "\n"))
	fmt.Fprintln(w, box)
}

// ErrorPanel renders an error with any hints attached to it
func ErrorPanel(w io.Writer, err error) {
	if err == nil {
		return
	}
	body := err.Error()
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		body += "\n\nHint: " + strings.Join(hints, "\nHint: ")
	}
	Panel(w, "Error", body, StyleError)
}

// WarningPanel renders a yellow warning
func WarningPanel(w io.Writer, body string) {
	Panel(w, "Warning", body, StyleWarning)
}

// WarningList renders one "- item" line per entry; nothing for an empty list
func WarningList(w io.Writer, items []string) {
	if len(items) == 0 {
		return
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	WarningPanel(w, strings.Join(lines, "\n"))
}

// MarkdownPanel renders Markdown inside a titled box
func MarkdownPanel(w io.Writer, title, markdown string, style *pterm.Style) {
	Panel(w, title, RenderMarkdown(markdown), style)
}
