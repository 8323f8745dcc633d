package display

import (
	"io"
	"os"

	"github.com/pterm/pterm"
)

// Status shows a spinner with text on terminal writers and returns a
// function that removes it. Non-terminal writers get no output.
func Status(w io.Writer, text string) (stop func()) {
	if !IsTerminal(w) || PlainOutput {
		return func() {}
	}
	spinner, err := pterm.DefaultSpinner.
		WithWriter(w).
		WithRemoveWhenDone(true).
		Start(text)
	if err != nil {
		return func() {}
	}
	return func() { _ = spinner.Stop() }
}

// IsTerminal reports whether w is a character device
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
