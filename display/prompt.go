package display

import (
	"strings"

	"github.com/pterm/pterm"

	"github.com/teranos/strata/errors"
)

// TermPrompter asks questions on the terminal
type TermPrompter struct{}

// Text asks for a line of input, returning def when the answer is blank
func (TermPrompter) Text(label, def string) (string, error) {
	input := pterm.DefaultInteractiveTextInput
	if def != "" {
		input = *input.WithDefaultValue(def)
	}
	answer, err := input.Show(label)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", strings.ToLower(label))
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// Secret asks for input without echoing it
func (TermPrompter) Secret(label string) (string, error) {
	answer, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show(label)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", strings.ToLower(label))
	}
	return strings.TrimSpace(answer), nil
}

// Select asks for one of options
func (TermPrompter) Select(label string, options []string, def string) (string, error) {
	if len(options) == 0 {
		return def, nil
	}
	sel := pterm.DefaultInteractiveSelect.WithOptions(options)
	if def != "" {
		sel = sel.WithDefaultOption(def)
	}
	answer, err := sel.Show(label)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", strings.ToLower(label))
	}
	return answer, nil
}
