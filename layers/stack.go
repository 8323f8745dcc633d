package layers

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/teranos/strata/errors"
)

// ActiveStackFile is the record of the selected stack, relative to the root
const ActiveStackFile = "active_stack.txt"

// DefaultLayer is used when no stack has been selected
const DefaultLayer = "default"

// StackSource says where ReadActiveStack found the stack
type StackSource int

const (
	// StackFromRecord means active_stack.txt was read
	StackFromRecord StackSource = iota
	// StackFromDefault means the default layer was used
	StackFromDefault
)

// ActiveStackPath returns the location of the active stack record
func (s *Store) ActiveStackPath() string {
	return filepath.Join(s.root, ActiveStackFile)
}

// ReadActiveStack returns the selected stack, base layer first
func (s *Store) ReadActiveStack() ([]string, error) {
	stack, _, err := s.ActiveStack()
	return stack, err
}

// ActiveStack returns the selected stack and where it came from
func (s *Store) ActiveStack() ([]string, StackSource, error) {
	path := s.ActiveStackPath()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		content := strings.TrimSpace(string(data))
		if content == "" {
			return nil, StackFromRecord, errors.NewConfigError("active prompt stack file is empty: %s", path)
		}
		stack := splitStack(content)
		if len(stack) == 0 {
			return nil, StackFromRecord, errors.NewConfigError("active prompt stack file is empty: %s", path)
		}
		if err := s.checkStack(stack); err != nil {
			return nil, StackFromRecord, errors.WrapConfig(err, "invalid active stack in %s", path)
		}
		return stack, StackFromRecord, nil
	case !os.IsNotExist(err):
		return nil, StackFromRecord, errors.WrapConfig(err, "failed to read %s", path)
	}

	if s.HasLayer(DefaultLayer) {
		return []string{DefaultLayer}, StackFromDefault, nil
	}
	return nil, StackFromDefault, errors.WithHint(
		errors.NewConfigError("no active stack and no %s layer in %s", DefaultLayer, s.root),
		"create a layer named default or select a stack with `strata prompts <a,b>`")
}

// WriteActiveStack replaces the active stack record
func (s *Store) WriteActiveStack(stack []string) error {
	if len(stack) == 0 {
		return errors.NewConfigError("prompt stack must include at least one layer")
	}
	for _, name := range stack {
		if err := ValidateName(name); err != nil {
			return err
		}
	}
	if err := s.checkStack(stack); err != nil {
		return err
	}

	path := s.ActiveStackPath()
	tmp, err := os.CreateTemp(s.root, ".active_stack-*")
	if err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(strings.Join(stack, ",")); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", path)
	}
	return nil
}

// ParseStackArg parses a comma-separated stack given on the command line.
// Unlike the stack record, empty entries and whitespace are rejected.
func ParseStackArg(value string) ([]string, error) {
	parts := strings.Split(value, ",")
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, errors.NewConfigError("stack entries cannot be empty: %q", value)
		}
		if err := ValidateName(part); err != nil {
			return nil, err
		}
		stack = append(stack, part)
	}
	return stack, nil
}

func splitStack(content string) []string {
	var stack []string
	for _, item := range strings.Split(content, ",") {
		if item = strings.TrimSpace(item); item != "" {
			stack = append(stack, item)
		}
	}
	return stack
}

// checkStack requires distinct, existing layers
func (s *Store) checkStack(stack []string) error {
	seen := make(map[string]bool, len(stack))
	for _, name := range stack {
		if seen[name] {
			return errors.NewConfigError("layer %s appears more than once in stack", name)
		}
		seen[name] = true
	}
	return s.CheckLayers(stack)
}
