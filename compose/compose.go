// Package compose builds prompt text from a stack of layers.
//
// For a (stack, bundle, role) triple every layer's prepend and append
// fragments accumulate in stack order while the body comes from the last
// layer that defines one. The concatenated text is rendered as a Go
// text/template against the deep-merged variables of the stack:
//
//	prepend(base) prepend(override) [runtime prepend] body(winner) append(base) append(override)
package compose

import (
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/layers"
	"github.com/teranos/strata/logger"
)

// ResolvedSources lists the fragment files that make up one composed template
type ResolvedSources struct {
	Stack        []string    `json:"stack"`
	Bundle       string      `json:"bundle"`
	Role         layers.Role `json:"role"`
	BodyPath     string      `json:"body_path"`
	BodyLayer    string      `json:"body_layer"`
	PrependPaths []string    `json:"prepend_paths"`
	AppendPaths  []string    `json:"append_paths"`
}

// Composer resolves and renders templates from a layer store
type Composer struct {
	store  *layers.Store
	logger *zap.SugaredLogger
}

// New returns a composer over store
func New(store *layers.Store) *Composer {
	return &Composer{
		store:  store,
		logger: logger.ComponentLogger("compose"),
	}
}

// Store returns the underlying layer store
func (c *Composer) Store() *layers.Store {
	return c.store
}

// ResolveSources finds the fragments for bundle/role across stack
func (c *Composer) ResolveSources(stack []string, bundle string, role layers.Role) (*ResolvedSources, error) {
	sources := &ResolvedSources{
		Stack:        append([]string(nil), stack...),
		Bundle:       bundle,
		Role:         role,
		PrependPaths: []string{},
		AppendPaths:  []string{},
	}

	for _, layer := range stack {
		if path, ok, err := c.store.Fragment(layer, bundle, role, layers.FragmentPrepend); err != nil {
			return nil, err
		} else if ok {
			sources.PrependPaths = append(sources.PrependPaths, path)
		}

		if path, ok, err := c.store.Fragment(layer, bundle, role, layers.FragmentBody); err != nil {
			return nil, err
		} else if ok {
			sources.BodyPath = path
			sources.BodyLayer = layer
		}

		if path, ok, err := c.store.Fragment(layer, bundle, role, layers.FragmentAppend); err != nil {
			return nil, err
		} else if ok {
			sources.AppendPaths = append(sources.AppendPaths, path)
		}
	}

	if sources.BodyPath == "" {
		return nil, errors.WithHintf(
			errors.NewPromptError("missing template for %s/%s", bundle, role),
			"add <layer>/%s/%s to one of: %s", bundle, layers.FragmentName(role, layers.FragmentBody), strings.Join(stack, ", "))
	}

	c.logger.Debugw("Resolved prompt sources",
		logger.FieldBundle, bundle,
		logger.FieldRole, role,
		logger.FieldLayer, sources.BodyLayer,
		"prepends", len(sources.PrependPaths),
		"appends", len(sources.AppendPaths))

	return sources, nil
}

// ComposeText concatenates the resolved fragments without rendering them.
// A non-empty runtimePrepend is inserted between the prepends and the body.
func (c *Composer) ComposeText(stack []string, bundle string, role layers.Role, runtimePrepend string) (string, *ResolvedSources, error) {
	sources, err := c.ResolveSources(stack, bundle, role)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	for _, path := range sources.PrependPaths {
		if err := appendFile(&b, path); err != nil {
			return "", nil, err
		}
	}
	if runtimePrepend != "" {
		b.WriteString(runtimePrepend)
	}
	if err := appendFile(&b, sources.BodyPath); err != nil {
		return "", nil, err
	}
	for _, path := range sources.AppendPaths {
		if err := appendFile(&b, path); err != nil {
			return "", nil, err
		}
	}
	return b.String(), sources, nil
}

// Render composes and renders bundle/role with the stack variables and extra
func (c *Composer) Render(stack []string, bundle string, role layers.Role, extra map[string]any) (string, error) {
	return c.RenderWithPrepend(stack, bundle, role, "", extra)
}

// RenderWithPrepend is Render with a runtime prepend inserted before the body
func (c *Composer) RenderWithPrepend(stack []string, bundle string, role layers.Role, runtimePrepend string, extra map[string]any) (string, error) {
	text, _, err := c.ComposeText(stack, bundle, role, runtimePrepend)
	if err != nil {
		return "", err
	}

	vars, err := c.LoadVariables(stack)
	if err != nil {
		return "", err
	}
	data := MergeVariables(vars, extra)

	loader, err := NewLoader(c.store, stack)
	if err != nil {
		return "", err
	}

	name := bundle + "/" + string(role)
	out, err := newRenderer(loader, data).render(name, text)
	if err != nil {
		return "", errors.WrapPrompt(err, "failed to render %s", name)
	}
	return out, nil
}

func appendFile(b *strings.Builder, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapPrompt(err, "failed to read template %s", path)
	}
	b.Write(data)
	return nil
}
