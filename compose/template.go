package compose

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	jsoniter "github.com/json-iterator/go"

	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/layers"
)

// maxIncludeDepth bounds include recursion
const maxIncludeDepth = 16

// Loader finds template files by relative name. Layers are searched
// override first, so a file present in several layers resolves to the
// copy in the layer nearest the top of the stack.
type Loader struct {
	roots  []string
	layers []string
}

// NewLoader builds the search path for stack
func NewLoader(store *layers.Store, stack []string) (*Loader, error) {
	l := &Loader{}
	for i := len(stack) - 1; i >= 0; i-- {
		root, err := store.LayerRoot(stack[i])
		if err != nil {
			return nil, err
		}
		l.roots = append(l.roots, root)
		l.layers = append(l.layers, stack[i])
	}
	return l, nil
}

// SearchPath returns the layer names in lookup order
func (l *Loader) SearchPath() []string {
	return append([]string(nil), l.layers...)
}

// Resolve returns the path and owning layer of a relative template name
func (l *Loader) Resolve(name string) (string, string, error) {
	clean := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	if name == "" || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", "", errors.NewPromptError("template name must be relative to a layer: %q", name)
	}

	for i, root := range l.roots {
		p := filepath.Join(root, filepath.FromSlash(clean))
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, l.layers[i], nil
		}
	}
	return "", "", errors.NewPromptError("template not found in stack: %s (searched %s)", name, strings.Join(l.layers, ", "))
}

// Source reads a relative template name
func (l *Loader) Source(name string) (string, error) {
	p, _, err := l.Resolve(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", errors.WrapPrompt(err, "failed to read template %s", p)
	}
	return string(data), nil
}

// renderer executes composed text and its includes against one data map
type renderer struct {
	loader *Loader
	data   map[string]any
	depth  int
}

func newRenderer(loader *Loader, data map[string]any) *renderer {
	return &renderer{loader: loader, data: data}
}

func (r *renderer) render(name, text string) (string, error) {
	tmpl, err := parseTemplate(name, text, r.funcs())
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, r.data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (r *renderer) include(name string) (string, error) {
	if r.depth >= maxIncludeDepth {
		return "", errors.NewPromptError("include nesting deeper than %d at %s", maxIncludeDepth, name)
	}
	text, err := r.loader.Source(name)
	if err != nil {
		return "", err
	}
	r.depth++
	defer func() { r.depth-- }()
	return r.render(name, text)
}

func (r *renderer) funcs() template.FuncMap {
	funcs := baseFuncs()
	funcs["include"] = r.include
	return funcs
}

// parseTemplate parses text with undefined map keys treated as errors
func parseTemplate(name, text string, funcs template.FuncMap) (*template.Template, error) {
	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(funcs).
		Parse(text)
	if err != nil {
		return nil, errors.WrapPrompt(err, "failed to parse template %s", name)
	}
	return tmpl, nil
}

// baseFuncs are available to every template. include is bound per render;
// parsing only needs its name to be known.
func baseFuncs() template.FuncMap {
	return template.FuncMap{
		"include": func(string) (string, error) { return "", nil },
		"indent":  indent,
		"trim":    strings.TrimSpace,
		"upper":   strings.ToUpper,
		"lower":   strings.ToLower,
		"join":    join,
		"default": defaultValue,
		"toJSON":  toJSON,
	}
}

func indent(spaces int, s string) string {
	pad := strings.Repeat(" ", spaces)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = pad + line
		}
	}
	return strings.Join(lines, "\n")
}

func join(sep string, items any) (string, error) {
	switch v := items.(type) {
	case []string:
		return strings.Join(v, sep), nil
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			s, err := stringify(item)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, sep), nil
	default:
		return "", errors.Newf("join expects a list, got %T", items)
	}
}

func stringify(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	out, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v)
	return string(out), err
}

// defaultValue returns def when value is nil or an empty string/list/map
func defaultValue(def, value any) any {
	switch v := value.(type) {
	case nil:
		return def
	case string:
		if v == "" {
			return def
		}
	case []any:
		if len(v) == 0 {
			return def
		}
	case map[string]any:
		if len(v) == 0 {
			return def
		}
	}
	return value
}

func toJSON(v any) (string, error) {
	out, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
