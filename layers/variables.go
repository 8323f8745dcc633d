package layers

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/teranos/strata/errors"
)

// VariableFiles are looked up in this order; the first one present is used
var VariableFiles = []string{"variables.yaml", "variables.yml", "variables.toml"}

// LoadVariables reads a layer's variable mapping. It returns nil and an empty
// path when the layer has no variables file.
func (s *Store) LoadVariables(layer string) (map[string]any, string, error) {
	layerRoot, err := s.LayerRoot(layer)
	if err != nil {
		return nil, "", err
	}

	for _, name := range VariableFiles {
		path := filepath.Join(layerRoot, name)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, path, errors.WrapPrompt(err, "failed to read %s", path)
		}
		vars, err := decodeVariables(name, data)
		if err != nil {
			return nil, path, errors.WrapPrompt(err, "invalid variables file %s", path)
		}
		return vars, path, nil
	}
	return nil, "", nil
}

func decodeVariables(name string, data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	if filepath.Ext(name) == ".toml" {
		var raw map[string]any
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, err
		}
		return normalizeMap(raw), nil
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	switch m := normalize(raw).(type) {
	case map[string]any:
		return m, nil
	default:
		return nil, errors.Newf("variables must be a mapping, got %T", raw)
	}
}

// normalize converts decoder output into map[string]any / []any trees so
// that merging and template lookup see one shape regardless of format
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalizeMap(t)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeMap(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}
