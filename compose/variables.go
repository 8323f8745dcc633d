package compose

// LoadVariables merges the variable files of every layer in stack order
func (c *Composer) LoadVariables(stack []string) (map[string]any, error) {
	merged := map[string]any{}
	for _, layer := range stack {
		vars, _, err := c.store.LoadVariables(layer)
		if err != nil {
			return nil, err
		}
		if vars != nil {
			merged = MergeVariables(merged, vars)
		}
	}
	return merged, nil
}

// MergeVariables returns base overridden by override. Nested mappings present
// on both sides are merged key by key; any other value from override,
// including lists, replaces the base value outright. Neither input is modified.
func MergeVariables(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		overrideMap, ok := v.(map[string]any)
		if baseMap, baseOK := merged[k].(map[string]any); ok && baseOK {
			merged[k] = MergeVariables(baseMap, overrideMap)
			continue
		}
		merged[k] = v
	}
	return merged
}
