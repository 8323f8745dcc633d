package finalize

import (
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/teranos/strata/errors"
)

var strictJSON = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// Component is one entry of Analysis.Components
type Component struct {
	Name           string `json:"name"`
	Responsibility string `json:"responsibility"`
}

// Analysis is the structured answer contract. Output must contain exactly these keys.
type Analysis struct {
	Overview      string      `json:"overview"`
	Components    []Component `json:"components"`
	DataFlow      string      `json:"data_flow"`
	Assumptions   []string    `json:"assumptions"`
	Risks         []string    `json:"risks"`
	OpenQuestions []string    `json:"open_questions"`
}

// AnalysisKeys are the required top-level keys
var AnalysisKeys = []string{"overview", "components", "data_flow", "assumptions", "risks", "open_questions"}

var componentKeys = []string{"name", "responsibility"}

// ParseAnalysis strips a leading FINAL: and decodes text into an Analysis,
// rejecting unknown keys, missing keys and wrongly typed values. Syntax
// errors and shape errors are both schema failures; IsSyntaxError tells them apart.
func ParseAnalysis(text string) (*Analysis, error) {
	body := strings.TrimSpace(StripFinalPrefix(text))

	var fields map[string]jsoniter.RawMessage
	if err := strictJSON.UnmarshalFromString(body, &fields); err != nil || fields == nil {
		if err == nil {
			err = errors.New("expected an object, got null")
		}
		return nil, errors.Mark(errors.WrapSchema(err, "invalid JSON"), errSyntax)
	}

	if err := checkKeys(fields, AnalysisKeys, "analysis"); err != nil {
		return nil, err
	}

	var a Analysis
	if err := decodeString(fields["overview"], "overview", &a.Overview); err != nil {
		return nil, err
	}
	if err := decodeString(fields["data_flow"], "data_flow", &a.DataFlow); err != nil {
		return nil, err
	}

	var components []map[string]jsoniter.RawMessage
	if err := decodeArray(fields["components"], "components", &components); err != nil {
		return nil, err
	}
	a.Components = make([]Component, 0, len(components))
	for i, item := range components {
		if item == nil {
			return nil, errors.NewSchemaError("components[%d] must be an object", i)
		}
		if err := checkKeys(item, componentKeys, "component"); err != nil {
			return nil, errors.Wrapf(err, "components[%d]", i)
		}
		var c Component
		if err := decodeString(item["name"], "name", &c.Name); err != nil {
			return nil, errors.Wrapf(err, "components[%d]", i)
		}
		if err := decodeString(item["responsibility"], "responsibility", &c.Responsibility); err != nil {
			return nil, errors.Wrapf(err, "components[%d]", i)
		}
		a.Components = append(a.Components, c)
	}

	for _, list := range []struct {
		key string
		dst *[]string
	}{
		{"assumptions", &a.Assumptions},
		{"risks", &a.Risks},
		{"open_questions", &a.OpenQuestions},
	} {
		if err := decodeStringList(fields[list.key], list.key, list.dst); err != nil {
			return nil, err
		}
	}

	return &a, nil
}

var errSyntax = errors.New("json syntax")

// IsSyntaxError reports whether ParseAnalysis failed before the shape check
func IsSyntaxError(err error) bool {
	return errors.Is(err, errSyntax)
}

// MarshalAnalysis renders a with keys sorted, matching the output contract
func MarshalAnalysis(a *Analysis, indent bool) ([]byte, error) {
	if indent {
		return strictJSON.MarshalIndent(a, "", "  ")
	}
	return strictJSON.Marshal(a)
}

func checkKeys(fields map[string]jsoniter.RawMessage, want []string, what string) error {
	var missing, unknown []string
	for _, key := range want {
		if _, ok := fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	for key := range fields {
		if !contains(want, key) {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	switch {
	case len(missing) > 0 && len(unknown) > 0:
		return errors.NewSchemaError("%s is missing keys %v and has unexpected keys %v", what, missing, unknown)
	case len(missing) > 0:
		return errors.NewSchemaError("%s is missing keys %v", what, missing)
	case len(unknown) > 0:
		return errors.NewSchemaError("%s has unexpected keys %v", what, unknown)
	}
	return nil
}

func decodeString(raw jsoniter.RawMessage, key string, dst *string) error {
	if kind(raw) != '"' {
		return errors.NewSchemaError("%s must be a string", key)
	}
	if err := strictJSON.Unmarshal(raw, dst); err != nil {
		return errors.WrapSchema(err, "%s must be a string", key)
	}
	return nil
}

func decodeArray(raw jsoniter.RawMessage, key string, dst interface{}) error {
	if kind(raw) != '[' {
		return errors.NewSchemaError("%s must be a list", key)
	}
	if err := strictJSON.Unmarshal(raw, dst); err != nil {
		return errors.WrapSchema(err, "%s has invalid entries", key)
	}
	return nil
}

func decodeStringList(raw jsoniter.RawMessage, key string, dst *[]string) error {
	var items []jsoniter.RawMessage
	if err := decodeArray(raw, key, &items); err != nil {
		return err
	}
	out := make([]string, len(items))
	for i, item := range items {
		if err := decodeString(item, key, &out[i]); err != nil {
			return errors.NewSchemaError("%s[%d] must be a string", key, i)
		}
	}
	*dst = out
	return nil
}

// kind returns the first significant byte of a JSON value
func kind(raw jsoniter.RawMessage) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b
	}
	return 0
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
