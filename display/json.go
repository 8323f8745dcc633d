package display

import (
	"flag"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/teranos/strata/ai/llm"
	"github.com/teranos/strata/errors"
)

// sortedJSON writes stable key order so output diffs cleanly
var sortedJSON = jsoniter.Config{
	EscapeHTML:  false,
	SortMapKeys: true,
}.Froze()

// MarshalJSON marshals JSON with compact formatting for LLM callers,
// pretty formatting for human-readable output
func MarshalJSON(v interface{}) ([]byte, error) {
	// Tests always get pretty output so golden comparisons are stable
	if flag.Lookup("test.v") == nil && llm.IsLLMEnvironment() {
		return sortedJSON.Marshal(v)
	}
	return sortedJSON.MarshalIndent(v, "", "  ")
}

// OutputJSON marshals v and writes it followed by a newline
func OutputJSON(w io.Writer, v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// OutputRawJSON re-indents a raw payload with sorted keys. Payloads that
// are not valid JSON are written unchanged.
func OutputRawJSON(w io.Writer, raw []byte) error {
	var v interface{}
	if err := sortedJSON.Unmarshal(raw, &v); err != nil {
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}
	return OutputJSON(w, v)
}
