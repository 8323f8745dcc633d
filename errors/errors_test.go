package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewf(t *testing.T) {
	err := Newf("error: %s %d", "test", 42)
	require.NotNil(t, err)
	assert.Equal(t, "error: test 42", err.Error())
}

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestWithHint(t *testing.T) {
	err := WithHint(New("error"), "try this fix")

	hints := GetAllHints(err)
	require.Len(t, hints, 1)
	assert.Equal(t, "try this fix", hints[0])
}

func TestClassifiedErrorsKeepMessage(t *testing.T) {
	err := NewPromptError("missing template for %s/%s", "chat", "system")
	assert.Equal(t, "missing template for chat/system", err.Error())
	assert.True(t, IsPromptError(err))
	assert.False(t, IsConfigError(err))
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	base := NewConfigError("prompt layer not found: %s", "site")
	wrapped := fmt.Errorf("loading stack: %w", Wrap(base, "resolve"))

	assert.True(t, IsConfigError(wrapped))
	assert.Contains(t, wrapped.Error(), "prompt layer not found: site")
}

func TestWrapPrompt(t *testing.T) {
	cause := New("yaml: line 3: mapping values are not allowed")
	err := WrapPrompt(cause, "invalid variables file %s", "base/variables.yaml")

	assert.True(t, IsPromptError(err))
	assert.True(t, Is(err, cause))
	assert.Contains(t, err.Error(), "invalid variables file base/variables.yaml")
}

func TestSchemaErrorIsExtractionError(t *testing.T) {
	err := NewSchemaError("unexpected keys: %v", []string{"extra"})

	assert.True(t, IsSchemaError(err))
	assert.True(t, IsExtractionError(err))
	assert.False(t, IsPromptError(err))
}

func TestExtractionErrorIsNotSchemaError(t *testing.T) {
	err := NewExtractionError("no final answer")

	assert.True(t, IsExtractionError(err))
	assert.False(t, IsSchemaError(err))
}

func TestNilIsUnclassified(t *testing.T) {
	assert.False(t, IsConfigError(nil))
	assert.False(t, IsPromptError(nil))
	assert.False(t, IsExtractionError(nil))
	assert.False(t, IsSchemaError(nil))
	assert.False(t, IsNotFoundError(nil))
}

func TestNotFound(t *testing.T) {
	err := NewNotFoundError("model %q", "gpt-x")
	assert.True(t, IsNotFoundError(err))
	assert.Equal(t, `model "gpt-x"`, err.Error())
}
