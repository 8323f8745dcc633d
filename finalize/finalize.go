// Package finalize extracts a verified final answer from chat model output.
//
// Models that think out loud may leave the direct answer empty and put
// everything in a reasoning channel. The protocol is a literal sentinel:
// the authoritative answer follows "FINAL:". An Engine drives a bounded
// number of attempts, appending a corrective instruction after each
// unusable response, and either accepts an answer or gives up with an
// ExhaustedError describing what the last response contained.
package finalize

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/teranos/strata/errors"
)

// Sentinel marks the authoritative final answer
const Sentinel = "FINAL:"

// ErrEmptyOutput is returned by invokers when the API answered without any
// usable choice. The engine treats it as a missing answer, not a transport failure.
var ErrEmptyOutput = errors.New("model returned no usable output")

// Message is one turn of the outgoing conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Params are generation parameters passed through to the model
type Params struct {
	Temperature float64
	MaxTokens   int
	TopP        *float64
}

// Response is what the transport read from one model reply
type Response struct {
	Content   *string         // direct answer, nil when the field was absent
	Reasoning *string         // auxiliary reasoning text, nil when absent
	ModelID   string          // model that actually answered
	Raw       json.RawMessage // full response payload
}

// HasContent reports a non-empty direct answer
func (r *Response) HasContent() bool {
	return r != nil && r.Content != nil && *r.Content != ""
}

// HasReasoning reports non-empty reasoning text
func (r *Response) HasReasoning() bool {
	return r != nil && r.Reasoning != nil && *r.Reasoning != ""
}

// ContentText returns the direct answer or ""
func (r *Response) ContentText() string {
	if r == nil || r.Content == nil {
		return ""
	}
	return *r.Content
}

// ReasoningText returns the reasoning or ""
func (r *Response) ReasoningText() string {
	if r == nil || r.Reasoning == nil {
		return ""
	}
	return *r.Reasoning
}

// Invoker performs one blocking model call
type Invoker interface {
	ChatCompletion(ctx context.Context, model string, messages []Message, params Params) (*Response, error)
}

// InvokerFunc adapts a function to Invoker
type InvokerFunc func(ctx context.Context, model string, messages []Message, params Params) (*Response, error)

// ChatCompletion calls f
func (f InvokerFunc) ChatCompletion(ctx context.Context, model string, messages []Message, params Params) (*Response, error) {
	return f(ctx, model, messages, params)
}

// Channel names where an answer was found
type Channel string

const (
	ChannelNone      Channel = ""
	ChannelContent   Channel = "content"
	ChannelReasoning Channel = "reasoning"
)

// Extraction is the final answer candidate found in a response
type Extraction struct {
	Text    string
	Channel Channel
}

// Extract applies the answer rule: a non-empty direct answer always wins;
// otherwise the text after the first FINAL: in the reasoning, left-trimmed.
func Extract(resp *Response) (Extraction, bool) {
	if resp.HasContent() {
		return Extraction{Text: *resp.Content, Channel: ChannelContent}, true
	}
	if resp.HasReasoning() {
		if _, after, ok := strings.Cut(*resp.Reasoning, Sentinel); ok {
			return Extraction{Text: strings.TrimLeft(after, " \t\r\n"), Channel: ChannelReasoning}, true
		}
	}
	return Extraction{}, false
}

// HasSentinelPrefix reports whether text starts with FINAL: after leading whitespace
func HasSentinelPrefix(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), Sentinel)
}

// StripFinalPrefix removes a leading FINAL: and the whitespace after it.
// Text without the prefix is returned unchanged.
func StripFinalPrefix(text string) string {
	stripped := strings.TrimSpace(text)
	if strings.HasPrefix(stripped, Sentinel) {
		return strings.TrimLeft(stripped[len(Sentinel):], " \t\r\n")
	}
	return text
}
