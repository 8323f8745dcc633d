package openai

import (
	"context"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/teranos/strata/ai/tracker"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/finalize"
)

type chatCompletionRequest struct {
	Model       string             `json:"model"`
	Messages    []finalize.Message `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int          `json:"index"`
		Message      replyMessage `json:"message"`
		FinishReason string       `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// replyMessage keeps the text fields raw: servers disagree on whether an
// absent answer is null, "" or missing, and some send structured parts.
type replyMessage struct {
	Role             string              `json:"role"`
	Content          jsoniter.RawMessage `json:"content"`
	ReasoningContent jsoniter.RawMessage `json:"reasoning_content"`
	Reasoning        jsoniter.RawMessage `json:"reasoning"`
}

// textField returns the string value of raw, or nil for null, absent or
// non-string values
func textField(raw jsoniter.RawMessage) *string {
	if len(raw) == 0 || raw[0] != '"' {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

// ChatCompletion sends one chat completion request. It implements
// finalize.Invoker. A reply without choices yields finalize.ErrEmptyOutput.
func (c *Client) ChatCompletion(ctx context.Context, model string, messages []finalize.Message, params finalize.Params) (*finalize.Response, error) {
	request := chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		TopP:        params.TopP,
	}
	modelConfig := tracker.NewModelConfig(&params.Temperature, &params.MaxTokens, params.TopP)
	requestTime := time.Now()

	data, status, err := c.do(ctx, http.MethodPost, chatCompletionsPath, request)
	if err != nil {
		c.track(failureUsage(model, requestTime, modelConfig, err))
		return nil, err
	}

	var decoded chatCompletionResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		apiErr := &APIError{StatusCode: status, Endpoint: chatCompletionsPath, Message: "Invalid JSON"}
		c.track(failureUsage(model, requestTime, modelConfig, apiErr))
		return nil, apiErr
	}

	responseTime := time.Now()
	usage := &tracker.ModelUsage{
		ModelName:         model,
		ModelConfig:       modelConfig,
		RequestTimestamp:  requestTime,
		ResponseTimestamp: &responseTime,
		Success:           true,
		StatusCode:        &status,
	}
	if decoded.Usage != nil {
		tokens := decoded.Usage.TotalTokens
		usage.TokensUsed = &tokens
	}
	c.track(usage)

	if len(decoded.Choices) == 0 {
		return nil, errors.Wrapf(finalize.ErrEmptyOutput, "%s returned no choices", model)
	}

	msg := decoded.Choices[0].Message
	reasoning := textField(msg.ReasoningContent)
	if reasoning == nil {
		reasoning = textField(msg.Reasoning)
	}

	modelID := decoded.Model
	if modelID == "" {
		modelID = model
	}

	c.logger.Debugw("Chat completion",
		"model", modelID,
		"finish_reason", decoded.Choices[0].FinishReason,
		"content_present", textField(msg.Content) != nil,
		"reasoning_present", reasoning != nil,
	)

	return &finalize.Response{
		Content:   textField(msg.Content),
		Reasoning: reasoning,
		ModelID:   modelID,
		Raw:       append([]byte(nil), data...),
	}, nil
}
