package openai

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/teranos/strata/ai/tracker"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/finalize"
)

// ErrNoModelList is returned when /v1/models answers without a data array
var ErrNoModelList = errors.New("models endpoint returned no model list")

// ListModels returns the ids listed by GET /v1/models, in server order.
// Entries without an id are skipped.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	data, status, err := c.do(ctx, http.MethodGet, modelsPath, nil)
	if err != nil {
		return nil, err
	}

	var decoded map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, &APIError{StatusCode: status, Endpoint: modelsPath, Message: "Invalid JSON"}
	}

	var items []map[string]any
	raw, ok := decoded["data"]
	if !ok || json.Unmarshal(raw, &items) != nil || items == nil {
		return nil, ErrNoModelList
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		if id, ok := item["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ProbeChatCompletion sends a one-token completion to test whether model
// is served. 400, 403 and 404 mean the model is not usable; other
// failures are returned.
func (c *Client) ProbeChatCompletion(ctx context.Context, model string) (bool, error) {
	request := chatCompletionRequest{
		Model:     model,
		Messages:  []finalize.Message{{Role: finalize.RoleUser, Content: "ping"}},
		MaxTokens: 1,
	}
	requestTime := time.Now()

	_, status, err := c.do(ctx, http.MethodPost, chatCompletionsPath, request)
	if err != nil {
		c.track(failureUsage(model, requestTime, nil, err))
		switch StatusCode(err) {
		case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
			return false, nil
		}
		return false, err
	}

	responseTime := time.Now()
	c.track(&tracker.ModelUsage{
		ModelName:         model,
		RequestTimestamp:  requestTime,
		ResponseTimestamp: &responseTime,
		Success:           true,
		StatusCode:        &status,
	})
	return status/100 == 2, nil
}

// GetModelInfo returns the metadata object of GET /v1/models/{id}
func (c *Client) GetModelInfo(ctx context.Context, model string) (map[string]any, error) {
	endpoint := modelsPath + "/" + url.PathEscape(model)
	data, status, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var info map[string]any
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, &APIError{StatusCode: status, Endpoint: endpoint, Message: "Invalid JSON"}
	}
	return info, nil
}

// maxTokenKeys are checked in order for an output token limit
var maxTokenKeys = []string{"max_output_tokens", "max_completion_tokens", "max_tokens"}

// ResolveMaxTokens returns the first positive integer limit in info, or fallback
func ResolveMaxTokens(info map[string]any, fallback int) int {
	for _, key := range maxTokenKeys {
		switch v := info[key].(type) {
		case float64:
			if v > 0 && v == math.Trunc(v) && v <= math.MaxInt32 {
				return int(v)
			}
		case int:
			if v > 0 {
				return v
			}
		case int64:
			if v > 0 {
				return int(v)
			}
		}
	}
	return fallback
}

// MaxTokensFor looks up the model's output limit, falling back on any error
func (c *Client) MaxTokensFor(ctx context.Context, model string, fallback int) int {
	info, err := c.GetModelInfo(ctx, model)
	if err != nil {
		c.logger.Debugw("Model info unavailable, using fallback max tokens",
			"model", model, "fallback", fallback, "error", err.Error())
		return fallback
	}
	return ResolveMaxTokens(info, fallback)
}
