package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/strata/ai/tracker"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/finalize"
	strtest "github.com/teranos/strata/internal/testing"
	"github.com/teranos/strata/internal/util"
)

// fakeServer answers each request with the next scripted reply
type fakeServer struct {
	t       *testing.T
	mu      sync.Mutex
	replies []reply
	calls   []recorded
	server  *httptest.Server
}

type reply struct {
	status int
	body   string
}

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func newFakeServer(t *testing.T, replies ...reply) *fakeServer {
	f := &fakeServer{t: t, replies: replies}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec := recorded{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		assert.NoError(f.t, json.Unmarshal(data, &rec.body))
	}
	f.calls = append(f.calls, rec)

	if len(f.replies) == 0 {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	next := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(next.status)
	io.WriteString(w, next.body)
}

func (f *fakeServer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// noSleep records backoff delays instead of waiting
type noSleep struct {
	delays []time.Duration
}

func (n *noSleep) sleep(ctx context.Context, d time.Duration) error {
	n.delays = append(n.delays, d)
	return ctx.Err()
}

func newTestClient(t *testing.T, f *fakeServer, mutate ...func(*Config)) (*Client, *noSleep) {
	t.Helper()
	ns := &noSleep{}
	cfg := Config{
		BaseURL: f.server.URL + "/",
		APIKey:  "sk-test",
		Logger:  zaptest.NewLogger(t).Sugar(),
		Sleep:   ns.sleep,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	client, err := NewClientWithHTTPClient(cfg, f.server.Client())
	require.NoError(t, err)
	return client, ns
}

const okReply = `{
  "id": "chatcmpl-1",
  "model": "gpt-oss-120b",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "FINAL: hello", "reasoning_content": "thinking"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func TestChatCompletion(t *testing.T) {
	f := newFakeServer(t, reply{200, okReply})
	client, _ := newTestClient(t, f)

	messages := []finalize.Message{
		{Role: finalize.RoleSystem, Content: "be brief"},
		{Role: finalize.RoleUser, Content: "hi"},
	}
	resp, err := client.ChatCompletion(context.Background(), "gpt-oss-120b", messages, finalize.Params{
		Temperature: 0,
		MaxTokens:   256,
		TopP:        util.Ptr(1.0),
	})
	require.NoError(t, err)

	assert.Equal(t, "FINAL: hello", resp.ContentText())
	assert.Equal(t, "thinking", resp.ReasoningText())
	assert.Equal(t, "gpt-oss-120b", resp.ModelID)
	assert.JSONEq(t, okReply, string(resp.Raw))

	require.Len(t, f.calls, 1)
	call := f.calls[0]
	assert.Equal(t, http.MethodPost, call.method)
	assert.Equal(t, "/v1/chat/completions", call.path)
	assert.Equal(t, "Bearer sk-test", call.auth)
	assert.Equal(t, "gpt-oss-120b", call.body["model"])
	assert.Equal(t, float64(256), call.body["max_tokens"])
	assert.Equal(t, float64(0), call.body["temperature"])
	assert.Equal(t, 1.0, call.body["top_p"])
	assert.Len(t, call.body["messages"], 2)
}

func TestChatCompletionOmitsTopPAndAuthWhenUnset(t *testing.T) {
	f := newFakeServer(t, reply{200, okReply})
	client, _ := newTestClient(t, f, func(c *Config) { c.APIKey = "" })

	_, err := client.ChatCompletion(context.Background(), "m", nil, finalize.Params{MaxTokens: 10})
	require.NoError(t, err)

	assert.Empty(t, f.calls[0].auth)
	_, hasTopP := f.calls[0].body["top_p"]
	assert.False(t, hasTopP)
}

func TestChatCompletionMessageFields(t *testing.T) {
	tests := []struct {
		name          string
		message       string
		wantContent   *string
		wantReasoning *string
	}{
		{
			name:          "null content with reasoning_content",
			message:       `{"content": null, "reasoning_content": "FINAL: x"}`,
			wantReasoning: util.Ptr("FINAL: x"),
		},
		{
			name:          "reasoning fallback field",
			message:       `{"content": "", "reasoning": "thoughts"}`,
			wantContent:   util.Ptr(""),
			wantReasoning: util.Ptr("thoughts"),
		},
		{
			name:          "reasoning_content wins over reasoning",
			message:       `{"content": "a", "reasoning_content": "r1", "reasoning": "r2"}`,
			wantContent:   util.Ptr("a"),
			wantReasoning: util.Ptr("r1"),
		},
		{
			name:    "non-string content",
			message: `{"content": [{"type": "text", "text": "a"}]}`,
		},
		{
			name:    "absent fields",
			message: `{"role": "assistant"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"model": "m", "choices": [{"message": ` + tt.message + `}]}`
			f := newFakeServer(t, reply{200, body})
			client, _ := newTestClient(t, f)

			resp, err := client.ChatCompletion(context.Background(), "m", nil, finalize.Params{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantContent, resp.Content)
			assert.Equal(t, tt.wantReasoning, resp.Reasoning)
		})
	}
}

func TestChatCompletionEmptyChoices(t *testing.T) {
	f := newFakeServer(t, reply{200, `{"model": "m", "choices": []}`})
	client, _ := newTestClient(t, f)

	_, err := client.ChatCompletion(context.Background(), "m", nil, finalize.Params{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, finalize.ErrEmptyOutput))
}

func TestChatCompletionModelFallsBackToRequested(t *testing.T) {
	f := newFakeServer(t, reply{200, `{"choices": [{"message": {"content": "ok"}}]}`})
	client, _ := newTestClient(t, f)

	resp, err := client.ChatCompletion(context.Background(), "requested", nil, finalize.Params{})
	require.NoError(t, err)
	assert.Equal(t, "requested", resp.ModelID)
}

func TestChatCompletionInvalidJSON(t *testing.T) {
	f := newFakeServer(t, reply{200, `not json`})
	client, _ := newTestClient(t, f)

	_, err := client.ChatCompletion(context.Background(), "m", nil, finalize.Params{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 200, apiErr.StatusCode)
	assert.Equal(t, "Invalid JSON", apiErr.Message)
}

func TestRetryThenSuccess(t *testing.T) {
	f := newFakeServer(t, reply{503, `busy`}, reply{429, `slow down`}, reply{200, okReply})
	client, ns := newTestClient(t, f)

	resp, err := client.ChatCompletion(context.Background(), "m", nil, finalize.Params{})
	require.NoError(t, err)
	assert.Equal(t, "FINAL: hello", resp.ContentText())
	assert.Equal(t, 3, f.callCount())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, ns.delays)
}

func TestRetriesExhausted(t *testing.T) {
	f := newFakeServer(t, reply{500, `boom`})
	client, ns := newTestClient(t, f)

	_, err := client.ChatCompletion(context.Background(), "m", nil, finalize.Params{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 500, apiErr.StatusCode)
	assert.Equal(t, "boom", apiErr.Message)
	assert.Equal(t, "/v1/chat/completions", apiErr.Endpoint)
	assert.Equal(t, MaxRetries, f.callCount())
	assert.Len(t, ns.delays, MaxRetries-1)
}

func TestNonRetryableStatus(t *testing.T) {
	f := newFakeServer(t, reply{401, `{"error": "bad key"}`})
	client, ns := newTestClient(t, f)

	_, err := client.ChatCompletion(context.Background(), "m", nil, finalize.Params{})
	require.Error(t, err)
	assert.Equal(t, 401, StatusCode(err))
	assert.True(t, IsAuthError(err))
	assert.Equal(t, 1, f.callCount())
	assert.Empty(t, ns.delays)
}

func TestNetworkError(t *testing.T) {
	f := newFakeServer(t)
	client, ns := newTestClient(t, f)
	f.server.Close()

	_, err := client.ListModels(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.Len(t, ns.delays, MaxRetries-1)
}

func TestCancelledContextIsNotRetried(t *testing.T) {
	f := newFakeServer(t, reply{200, okReply})
	client, ns := newTestClient(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ChatCompletion(ctx, "m", nil, finalize.Params{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, IsNetworkError(err))
	assert.Empty(t, ns.delays)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, Backoff(1))
	assert.Equal(t, time.Second, Backoff(2))
	assert.Equal(t, 2*time.Second, Backoff(3))
}

func TestNewClientRejectsBadBaseURL(t *testing.T) {
	for _, base := range []string{"", "not a url", "ftp://example.com"} {
		_, err := NewClient(Config{BaseURL: base})
		require.Error(t, err, base)
		assert.True(t, errors.IsConfigError(err), base)
	}
}

func TestNewClientTrimsBaseURL(t *testing.T) {
	client, err := NewClient(Config{BaseURL: " https://api.example.com/// "})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", client.BaseURL())
	assert.False(t, client.IsConfigured())
}

func TestUsageTracking(t *testing.T) {
	db := strtest.CreateTestDB(t)
	usage := tracker.NewUsageTracker(db)

	f := newFakeServer(t, reply{200, okReply}, reply{400, `bad request`})
	client, _ := newTestClient(t, f, func(c *Config) {
		c.Tracker = usage
		c.OperationType = "chat"
		c.SessionID = "s-1"
	})

	_, err := client.ChatCompletion(context.Background(), "gpt-oss-120b", nil, finalize.Params{MaxTokens: 5})
	require.NoError(t, err)
	_, err = client.ChatCompletion(context.Background(), "gpt-oss-120b", nil, finalize.Params{MaxTokens: 5})
	require.Error(t, err)

	stats, err := usage.GetUsageStats(time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRequests)
	assert.Equal(t, 1, stats.SuccessfulRequests)
	assert.Equal(t, 15, stats.TotalTokens)

	var operation, session, endpoint string
	var status int
	err = db.QueryRow("SELECT operation_type, session_id, endpoint, status_code FROM model_usage WHERE success = 0").
		Scan(&operation, &session, &endpoint, &status)
	require.NoError(t, err)
	assert.Equal(t, "chat", operation)
	assert.Equal(t, "s-1", session)
	assert.Equal(t, client.BaseURL(), endpoint)
	assert.Equal(t, 400, status)
}
