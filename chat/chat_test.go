package chat

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/strata/am"
	"github.com/teranos/strata/display"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/finalize"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	display.PlainOutput = true
	os.Exit(m.Run())
}

func newTestChat(t *testing.T, backend *fakeBackend, opts Options) (*Chat, *bytes.Buffer, *saved) {
	t.Helper()
	var out bytes.Buffer
	store := &saved{}
	c := New(Deps{
		Out:          &out,
		Prompter:     &fakePrompter{},
		NewClient:    func(am.UserSettings) (Backend, error) { return backend, nil },
		SaveSettings: store.save,
		Logger:       zaptest.NewLogger(t).Sugar(),
	}, opts)
	return c, &out, store
}

func testSession(b *fakeBackend) Session {
	return Session{
		Client:   b,
		Model:    "m1",
		Settings: am.UserSettings{BaseURL: "https://a.example", APIKey: "k", Model: "m1"},
		ID:       NewSessionID(),
	}
}

func TestRunKeepsHistory(t *testing.T) {
	backend := &fakeBackend{replies: []reply{{content: str("first")}, {content: str("second")}}}
	c, out, _ := newTestChat(t, backend, Options{SystemPrompt: "sys", MaxAttempts: 2})

	_, err := c.Run(context.Background(), testSession(backend), &lines{items: []string{"hello", "  ", "again"}})
	require.NoError(t, err)

	require.Len(t, backend.calls, 2)
	assert.Equal(t, []finalize.Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "first"},
		{Role: "user", Content: "again"},
	}, backend.calls[1])
	assert.Contains(t, out.String(), "Assistant")
	assert.Contains(t, out.String(), "second")
}

func TestNoHistorySendsSystemAndCurrentTurn(t *testing.T) {
	backend := &fakeBackend{}
	c, _, _ := newTestChat(t, backend, Options{SystemPrompt: "sys", NoHistory: true, MaxAttempts: 2})

	_, err := c.Run(context.Background(), testSession(backend), &lines{items: []string{"one", "two"}})
	require.NoError(t, err)

	require.Len(t, backend.calls, 2)
	assert.Equal(t, []finalize.Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "two"},
	}, backend.calls[1])
}

func TestTurnRetriesReasoningOnly(t *testing.T) {
	backend := &fakeBackend{replies: []reply{
		{reasoning: str("thinking")},
		{content: str("FINAL: answer")},
	}}
	c, out, _ := newTestChat(t, backend, Options{SystemPrompt: "sys", MaxAttempts: 2})

	history, err := c.Turn(context.Background(), testSession(backend), c.initialHistory(), "q")
	require.NoError(t, err)

	require.Len(t, backend.calls, 2)
	last := backend.calls[1][len(backend.calls[1])-1]
	assert.Equal(t, finalize.CorrectNoAnswerText, last.Content)
	assert.Equal(t, "answer", history[len(history)-1].Content)
	assert.Contains(t, out.String(), "**Model:** m1")
}

func TestTurnExhaustedShowsReasoning(t *testing.T) {
	backend := &fakeBackend{replies: []reply{{reasoning: str("only thoughts")}}}
	c, out, _ := newTestChat(t, backend, Options{SystemPrompt: "sys", MaxAttempts: 2})

	history, err := c.Turn(context.Background(), testSession(backend), c.initialHistory(), "q")
	require.NoError(t, err)

	assert.Len(t, backend.calls, 2)
	assert.Contains(t, out.String(), NoAnswerWarning)
	assert.Contains(t, out.String(), "Assistant Reasoning (debug)")
	assert.Equal(t, "only thoughts", history[len(history)-1].Content)
}

func TestTurnTransportErrorKeepsHistory(t *testing.T) {
	backend := &fakeBackend{replies: []reply{{err: errors.New("connection refused")}}}
	c, _, _ := newTestChat(t, backend, Options{SystemPrompt: "sys", MaxAttempts: 2})

	start := c.initialHistory()
	history, err := c.Turn(context.Background(), testSession(backend), start, "q")
	require.Error(t, err)
	assert.Equal(t, start, history)
	assert.Len(t, backend.calls, 1)
}

func TestRunContinuesAfterTransportError(t *testing.T) {
	backend := &fakeBackend{replies: []reply{{err: errors.New("connection refused")}, {content: str("fine")}}}
	c, out, _ := newTestChat(t, backend, Options{SystemPrompt: "sys", MaxAttempts: 2})

	_, err := c.Run(context.Background(), testSession(backend), &lines{items: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "connection refused")
	assert.Contains(t, out.String(), "fine")
}

func TestRawResponse(t *testing.T) {
	backend := &fakeBackend{}
	c, out, _ := newTestChat(t, backend, Options{SystemPrompt: "sys", RawResponse: true, MaxAttempts: 1})

	_, err := c.Turn(context.Background(), testSession(backend), c.initialHistory(), "q")
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"model": "m1"`)
	assert.NotContains(t, out.String(), "Assistant")
}

func TestShowReasoning(t *testing.T) {
	backend := &fakeBackend{replies: []reply{{content: str("answer"), reasoning: str("because")}}}
	c, out, _ := newTestChat(t, backend, Options{SystemPrompt: "sys", ShowReasoning: true, MaxAttempts: 1})

	_, err := c.Turn(context.Background(), testSession(backend), c.initialHistory(), "q")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Assistant Reasoning (debug)")
	assert.Contains(t, out.String(), "because")
}

func TestRunCancelled(t *testing.T) {
	backend := &fakeBackend{}
	c, _, _ := newTestChat(t, backend, Options{SystemPrompt: "sys"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Run(ctx, testSession(backend), &lines{items: []string{"a"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, backend.calls)
}

func TestLineReader(t *testing.T) {
	var out bytes.Buffer
	r := NewLineReader(bytes.NewBufferString("one\ntwo\n"), &out)

	line, err := r.ReadLine("You> ")
	require.NoError(t, err)
	assert.Equal(t, "one", line)
	line, err = r.ReadLine("You> ")
	require.NoError(t, err)
	assert.Equal(t, "two", line)
	_, err = r.ReadLine("You> ")
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "You> You> You> ", out.String())
}
