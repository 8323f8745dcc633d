// Package chat runs the interactive chat loop.
//
// All mutable state lives in an explicit Session value. Slash commands
// are handlers that take the current Session and return the next one, so
// switching server, token or model never leaves stale state behind.
package chat

import (
	"context"

	"github.com/google/uuid"

	"github.com/teranos/strata/am"
	"github.com/teranos/strata/ai/discovery"
	"github.com/teranos/strata/finalize"
)

// Backend is the model server a session talks to
type Backend interface {
	finalize.Invoker
	discovery.Lister
	MaxTokensFor(ctx context.Context, model string, fallback int) int
}

// ClientFactory builds a backend for the given server settings
type ClientFactory func(settings am.UserSettings) (Backend, error)

// Session is the current server, credentials and model
type Session struct {
	Client    Backend
	Model     string
	MaxTokens int
	Settings  am.UserSettings
	ID        string
}

// NewSessionID returns a fresh session identifier
func NewSessionID() string {
	return uuid.NewString()
}

// Prompter asks the user for input outside the chat transcript
type Prompter interface {
	Text(label, def string) (string, error)
	Secret(label string) (string, error)
	Select(label string, options []string, def string) (string, error)
}
