package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/teranos/strata/am"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/logger"
)

// CommandResult tells the loop what a slash command did
type CommandResult struct {
	Handled      bool
	Quit         bool
	ResetHistory bool
	Message      string // shown to the user when non-empty
}

// Handler runs one slash command
type Handler func(ctx context.Context, c *Chat, s Session, args []string) (Session, CommandResult, error)

type command struct {
	usage   string
	help    string
	handler Handler
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"/server": {"/server [url] [ca-bundle]", "switch server and optional CA bundle", handleServer},
		"/token":  {"/token [token]", "replace the access token", handleToken},
		"/model":  {"/model [id]", "switch model, choosing from discovered models when no id is given", handleModel},
		"/reset":  {"/reset", "clear the conversation history", handleReset},
		"/help":   {"/help", "list commands", handleHelp},
		"/quit":   {"/quit", "leave the chat", handleQuit},
		"/exit":   {"/exit", "leave the chat", handleQuit},
	}
}

// IsCommand reports whether a line is a slash command
func IsCommand(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "/")
}

// ParseCommand splits a slash command line with shell quoting rules
func ParseCommand(line string) (string, []string, error) {
	words, err := shellquote.Split(strings.TrimSpace(line))
	if err != nil {
		return "", nil, errors.Wrap(errors.NewInvalidRequestError("%s", err.Error()), "invalid command")
	}
	if len(words) == 0 {
		return "", nil, errors.NewInvalidRequestError("empty command")
	}
	return strings.ToLower(words[0]), words[1:], nil
}

// Dispatch runs the command on line against s
func (c *Chat) Dispatch(ctx context.Context, s Session, line string) (Session, CommandResult, error) {
	name, args, err := ParseCommand(line)
	if err != nil {
		return s, CommandResult{Handled: true}, err
	}
	cmd, ok := commands[name]
	if !ok {
		return s, CommandResult{Handled: true, Message: fmt.Sprintf("Unknown command %s. Type /help for commands.", name)}, nil
	}
	c.logger.Debugw("Chat command", "command", name, logger.FieldCount, len(args))
	return cmd.handler(ctx, c, s, args)
}

func handleServer(ctx context.Context, c *Chat, s Session, args []string) (Session, CommandResult, error) {
	next := s.Settings
	switch {
	case len(args) >= 1:
		next.BaseURL = args[0]
		if len(args) >= 2 {
			next.CABundle = args[1]
		}
	default:
		if c.deps.Prompter == nil {
			return s, CommandResult{Handled: true}, errors.NewInvalidRequestError("usage: /server <url> [ca-bundle]")
		}
		url, err := c.deps.Prompter.Text("Server URL", next.BaseURL)
		if err != nil {
			return s, CommandResult{Handled: true}, err
		}
		ca, err := c.deps.Prompter.Text("PEM bundle file location (optional)", next.CABundle)
		if err != nil {
			return s, CommandResult{Handled: true}, err
		}
		next.BaseURL, next.CABundle = url, ca
	}
	if strings.TrimSpace(next.BaseURL) == "" {
		return s, CommandResult{Handled: true}, errors.NewInvalidRequestError("server URL must not be empty")
	}

	updated, err := c.switchSettings(s, next)
	if err != nil {
		return s, CommandResult{Handled: true}, err
	}
	return updated, CommandResult{Handled: true, Message: "Updated server configuration."}, nil
}

func handleToken(ctx context.Context, c *Chat, s Session, args []string) (Session, CommandResult, error) {
	token := ""
	if len(args) > 0 {
		token = strings.TrimSpace(args[0])
	}
	for token == "" {
		if c.deps.Prompter == nil {
			return s, CommandResult{Handled: true}, errors.NewInvalidRequestError("usage: /token <token>")
		}
		var err error
		if token, err = c.deps.Prompter.Secret("Access token"); err != nil {
			return s, CommandResult{Handled: true}, err
		}
		token = strings.TrimSpace(token)
	}

	next := s.Settings
	next.APIKey = token
	updated, err := c.switchSettings(s, next)
	if err != nil {
		return s, CommandResult{Handled: true}, err
	}
	return updated, CommandResult{Handled: true, Message: "Updated access token."}, nil
}

func handleModel(ctx context.Context, c *Chat, s Session, args []string) (Session, CommandResult, error) {
	model := ""
	if len(args) > 0 {
		model = args[0]
	} else {
		model = SelectModel(ctx, s.Client, c.deps.Candidates, c.deps.Prompter, c.deps.Out)
	}

	next := s
	next.Model = model
	next.Settings.Model = model
	next.MaxTokens = s.Client.MaxTokensFor(ctx, model, c.deps.FallbackMaxTokens)
	if err := c.save(next.Settings); err != nil {
		return s, CommandResult{Handled: true}, err
	}
	return next, CommandResult{Handled: true, Message: fmt.Sprintf("Using model %s.", model)}, nil
}

func handleReset(ctx context.Context, c *Chat, s Session, args []string) (Session, CommandResult, error) {
	return s, CommandResult{Handled: true, ResetHistory: true, Message: "Conversation history cleared."}, nil
}

func handleQuit(ctx context.Context, c *Chat, s Session, args []string) (Session, CommandResult, error) {
	return s, CommandResult{Handled: true, Quit: true}, nil
}

func handleHelp(ctx context.Context, c *Chat, s Session, args []string) (Session, CommandResult, error) {
	return s, CommandResult{Handled: true, Message: Help()}, nil
}

// Help lists the slash commands
func Help() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		cmd := commands[name]
		fmt.Fprintf(&b, "%-28s %s\n", cmd.usage, cmd.help)
	}
	return strings.TrimRight(b.String(), "\n")
}

// switchSettings persists new server settings and rebuilds the client.
// On failure the session is unchanged.
func (c *Chat) switchSettings(s Session, next am.UserSettings) (Session, error) {
	if c.deps.NewClient == nil {
		return s, errors.New("chat: no client factory configured")
	}
	client, err := c.deps.NewClient(next)
	if err != nil {
		return s, err
	}
	if err := c.save(next); err != nil {
		return s, err
	}
	s.Client = client
	s.Settings = next
	return s, nil
}

func (c *Chat) save(settings am.UserSettings) error {
	if c.deps.SaveSettings == nil {
		return nil
	}
	if err := c.deps.SaveSettings(settings); err != nil {
		return errors.Wrap(err, "failed to save chat settings")
	}
	return nil
}
