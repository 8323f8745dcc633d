package chat

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/teranos/strata/am"
	"github.com/teranos/strata/ai/discovery"
	"github.com/teranos/strata/display"
	"github.com/teranos/strata/errors"
)

// DefaultBaseURL is offered when no server has been configured
const DefaultBaseURL = "https://api.openai.com"

// EnsureSettings fills in missing connection details interactively.
// Complete settings are returned unchanged and nothing is asked.
func (c *Chat) EnsureSettings(ctx context.Context, current am.UserSettings) (Session, error) {
	settings := current
	needsSave := false

	if strings.TrimSpace(settings.BaseURL) == "" || strings.TrimSpace(settings.APIKey) == "" {
		if c.deps.Prompter == nil {
			return Session{}, errors.WithHint(
				errors.NewConfigError("server URL and access token are required"),
				"pass --base-url and --api-key, or run chat in a terminal")
		}
		fmt.Fprintln(c.deps.Out, "Let's connect to a model server.")

		def := settings.BaseURL
		if def == "" {
			def = DefaultBaseURL
		}
		url, err := c.deps.Prompter.Text("Server URL", def)
		if err != nil {
			return Session{}, err
		}
		settings.BaseURL = strings.TrimSpace(url)

		token := strings.TrimSpace(settings.APIKey)
		for token == "" {
			if token, err = c.deps.Prompter.Secret("Access token"); err != nil {
				return Session{}, err
			}
			token = strings.TrimSpace(token)
		}
		settings.APIKey = token

		ca, err := c.deps.Prompter.Text("PEM bundle file location (optional)", settings.CABundle)
		if err != nil {
			return Session{}, err
		}
		settings.CABundle = strings.TrimSpace(ca)
		needsSave = true
	}

	if c.deps.NewClient == nil {
		return Session{}, errors.New("chat: no client factory configured")
	}
	client, err := c.deps.NewClient(settings)
	if err != nil {
		return Session{}, err
	}

	if settings.Model == "" {
		settings.Model = SelectModel(ctx, client, c.deps.Candidates, c.deps.Prompter, c.deps.Out)
		needsSave = true
	}

	if needsSave {
		if err := c.save(settings); err != nil {
			return Session{}, err
		}
	}

	return Session{
		Client:    client,
		Model:     settings.Model,
		MaxTokens: client.MaxTokensFor(ctx, settings.Model, c.deps.FallbackMaxTokens),
		Settings:  settings,
		ID:        NewSessionID(),
	}, nil
}

// SelectModel discovers models and lets the user pick one. Discovery
// problems fall back to the default model instead of failing.
func SelectModel(ctx context.Context, lister discovery.Lister, candidates []string, prompter Prompter, out io.Writer) string {
	results, err := discovery.Discover(ctx, lister, discovery.PreferAuto, candidates)
	if err != nil {
		display.ErrorPanel(out, err)
		return discovery.FallbackModel
	}
	if len(results) == 0 {
		fmt.Fprintf(out, "No models discovered; falling back to %s.\n", discovery.FallbackModel)
		return discovery.FallbackModel
	}

	choices := discovery.Choices(results)
	if prompter == nil || len(choices) == 1 {
		return choices[0]
	}

	options := make([]string, len(choices))
	for i, id := range choices {
		options[i] = strconv.Itoa(i+1) + ". " + id
	}
	picked, err := prompter.Select(fmt.Sprintf("Select model [1-%d]", len(options)), options, options[0])
	if err != nil {
		return choices[0]
	}
	for i, opt := range options {
		if opt == picked {
			return choices[i]
		}
	}
	return choices[0]
}
