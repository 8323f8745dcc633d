package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/strata/am"
	"github.com/teranos/strata/display"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/finalize"
	"github.com/teranos/strata/logger"
)

// NoAnswerWarning is shown when a turn ends without an accepted answer
const NoAnswerWarning = "Model did not produce a final answer; showing reasoning only."

// InputProvider yields user lines. io.EOF ends the chat.
type InputProvider interface {
	ReadLine(prompt string) (string, error)
}

// LineReader reads lines from a stream, echoing the prompt to Out
type LineReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewLineReader returns an InputProvider over in
func NewLineReader(in io.Reader, out io.Writer) *LineReader {
	return &LineReader{scanner: bufio.NewScanner(in), out: out}
}

func (r *LineReader) ReadLine(prompt string) (string, error) {
	if r.out != nil {
		fmt.Fprint(r.out, prompt)
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", errors.Wrap(err, "failed to read input")
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

// Deps are the collaborators a chat needs
type Deps struct {
	Out               io.Writer
	Prompter          Prompter
	NewClient         ClientFactory
	SaveSettings      func(am.UserSettings) error
	Candidates        []string
	FallbackMaxTokens int
	Logger            *zap.SugaredLogger
}

// Options control one chat run
type Options struct {
	SystemPrompt  string
	Temperature   float64
	NoHistory     bool
	RawResponse   bool
	ShowReasoning bool
	MaxAttempts   int
}

// Chat is an interactive conversation with a model
type Chat struct {
	deps   Deps
	opts   Options
	logger *zap.SugaredLogger
}

// New returns a chat. Out defaults to io.Discard.
func New(deps Deps, opts Options) *Chat {
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	log := deps.Logger
	if log == nil {
		log = logger.ComponentLogger("chat")
	}
	return &Chat{deps: deps, opts: opts, logger: log}
}

// Run reads lines until EOF or /quit. Model and transport failures are
// shown and the chat continues; only input and cancellation errors end it.
func (c *Chat) Run(ctx context.Context, s Session, input InputProvider) (Session, error) {
	history := c.initialHistory()
	c.logger.Infow("Chat started",
		logger.FieldSessionID, s.ID,
		logger.FieldModel, s.Model,
		"history", !c.opts.NoHistory)

	for {
		if err := ctx.Err(); err != nil {
			return s, errors.Wrap(err, "chat cancelled")
		}
		line, err := input.ReadLine("You> ")
		if err == io.EOF {
			return s, nil
		}
		if err != nil {
			return s, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if IsCommand(line) {
			next, result, err := c.Dispatch(ctx, s, line)
			if err != nil {
				display.ErrorPanel(c.deps.Out, err)
				continue
			}
			s = next
			if result.Message != "" {
				fmt.Fprintln(c.deps.Out, result.Message)
			}
			if result.ResetHistory {
				history = c.initialHistory()
			}
			if result.Quit {
				return s, nil
			}
			continue
		}

		history, err = c.Turn(ctx, s, history, line)
		if err != nil {
			if ctx.Err() != nil {
				return s, errors.Wrap(ctx.Err(), "chat cancelled")
			}
			display.ErrorPanel(c.deps.Out, err)
		}
	}
}

func (c *Chat) initialHistory() []finalize.Message {
	return []finalize.Message{{Role: finalize.RoleSystem, Content: c.opts.SystemPrompt}}
}

// Messages returns what is sent for userInput given the history so far
func (c *Chat) Messages(history []finalize.Message, userInput string) []finalize.Message {
	base := history
	if c.opts.NoHistory && len(base) > 1 {
		base = base[:1]
	}
	msgs := make([]finalize.Message, 0, len(base)+1)
	msgs = append(msgs, base...)
	return append(msgs, finalize.Message{Role: finalize.RoleUser, Content: userInput})
}

// Turn sends one user message and renders the reply. The returned
// history includes the turn unless history is disabled. A transport
// error leaves history unchanged.
func (c *Chat) Turn(ctx context.Context, s Session, history []finalize.Message, userInput string) ([]finalize.Message, error) {
	engine := &finalize.Engine{
		Invoker:     s.Client,
		Model:       s.Model,
		Params:      finalize.Params{Temperature: c.opts.Temperature, MaxTokens: s.MaxTokens},
		Mode:        finalize.ModeText,
		MaxAttempts: c.opts.MaxAttempts,
		Logger:      c.logger,
	}

	stop := display.Status(c.deps.Out, "Waiting for "+s.Model)
	result, err := engine.Run(ctx, c.Messages(history, userInput))
	stop()

	var assistant string
	var exhausted *finalize.ExhaustedError
	switch {
	case err == nil:
		assistant = result.Answer()
		c.renderAnswer(s, result)
	case errors.As(err, &exhausted):
		assistant = exhausted.Last.ReasoningText()
		c.renderExhausted(exhausted)
	default:
		return history, err
	}

	if c.opts.NoHistory {
		return history, nil
	}
	return append(history,
		finalize.Message{Role: finalize.RoleUser, Content: userInput},
		finalize.Message{Role: finalize.RoleAssistant, Content: assistant},
	), nil
}

func (c *Chat) renderAnswer(s Session, result *finalize.Result) {
	out := c.deps.Out
	if c.opts.RawResponse {
		display.OutputRawJSON(out, result.Response.Raw)
		return
	}
	if c.opts.ShowReasoning && result.Response.HasReasoning() {
		display.MarkdownPanel(out, "Assistant Reasoning (debug)", result.Response.ReasoningText(), display.StyleDim)
	}
	model := result.Response.ModelID
	if model == "" {
		model = s.Model
	}
	display.MarkdownPanel(out, "Assistant", fmt.Sprintf("**Model:** %s\n\n%s", model, result.Answer()), nil)
}

func (c *Chat) renderExhausted(e *finalize.ExhaustedError) {
	out := c.deps.Out
	if c.opts.RawResponse {
		if e.Last != nil {
			display.OutputRawJSON(out, e.Last.Raw)
		}
		return
	}
	display.WarningPanel(out, NoAnswerWarning)
	if e.ReasoningPresent {
		display.MarkdownPanel(out, "Assistant Reasoning (debug)", e.Last.ReasoningText(), display.StyleDim)
	}
}
