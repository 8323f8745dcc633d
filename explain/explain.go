package explain

import (
	"context"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/strata/compose"
	"github.com/teranos/strata/display"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/finalize"
	"github.com/teranos/strata/internal/util"
	"github.com/teranos/strata/layers"
	"github.com/teranos/strata/logger"
)

// Bundle is the prompt bundle used for explanations
const Bundle = "explain_cpp"

// Generation defaults
const (
	DefaultMaxTokens   = 1500
	DefaultMaxAttempts = 3
)

// Request describes what to explain
type Request struct {
	Paths        []string
	Extensions   []string // CPPExtensions when empty
	MaxFiles     int
	MaxBytes     int
	SystemPrompt string // runtime instructions added to the system prompt
	JSON         bool   // strict structured answer
}

// Prepared is a request turned into model messages
type Prepared struct {
	Messages []finalize.Message
	Blobs    []FileBlob
	Skipped  []SkipInfo
	JSON     bool
}

// Explainer composes prompts and runs the finalization protocol
type Explainer struct {
	Composer    *compose.Composer
	Stack       []string
	Invoker     finalize.Invoker
	Model       string
	MaxTokens   int
	MaxAttempts int
	Logger      *zap.SugaredLogger
}

func (e *Explainer) log(ctx context.Context) *zap.SugaredLogger {
	if e.Logger != nil {
		return e.Logger
	}
	return logger.LoggerFromContext(ctx).Named("explain")
}

// Prepare collects sources, applies the file and byte limits and renders
// the system and user messages
func (e *Explainer) Prepare(ctx context.Context, req Request) (*Prepared, error) {
	if len(req.Paths) == 0 {
		return nil, errors.NewInvalidRequestError("No input paths provided.")
	}
	exts := req.Extensions
	if len(exts) == 0 {
		exts = CPPExtensions
	}

	all, err := Collect(req.Paths, exts)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, errors.WithHintf(
			errors.NewNotFoundError("No C/C++ source files found."),
			"looked for %s", strings.Join(exts, " "))
	}

	limited, skipped := Limit(all, req.MaxFiles)
	blobs, overBudget, err := ReadWithBudget(ctx, limited, req.MaxBytes, e.log(ctx))
	if err != nil {
		return nil, err
	}
	skipped = append(skipped, overBudget...)
	if len(blobs) == 0 {
		return nil, errors.WithHint(
			errors.NewInvalidRequestError("No files remaining after applying limits."),
			"raise --max-bytes or --max-files")
	}

	var prepend string
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		prepend = "\n\n" + system
	}
	systemMsg, err := e.Composer.RenderWithPrepend(e.Stack, Bundle, layers.RoleSystem, prepend, nil)
	if err != nil {
		return nil, err
	}
	userMsg, err := e.Composer.Render(e.Stack, Bundle, layers.RoleUser, map[string]any{
		"files_block": FilesBlock(blobs),
		"json_mode":   req.JSON,
	})
	if err != nil {
		return nil, err
	}

	return &Prepared{
		Messages: []finalize.Message{
			{Role: finalize.RoleSystem, Content: systemMsg},
			{Role: finalize.RoleUser, Content: userMsg},
		},
		Blobs:   blobs,
		Skipped: skipped,
		JSON:    req.JSON,
	}, nil
}

// Run sends prepared messages until a final answer is accepted
func (e *Explainer) Run(ctx context.Context, p *Prepared) (*finalize.Result, error) {
	maxTokens := e.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	attempts := e.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	mode := finalize.ModeText
	if p.JSON {
		mode = finalize.ModeStrict
	}

	engine := &finalize.Engine{
		Invoker:     e.Invoker,
		Model:       e.Model,
		Params:      finalize.Params{Temperature: 0, MaxTokens: maxTokens, TopP: util.Ptr(1.0)},
		Mode:        mode,
		MaxAttempts: attempts,
		Logger:      e.log(ctx),
	}
	e.log(ctx).Infow("Explaining sources",
		logger.FieldModel, e.Model,
		logger.FieldCount, len(p.Blobs),
		"mode", mode.String())
	return engine.Run(ctx, p.Messages)
}

// RenderOptions control how an accepted explanation is shown
type RenderOptions struct {
	ShowReasoning bool
	Sections      bool // always split a free-text answer into section panels
}

// Render writes an accepted explanation. Structured answers are printed
// as JSON; free text as a Markdown panel or, when it is empty, as
// section panels.
func Render(out io.Writer, result *finalize.Result, opts RenderOptions) error {
	if result.Analysis != nil {
		return display.OutputJSON(out, result.Analysis)
	}
	if opts.ShowReasoning && result.Response.HasReasoning() {
		display.MarkdownPanel(out, "Assistant Reasoning (debug)", result.Response.ReasoningText(), display.StyleDim)
	}

	text := strings.TrimSpace(result.Answer())
	if text != "" && !opts.Sections {
		display.MarkdownPanel(out, "Explanation", text, nil)
		return nil
	}
	display.SectionPanels(out, finalize.ParseSections(result.Text))
	return nil
}

// RenderSkipped warns about files left out of the prompt
func RenderSkipped(out io.Writer, skipped []SkipInfo) {
	items := make([]string, len(skipped))
	for i, s := range skipped {
		items[i] = s.String()
	}
	display.WarningList(out, items)
}
