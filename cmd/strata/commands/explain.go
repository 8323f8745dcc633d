package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/strata/ai/discovery"
	"github.com/teranos/strata/ai/openai"
	"github.com/teranos/strata/am"
	"github.com/teranos/strata/display"
	"github.com/teranos/strata/explain"
	"github.com/teranos/strata/logger"
)

// ExplainCmd explains C and C++ sources
var ExplainCmd = &cobra.Command{
	Use:     "explain [paths...]",
	Aliases: []string{"explain-cpp"},
	Short:   "Explain C/C++ source files or directories",
	Long: `Collect C and C++ sources from the given files and directories, send them
with the explain_cpp prompt bundle and render the model's explanation.

With --json the model must answer with a JSON object of the form
{overview, components[{name, responsibility}], data_flow, assumptions, risks,
open_questions}; malformed answers are retried.

Examples:
  strata explain src/
  strata explain --max-files 5 --json include/ src/main.cpp`,
	RunE: runExplain,
}

func init() {
	addAPIFlags(ExplainCmd)
	f := ExplainCmd.Flags()
	f.String("model", "", "Model id to use for analysis")
	f.String("system", "", "Extra system instructions placed before the explain system prompt body")
	f.Int("max-files", 20, "Maximum number of files to send")
	f.Int("max-bytes", 200000, "Maximum total UTF-8 bytes of file content to send")
	f.Int("max-tokens", explain.DefaultMaxTokens, "Maximum tokens in the answer")
	f.Bool("json", false, "Output machine-readable JSON only")
	f.Bool("show-reasoning", false, "Show the model's reasoning in a separate panel")
	f.Bool("sections", false, "Always render the answer as one panel per section")
}

func runExplain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	intFlag := func(name string, configured int) int {
		if flags.Changed(name) || configured <= 0 {
			v, _ := flags.GetInt(name)
			return v
		}
		return configured
	}
	modelOverride, _ := flags.GetString("model")
	system, _ := flags.GetString("system")
	asJSON, _ := flags.GetBool("json")
	showReasoning, _ := flags.GetBool("show-reasoning")
	sections, _ := flags.GetBool("sections")

	log := logger.Logger.Named("explain")
	usage, closeUsage, err := openTracker(cfg, log)
	if err != nil {
		return err
	}
	defer closeUsage()

	client, err := newClient(cmd, cfg, clientOptions{operation: "explain", settings: settingsFromConfig(cfg), tracker: usage})
	if err != nil {
		return err
	}

	composer := newComposer(cfg)
	stack, _, err := composer.Store().ActiveStack()
	if err != nil {
		return err
	}

	e := &explain.Explainer{
		Composer:    composer,
		Stack:       stack,
		Invoker:     client,
		MaxTokens:   intFlag("max-tokens", cfg.Explain.MaxTokens),
		MaxAttempts: cfg.Explain.MaxAttempts,
		Logger:      log,
	}
	prepared, err := e.Prepare(cmd.Context(), explain.Request{
		Paths:        args,
		Extensions:   cfg.Explain.Extensions,
		MaxFiles:     intFlag("max-files", cfg.Explain.MaxFiles),
		MaxBytes:     intFlag("max-bytes", cfg.Explain.MaxBytes),
		SystemPrompt: system,
		JSON:         asJSON,
	})
	if err != nil {
		return err
	}

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	warnOut := out
	if asJSON {
		warnOut = errOut
	}
	explain.RenderSkipped(warnOut, prepared.Skipped)

	e.Model = resolveModel(cmd, cfg, client, modelOverride)

	stop := display.Status(errOut, "Waiting for response...")
	result, err := e.Run(cmd.Context(), prepared)
	stop()
	if err != nil {
		return err
	}
	return explain.Render(out, result, explain.RenderOptions{ShowReasoning: showReasoning && !asJSON, Sections: sections})
}

// resolveModel picks --model, then the configured default, then the first
// discovered model. Discovery failures fall back to the default model id.
func resolveModel(cmd *cobra.Command, cfg *am.Config, client *openai.Client, override string) string {
	if override != "" {
		return override
	}
	if cfg.Model.Default != "" {
		return cfg.Model.Default
	}
	stop := display.Status(cmd.ErrOrStderr(), "Discovering models...")
	results, err := discovery.Discover(cmd.Context(), client, discovery.PreferAuto, am.ResolveCandidates(cfg, nil))
	stop()
	if err != nil {
		logger.Logger.Warnw("Model discovery failed", logger.FieldError, err.Error())
		return discovery.FallbackModel
	}
	return discovery.DefaultModel(results, "")
}
