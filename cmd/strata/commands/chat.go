package commands

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teranos/strata/am"
	"github.com/teranos/strata/chat"
	"github.com/teranos/strata/display"
	"github.com/teranos/strata/layers"
	"github.com/teranos/strata/logger"
)

// ChatCmd starts an interactive chat session
var ChatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Chat with a model using the chat bundle of the active prompt stack as the
system prompt. Connection details are asked for on first use and remembered.

Commands inside the chat:
` + chat.Help(),
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	addAPIFlags(ChatCmd)
	f := ChatCmd.Flags()
	f.String("model", "", "Model id to chat with")
	f.String("system", "", "Extra system instructions placed before the chat system prompt")
	f.Float64("temperature", 0, "Sampling temperature")
	f.Int("max-tokens", 0, "Maximum tokens per reply (default: the model's limit)")
	f.Bool("no-history", false, "Send only the system prompt and the current message")
	f.Bool("json", false, "Print raw JSON responses")
	f.Bool("raw-response", false, "Print raw response JSON instead of formatted output")
	f.Bool("show-reasoning", false, "Show the model's reasoning in a separate panel")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.Logger.Named("chat")
	usage, closeUsage, err := openTracker(cfg, log)
	if err != nil {
		return err
	}
	defer closeUsage()

	flags := cmd.Flags()
	modelOverride, _ := flags.GetString("model")
	system, _ := flags.GetString("system")
	temperature, _ := flags.GetFloat64("temperature")
	maxTokens, _ := flags.GetInt("max-tokens")
	noHistory, _ := flags.GetBool("no-history")
	asJSON, _ := flags.GetBool("json")
	raw, _ := flags.GetBool("raw-response")
	showReasoning, _ := flags.GetBool("show-reasoning")

	composer := newComposer(cfg)
	stack, _, err := composer.Store().ActiveStack()
	if err != nil {
		return err
	}
	var prepend string
	if s := strings.TrimSpace(system); s != "" {
		prepend = s + "\n"
	}
	systemPrompt, err := composer.RenderWithPrepend(stack, "chat", layers.RoleSystem, prepend, nil)
	if err != nil {
		return err
	}

	sessionID := chat.NewSessionID()
	var prompter chat.Prompter
	if display.IsTerminal(os.Stdin) {
		prompter = display.TermPrompter{}
	}

	out := cmd.OutOrStdout()
	c := chat.New(chat.Deps{
		Out:      out,
		Prompter: prompter,
		NewClient: func(settings am.UserSettings) (chat.Backend, error) {
			client, err := newClient(cmd, cfg, clientOptions{
				operation: "chat",
				sessionID: sessionID,
				settings:  settings,
				tracker:   usage,
			})
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		SaveSettings:      am.SaveUserSettings,
		Candidates:        am.ResolveCandidates(cfg, nil),
		FallbackMaxTokens: cfg.Model.MaxTokens,
		Logger:            log,
	}, chat.Options{
		SystemPrompt:  systemPrompt,
		Temperature:   temperature,
		NoHistory:     noHistory || !cfg.Chat.History,
		RawResponse:   raw || asJSON,
		ShowReasoning: showReasoning,
		MaxAttempts:   cfg.Chat.MaxAttempts,
	})

	settings := settingsFromConfig(cfg)
	if modelOverride != "" {
		settings.Model = modelOverride
	}
	session, err := c.EnsureSettings(cmd.Context(), settings)
	if err != nil {
		return err
	}
	session.ID = sessionID
	if maxTokens > 0 {
		session.MaxTokens = maxTokens
	}

	_, err = c.Run(cmd.Context(), session, chat.NewLineReader(cmd.InOrStdin(), out))
	return err
}
