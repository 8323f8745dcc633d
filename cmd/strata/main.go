package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/strata/am"
	"github.com/teranos/strata/cmd/strata/commands"
	"github.com/teranos/strata/display"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/logger"
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "strata - layered prompts for OpenAI-compatible models",
	Long: `strata composes prompts from stacked template layers and talks to
OpenAI-compatible chat completion servers.

Available commands:
  chat     - Interactive chat using the chat prompt bundle
  explain  - Explain C/C++ sources (alias explain-cpp)
  models   - Discover models on the server
  prompts  - List, select, inspect and validate prompt layers
  usage    - Show tracked request usage
  am       - Show and check configuration
  version  - Show version and connection settings

Examples:
  strata prompts default,team     # Select a prompt stack
  strata explain src/ --json      # Structured explanation of a source tree
  strata chat --show-reasoning    # Chat and show the model's reasoning`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if debug, _ := cmd.Flags().GetBool("debug-http"); debug && verbosity < logger.VerbosityDebug {
			verbosity = logger.VerbosityDebug
		}
		jsonLogs := am.GetViper().GetBool("logging.json")
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}

		if display.ShouldOutputJSON(cmd) || !display.IsTerminal(os.Stdout) {
			display.PlainOutput = true
			pterm.DisableStyling()
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Output machine-readable JSON where supported")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.ChatCmd)
	rootCmd.AddCommand(commands.ExplainCmd)
	rootCmd.AddCommand(commands.ModelsCmd)
	rootCmd.AddCommand(commands.PromptsCmd)
	rootCmd.AddCommand(commands.UsageCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		display.ErrorPanel(os.Stderr, err)
		os.Exit(1)
	}
}
