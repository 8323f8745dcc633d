package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/strata/ai/discovery"
	"github.com/teranos/strata/am"
	"github.com/teranos/strata/display"
	"github.com/teranos/strata/logger"
)

// ModelsCmd lists the models a server offers
var ModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Discover available models",
	Long: `List models from the server's /v1/models endpoint, or probe candidate
models with a one-token chat completion when listing is unavailable.

Examples:
  strata models
  strata models --prefer-endpoint probe --candidate llama-3.1-70b
  strata models --json`,
	RunE: runModels,
}

func init() {
	addAPIFlags(ModelsCmd)
	ModelsCmd.Flags().String("prefer-endpoint", string(discovery.PreferAuto), "Discovery method: models, probe or auto")
	ModelsCmd.Flags().StringArray("candidate", nil, "Extra model id to probe (repeatable)")
	ModelsCmd.Flags().Bool("json", false, "Output results as JSON")
}

func runModels(cmd *cobra.Command, args []string) error {
	preferFlag, _ := cmd.Flags().GetString("prefer-endpoint")
	prefer, err := discovery.ParsePrefer(preferFlag)
	if err != nil {
		return err
	}
	extra, _ := cmd.Flags().GetStringArray("candidate")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.Logger.Named("models")
	usage, closeUsage, err := openTracker(cfg, log)
	if err != nil {
		return err
	}
	defer closeUsage()

	client, err := newClient(cmd, cfg, clientOptions{operation: "models", settings: settingsFromConfig(cfg), tracker: usage})
	if err != nil {
		return err
	}

	candidates := am.ResolveCandidates(cfg, extra)
	stop := display.Status(cmd.ErrOrStderr(), "Discovering models...")
	results, err := discovery.Discover(cmd.Context(), client, prefer, candidates)
	stop()
	if err != nil {
		return err
	}
	log.Infow("Models discovered", logger.FieldCount, len(results), "prefer", string(prefer))

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), results)
	}
	return display.ModelsTable(cmd.OutOrStdout(), results)
}
