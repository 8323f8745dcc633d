package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/strata/ai/tracker"
	"github.com/teranos/strata/am"
	"github.com/teranos/strata/display"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/logger"
)

// UsageCmd summarises tracked model requests
var UsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show model request usage",
	Long: `Summarise the requests recorded in the usage database (usage.path in
am.toml): totals, success rate and a per-model breakdown.

Examples:
  strata usage
  strata usage --since 168h --json`,
	Args: cobra.NoArgs,
	RunE: runUsage,
}

func init() {
	UsageCmd.Flags().Duration("since", 24*time.Hour, "Only count requests newer than this")
	UsageCmd.Flags().Bool("json", false, "Output usage as JSON")
}

type usageOutput struct {
	Since     time.Time                `json:"since"`
	Stats     *tracker.UsageStats      `json:"stats"`
	Breakdown []tracker.ModelBreakdown `json:"models"`
}

func runUsage(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	if cfg.Usage.Path == "" {
		return errors.WithHint(
			errors.NewConfigError("usage tracking is disabled"),
			"set usage.path in am.toml, e.g. usage.path = \"~/.strata/usage.db\"")
	}

	usage, closeUsage, err := openTracker(cfg, logger.Logger.Named("usage"))
	if err != nil {
		return err
	}
	defer closeUsage()

	window, _ := cmd.Flags().GetDuration("since")
	since := time.Now().Add(-window).UTC()

	stats, err := usage.GetUsageStats(since)
	if err != nil {
		return err
	}
	breakdown, err := usage.GetModelBreakdown(since)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), usageOutput{Since: since, Stats: stats, Breakdown: breakdown})
	}
	return display.UsageTables(cmd.OutOrStdout(), stats, breakdown)
}
