// Package commands implements the strata CLI commands.
package commands

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/strata/ai/openai"
	"github.com/teranos/strata/ai/tracker"
	"github.com/teranos/strata/am"
	"github.com/teranos/strata/compose"
	"github.com/teranos/strata/db"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/layers"
	"github.com/teranos/strata/logger"
)

// apiFlagKeys maps shared API flags to configuration keys
var apiFlagKeys = map[string]string{
	"base-url":  "api.base_url",
	"api-key":   "api.api_key",
	"timeout":   "api.timeout_seconds",
	"ca-bundle": "api.ca_bundle",
}

// addAPIFlags registers the connection flags shared by model commands
func addAPIFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("base-url", "", "OpenAI-compatible server URL (env OPENAI_BASE_URL)")
	f.String("api-key", "", "Bearer token (env OPENAI_API_KEY)")
	f.Int("timeout", 0, "Request timeout in seconds (env STRATA_TIMEOUT)")
	f.String("ca-bundle", "", "PEM file trusted in addition to system roots (env STRATA_CA_BUNDLE)")
	f.Bool("debug-http", false, "Log HTTP requests and full request/response bodies")
}

// loadConfig binds the flags cmd actually has to configuration keys,
// then loads and validates the configuration
func loadConfig(cmd *cobra.Command) (*am.Config, error) {
	v := am.GetViper()
	for flag, key := range apiFlagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Wrapf(err, "failed to bind --%s", flag)
			}
		}
	}

	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithHint(errors.WrapConfig(err, "invalid configuration"), "run `strata am where` to see where each value comes from")
	}
	return cfg, nil
}

// verbosity returns the -v count, raised to full body logging by --debug-http
func verbosity(cmd *cobra.Command) int {
	v, _ := cmd.Flags().GetCount("verbose")
	if debug, _ := cmd.Flags().GetBool("debug-http"); debug && v < logger.VerbosityAll {
		v = logger.VerbosityAll
	}
	return v
}

// clientOptions describe one command's use of the model server
type clientOptions struct {
	operation string
	sessionID string
	settings  am.UserSettings
	tracker   *tracker.UsageTracker
}

func newClient(cmd *cobra.Command, cfg *am.Config, opts clientOptions) (*openai.Client, error) {
	return openai.NewClient(openai.Config{
		BaseURL:              opts.settings.BaseURL,
		APIKey:               opts.settings.APIKey,
		Timeout:              time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		CABundle:             opts.settings.CABundle,
		MaxRequestsPerMinute: cfg.API.MaxRequestsPerMinute,
		Logger:               logger.Logger.Named("openai"),
		Verbosity:            verbosity(cmd),
		Tracker:              opts.tracker,
		OperationType:        opts.operation,
		SessionID:            opts.sessionID,
	})
}

// settingsFromConfig returns the effective connection settings
func settingsFromConfig(cfg *am.Config) am.UserSettings {
	return am.UserSettings{
		BaseURL:  cfg.API.BaseURL,
		APIKey:   cfg.API.APIKey,
		CABundle: cfg.API.CABundle,
		Model:    cfg.Model.Default,
	}
}

// openTracker opens the usage database when usage.path is set. The
// returned close func is always safe to call.
func openTracker(cfg *am.Config, log *zap.SugaredLogger) (*tracker.UsageTracker, func(), error) {
	if cfg.Usage.Path == "" {
		return nil, func() {}, nil
	}
	path := expandHome(cfg.Usage.Path)
	database, err := db.OpenWithMigrations(path, log)
	if err != nil {
		return nil, func() {}, errors.Wrapf(err, "failed to open usage database %s", path)
	}
	return tracker.NewUsageTracker(database), closeDB(database, log), nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func closeDB(database *sql.DB, log *zap.SugaredLogger) func() {
	return func() {
		if err := database.Close(); err != nil {
			log.Warnw("Failed to close usage database", logger.FieldError, err.Error())
		}
	}
}

// newComposer opens the prompt layer store from configuration
func newComposer(cfg *am.Config) *compose.Composer {
	return compose.New(layers.NewStore(cfg.Prompts.Root))
}
