package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/strata/am"
	"github.com/teranos/strata/display"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/internal/util"
)

// AmCmd manages strata configuration
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage strata configuration",
	Long: `Display and check strata configuration.

Configuration sources (later overrides earlier):
1. Built-in defaults
2. System config (/etc/strata/am.toml)
3. User config (~/.strata/am.toml)
4. Saved connection settings (~/.strata/am_user.toml, written by chat)
5. Project config (./am.toml, searched upwards)
6. Environment variables (STRATA_*, OPENAI_BASE_URL, OPENAI_API_KEY)
7. Command line flags

Examples:
  strata am show                    # Show current configuration
  strata am show --format json      # Show configuration as JSON
  strata am get explain.max_files   # Get one value
  strata am validate                # Validate current configuration
  strata am where                   # Show where each value comes from`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the merged configuration from all sources. The API key is masked.",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a configuration value using dot notation (e.g. api.base_url, chat.max_attempts)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long:  "List every effective setting grouped by the source it came from.",
	RunE:  runAmWhere,
}

var configFormat string

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

// maskedSettings returns all settings with secrets masked
func maskedSettings() map[string]interface{} {
	settings := am.GetViper().AllSettings()
	if api, ok := settings["api"].(map[string]interface{}); ok {
		if key, ok := api["api_key"]; ok {
			api["api_key"] = am.MaskSecret(key)
		}
	}
	return settings
}

func runAmShow(cmd *cobra.Command, args []string) error {
	if _, err := am.Load(); err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	settings := maskedSettings()
	w := cmd.OutOrStdout()

	switch configFormat {
	case "json":
		return display.OutputJSON(w, settings)
	case "yaml":
		data, err := yaml.Marshal(settings)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Fprintf(w, "# strata configuration\n%s", data)
	case "toml":
		data, err := toml.Marshal(settings)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Fprintf(w, "# strata configuration\n%s", data)
	default:
		return errors.NewInvalidRequestError("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}
	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	v := am.GetViper()
	if !v.IsSet(key) {
		return errors.NewNotFoundError("configuration key %q not found", key)
	}
	value := v.Get(key)
	if key == "api.api_key" {
		value = am.MaskSecret(value)
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.WrapConfig(err, "configuration validation failed")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	intro, err := am.GetConfigIntrospection()
	if err != nil {
		return errors.Wrap(err, "failed to get config introspection")
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), intro)
	}
	printCascade(cmd.OutOrStdout(), intro)
	return nil
}

var sourceOrder = []am.ConfigSource{
	am.SourceDefault,
	am.SourceSystem,
	am.SourceUser,
	am.SourceUserSettings,
	am.SourceProject,
	am.SourceEnvironment,
}

func printCascade(w io.Writer, intro *am.ConfigIntrospection) {
	fmt.Fprintln(w, "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(w, "  1. [DEFAULT]        Built-in defaults")
	fmt.Fprintln(w, "  2. [SYSTEM]         /etc/strata/am.toml")
	fmt.Fprintln(w, "  3. [USER]           ~/.strata/am.toml")
	fmt.Fprintln(w, "  4. [USER_SETTINGS]  ~/.strata/am_user.toml")
	fmt.Fprintln(w, "  5. [PROJECT]        ./am.toml (searches up directories)")
	fmt.Fprintln(w, "  6. [ENV]            STRATA_* and OPENAI_* environment variables")
	fmt.Fprintln(w)

	// file sources group by path; default and env settings form one group each
	type group struct {
		path     string
		settings []am.SettingInfo
	}
	bySource := map[am.ConfigSource]map[string]*group{}
	for _, s := range intro.Settings {
		path := s.SourcePath
		if s.Source == am.SourceDefault || s.Source == am.SourceEnvironment {
			path = ""
		}
		if bySource[s.Source] == nil {
			bySource[s.Source] = map[string]*group{}
		}
		g, ok := bySource[s.Source][path]
		if !ok {
			g = &group{path: path}
			bySource[s.Source][path] = g
		}
		g.settings = append(g.settings, s)
	}

	fmt.Fprintln(w, "Active configuration:")
	for _, source := range sourceOrder {
		groups := make([]*group, 0, len(bySource[source]))
		for _, g := range bySource[source] {
			groups = append(groups, g)
		}
		sort.Slice(groups, func(i, j int) bool { return groups[i].path < groups[j].path })

		for _, g := range groups {
			switch {
			case g.path != "":
				fmt.Fprintf(w, "\n%s: %d settings from %s\n", source, len(g.settings), g.path)
			case source == am.SourceEnvironment:
				fmt.Fprintf(w, "\n%s: %d settings from environment variables\n", source, len(g.settings))
			default:
				fmt.Fprintf(w, "\n%s: %d settings\n", source, len(g.settings))
			}
			for _, s := range g.settings {
				value := util.Truncate(fmt.Sprintf("%v", s.Value), 47)
				if source == am.SourceEnvironment {
					fmt.Fprintf(w, "  %s = %s (%s)\n", s.Key, value, s.SourcePath)
					continue
				}
				fmt.Fprintf(w, "  %s = %s\n", s.Key, value)
			}
		}
	}
	if len(intro.Files) == 0 {
		fmt.Fprintln(w, "\nNo configuration files found.")
	} else {
		fmt.Fprintf(w, "\nFiles merged: %s\n", strings.Join(intro.Files, ", "))
	}
}
