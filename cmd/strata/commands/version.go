package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/strata/am"
	"github.com/teranos/strata/display"
	"github.com/teranos/strata/version"
)

// VersionCmd shows build and connection information
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and connection settings",
	Long:  `Display the build version together with the server, credentials and CA bundle strata would use.`,
	RunE:  runVersion,
}

func init() {
	addAPIFlags(VersionCmd)
}

type versionOutput struct {
	version.Info
	BaseURL       string `json:"base_url"`
	APIKeyPresent bool   `json:"api_key_present"`
	CABundle      string `json:"ca_bundle,omitempty"`
	ConfigFile    string `json:"user_settings"`
}

func runVersion(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := versionOutput{
		Info:          version.Get(),
		BaseURL:       cfg.API.BaseURL,
		APIKeyPresent: cfg.API.HasAPIKey(),
		CABundle:      cfg.API.CABundle,
		ConfigFile:    am.GetUserSettingsPath(),
	}
	w := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(w, out)
	}

	ca := out.CABundle
	if ca == "" {
		ca = "default"
	}
	present := "no"
	if out.APIKeyPresent {
		present = "yes"
	}
	fmt.Fprintf(w, "Version: %s\n", out.Info.String())
	fmt.Fprintf(w, "Go: %s (%s)\n", out.GoVersion, out.Platform)
	fmt.Fprintf(w, "Base URL: %s\n", out.BaseURL)
	fmt.Fprintf(w, "API key present: %s\n", present)
	fmt.Fprintf(w, "CA bundle: %s\n", ca)
	fmt.Fprintf(w, "Config file: %s\n", out.ConfigFile)
	return nil
}
