package am

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://api.openai.com")
	v.SetDefault("api.timeout_seconds", 30)
	v.SetDefault("api.max_requests_per_minute", 0)

	v.SetDefault("model.default", "")
	v.SetDefault("model.candidates", DefaultCandidateModels)
	v.SetDefault("model.max_tokens", 2048)

	v.SetDefault("prompts.root", "prompts")

	v.SetDefault("chat.max_attempts", 2)
	v.SetDefault("chat.history", true)

	v.SetDefault("explain.max_attempts", 3)
	v.SetDefault("explain.max_files", 20)
	v.SetDefault("explain.max_bytes", 200000)
	v.SetDefault("explain.max_tokens", 1500)
	v.SetDefault("explain.extensions", []string{".cpp", ".cc", ".cxx", ".c", ".hpp", ".hh", ".hxx", ".h"})

	// empty disables usage tracking
	v.SetDefault("usage.path", "")

	v.SetDefault("logging.json", false)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables.
// The first name listed wins when several are set.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("api.base_url", "STRATA_API_BASE_URL", "OPENAI_BASE_URL")
	v.BindEnv("api.api_key", "STRATA_API_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("api.timeout_seconds", "STRATA_API_TIMEOUT_SECONDS", "STRATA_TIMEOUT")
	v.BindEnv("api.ca_bundle", "STRATA_API_CA_BUNDLE", "STRATA_CA_BUNDLE")
}
