// Package am loads and persists strata configuration.
package am

// Config represents the strata configuration
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Model   ModelConfig   `mapstructure:"model"`
	Prompts PromptsConfig `mapstructure:"prompts"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Explain ExplainConfig `mapstructure:"explain"`
	Usage   UsageConfig   `mapstructure:"usage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig configures the OpenAI-compatible endpoint
type APIConfig struct {
	BaseURL              string `mapstructure:"base_url"`
	APIKey               string `mapstructure:"api_key"`
	TimeoutSeconds       int    `mapstructure:"timeout_seconds"`
	CABundle             string `mapstructure:"ca_bundle"`               // PEM file trusted in addition to system roots
	MaxRequestsPerMinute int    `mapstructure:"max_requests_per_minute"` // 0 = unlimited
}

// HasAPIKey reports whether a bearer token is configured
func (c APIConfig) HasAPIKey() bool {
	return c.APIKey != ""
}

// ModelConfig configures model selection
type ModelConfig struct {
	Default    string   `mapstructure:"default"`    // Empty = discover
	Candidates []string `mapstructure:"candidates"` // Probed when the models endpoint is unavailable
	MaxTokens  int      `mapstructure:"max_tokens"` // Fallback when model info has no output limit
}

// PromptsConfig configures the layer store
type PromptsConfig struct {
	Root string `mapstructure:"root"`
}

// ChatConfig configures the interactive chat loop
type ChatConfig struct {
	MaxAttempts int  `mapstructure:"max_attempts"`
	History     bool `mapstructure:"history"`
}

// ExplainConfig configures source explanation runs
type ExplainConfig struct {
	MaxAttempts int      `mapstructure:"max_attempts"`
	MaxFiles    int      `mapstructure:"max_files"`
	MaxBytes    int      `mapstructure:"max_bytes"`
	MaxTokens   int      `mapstructure:"max_tokens"`
	Extensions  []string `mapstructure:"extensions"`
}

// UsageConfig configures request usage tracking
type UsageConfig struct {
	Path string `mapstructure:"path"` // SQLite file; empty disables tracking
}

// LoggingConfig configures diagnostics output
type LoggingConfig struct {
	JSON bool `mapstructure:"json"`
}

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
	SecretFilePermissions  = 0600
)

// DefaultCandidateModels is probed when nothing else is configured
var DefaultCandidateModels = []string{"gpt-oss-120b"}
