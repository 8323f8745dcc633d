package am

import (
	"net/url"

	"github.com/teranos/strata/errors"
)

// MaxAttemptsLimit caps configured retry counts
const MaxAttemptsLimit = 10

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url cannot be empty")
	}
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Newf("api.base_url must be an absolute URL, got %q", c.API.BaseURL)
	}
	if c.API.TimeoutSeconds <= 0 {
		return errors.Newf("api.timeout_seconds must be > 0, got %d", c.API.TimeoutSeconds)
	}
	// 0 = unlimited
	if c.API.MaxRequestsPerMinute < 0 {
		return errors.Newf("api.max_requests_per_minute must be >= 0, got %d", c.API.MaxRequestsPerMinute)
	}

	if c.Model.MaxTokens <= 0 {
		return errors.Newf("model.max_tokens must be > 0, got %d", c.Model.MaxTokens)
	}

	if c.Prompts.Root == "" {
		return errors.New("prompts.root cannot be empty")
	}

	if c.Chat.MaxAttempts < 1 || c.Chat.MaxAttempts > MaxAttemptsLimit {
		return errors.Newf("chat.max_attempts must be between 1 and %d, got %d", MaxAttemptsLimit, c.Chat.MaxAttempts)
	}
	if c.Explain.MaxAttempts < 1 || c.Explain.MaxAttempts > MaxAttemptsLimit {
		return errors.Newf("explain.max_attempts must be between 1 and %d, got %d", MaxAttemptsLimit, c.Explain.MaxAttempts)
	}
	if c.Explain.MaxFiles <= 0 {
		return errors.Newf("explain.max_files must be > 0, got %d", c.Explain.MaxFiles)
	}
	if c.Explain.MaxBytes <= 0 {
		return errors.Newf("explain.max_bytes must be > 0, got %d", c.Explain.MaxBytes)
	}
	if c.Explain.MaxTokens <= 0 {
		return errors.Newf("explain.max_tokens must be > 0, got %d", c.Explain.MaxTokens)
	}

	return nil
}
