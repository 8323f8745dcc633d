// Package openai is a client for OpenAI-compatible chat completion servers.
//
// It speaks the subset the CLI needs: chat completions with the
// reasoning_content extension emitted by reasoning models, model listing,
// single-token probes and per-model metadata. Transient failures (429, 5xx
// and network errors) are retried with exponential backoff.
package openai

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/teranos/strata/ai/tracker"
	"github.com/teranos/strata/db"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/internal/httpclient"
	"github.com/teranos/strata/internal/util"
	"github.com/teranos/strata/logger"
	"github.com/teranos/strata/version"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	chatCompletionsPath = "/v1/chat/completions"
	modelsPath          = "/v1/models"

	// MaxRetries is the number of attempts per request including the first
	MaxRetries     = 3
	initialBackoff = 500 * time.Millisecond
	backoffFactor  = 2

	// DefaultTimeout applies when Config.Timeout is zero
	DefaultTimeout = 30 * time.Second

	maxLoggedBody = 4096
)

// Config holds client configuration
type Config struct {
	BaseURL              string
	APIKey               string // sent as a bearer token when set
	Timeout              time.Duration
	CABundle             string
	MaxRequestsPerMinute int
	Logger               *zap.SugaredLogger    // nil = component logger
	Verbosity            int                   // request/response bodies are logged at VerbosityAll
	Tracker              *tracker.UsageTracker // nil disables usage tracking
	OperationType        string                // recorded with each tracked request (chat, explain)
	SessionID            string

	// Sleep waits between retries; tests replace it to run without delay
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client talks to one server
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.Client
	config     Config
	tracker    *tracker.UsageTracker
	logger     *zap.SugaredLogger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client. The base URL must be absolute; a trailing
// slash is dropped.
func NewClient(config Config) (*Client, error) {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	hc, err := httpclient.New(httpclient.Options{
		Timeout:              config.Timeout,
		CABundle:             config.CABundle,
		MaxRequestsPerMinute: config.MaxRequestsPerMinute,
	})
	if err != nil {
		return nil, err
	}
	return newClient(config, hc)
}

func newClient(config Config, hc *httpclient.Client) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if _, err := hc.ValidateURL(baseURL); err != nil {
		return nil, errors.WithHint(
			errors.WrapConfig(err, "invalid API base URL %q", config.BaseURL),
			"set --base-url, OPENAI_BASE_URL or api.base_url",
		)
	}

	log := config.Logger
	if log == nil {
		log = logger.ComponentLogger("openai")
	}
	sleep := config.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     config.APIKey,
		httpClient: hc,
		config:     config,
		tracker:    config.Tracker,
		logger:     log,
		sleep:      sleep,
	}, nil
}

// NewClientWithHTTPClient creates a client over an existing http.Client.
// Only use this in tests against httptest servers.
func NewClientWithHTTPClient(config Config, hc *http.Client) (*Client, error) {
	return newClient(config, httpclient.WrapClient(hc))
}

// BaseURL returns the normalised server URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IsConfigured returns true if the client has an API key
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Backoff returns the delay before retry number attempt (1-based)
func Backoff(attempt int) time.Duration {
	d := initialBackoff
	for i := 1; i < attempt; i++ {
		d *= backoffFactor
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// do sends one request with retries and returns the body of a 2xx reply.
// Retryable statuses on the last attempt surface as APIError; transport
// errors on the last attempt surface as NetworkError. Cancellation is
// returned as-is without retrying.
func (c *Client) do(ctx context.Context, method, endpoint string, payload any) ([]byte, int, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "failed to encode request for %s", endpoint)
		}
		if logger.ShouldOutput(c.config.Verbosity, logger.OutputRequestBody) {
			c.logger.Debugw("Request body", logger.FieldEndpoint, endpoint, "body", string(body))
		}
	}

	url := c.baseURL + endpoint
	for attempt := 1; attempt <= MaxRetries; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "failed to create request for %s", endpoint)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", version.UserAgent())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, 0, errors.Wrapf(ctxErr, "request to %s cancelled", endpoint)
			}
			c.logger.Debugw("HTTP request failed",
				"method", method,
				logger.FieldEndpoint, endpoint,
				logger.FieldAttempt, attempt,
				logger.FieldError, err.Error(),
			)
			if attempt < MaxRetries {
				if err := c.backoff(ctx, attempt, endpoint); err != nil {
					return nil, 0, err
				}
				continue
			}
			return nil, 0, &NetworkError{Endpoint: endpoint, Err: err}
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		c.logger.Debugw("HTTP request",
			"method", method,
			logger.FieldEndpoint, endpoint,
			logger.FieldStatus, resp.StatusCode,
			logger.FieldAttempt, attempt,
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
		)

		if readErr != nil {
			if attempt < MaxRetries {
				if err := c.backoff(ctx, attempt, endpoint); err != nil {
					return nil, 0, err
				}
				continue
			}
			return nil, resp.StatusCode, &NetworkError{Endpoint: endpoint, Err: readErr}
		}

		if IsRetryableStatus(resp.StatusCode) && attempt < MaxRetries {
			c.logger.Warnw("Retryable status from server",
				logger.FieldEndpoint, endpoint,
				logger.FieldStatus, resp.StatusCode,
				logger.FieldAttempt, attempt,
			)
			if err := c.backoff(ctx, attempt, endpoint); err != nil {
				return nil, 0, err
			}
			continue
		}

		if resp.StatusCode/100 != 2 {
			return nil, resp.StatusCode, &APIError{
				StatusCode: resp.StatusCode,
				Endpoint:   endpoint,
				Message:    strings.TrimSpace(string(data)),
			}
		}

		if logger.ShouldOutput(c.config.Verbosity, logger.OutputResponseBody) {
			c.logger.Debugw("Response body", logger.FieldEndpoint, endpoint, "body", util.Truncate(string(data), maxLoggedBody))
		}
		return data, resp.StatusCode, nil
	}

	// Unreachable: the final attempt always returns
	return nil, 0, &NetworkError{Endpoint: endpoint, Err: errors.New("unknown network error")}
}

func (c *Client) backoff(ctx context.Context, attempt int, endpoint string) error {
	if err := c.sleep(ctx, Backoff(attempt)); err != nil {
		return errors.Wrapf(err, "request to %s cancelled", endpoint)
	}
	return nil
}

// track records a request when usage tracking is enabled. Tracking
// failures are logged and never fail the request.
func (c *Client) track(usage *tracker.ModelUsage) {
	if c.tracker == nil {
		return
	}
	usage.OperationType = c.config.OperationType
	usage.SessionID = c.config.SessionID
	usage.Endpoint = c.baseURL
	if err := c.tracker.TrackUsage(usage); err != nil {
		if db.IsDatabaseClosed(err) {
			return
		}
		c.logger.Warnw("Failed to track model usage",
			logger.FieldModel, usage.ModelName,
			logger.FieldError, err.Error(),
		)
	}
}

func failureUsage(model string, requestTime time.Time, config *string, err error) *tracker.ModelUsage {
	responseTime := time.Now()
	msg := err.Error()
	usage := &tracker.ModelUsage{
		ModelName:         model,
		ModelConfig:       config,
		RequestTimestamp:  requestTime,
		ResponseTimestamp: &responseTime,
		Success:           false,
		ErrorMessage:      &msg,
	}
	if code := StatusCode(err); code != 0 {
		usage.StatusCode = &code
	}
	return usage
}
