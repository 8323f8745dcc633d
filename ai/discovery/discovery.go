// Package discovery finds which models a server offers, either from its
// model listing or by probing candidate ids one at a time.
package discovery

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/teranos/strata/ai/openai"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/logger"
)

// FallbackModel is used when discovery finds nothing available
const FallbackModel = "gpt-oss-120b"

// Prefer selects the discovery strategy
type Prefer string

const (
	PreferModels Prefer = "models" // listing only
	PreferProbe  Prefer = "probe"  // probing only
	PreferAuto   Prefer = "auto"   // listing, probing when the listing is unavailable
)

// ParsePrefer validates a --prefer-endpoint value
func ParsePrefer(s string) (Prefer, error) {
	switch p := Prefer(strings.ToLower(strings.TrimSpace(s))); p {
	case PreferModels, PreferProbe, PreferAuto:
		return p, nil
	case "":
		return PreferAuto, nil
	default:
		return "", errors.NewInvalidRequestError("invalid discovery preference %q (expected models, probe or auto)", s)
	}
}

// Discovery methods
const (
	MethodModelsEndpoint = "models_endpoint"
	MethodProbe          = "probe"
)

// Statuses
const (
	StatusAvailable   = "available"
	StatusUnavailable = "unavailable"
	StatusError       = "error"
)

// ModelResult is one discovered or probed model
type ModelResult struct {
	ModelID string `json:"model_id"`
	Method  string `json:"discovery_method"`
	Status  string `json:"status"`
	Details string `json:"details"`
}

// Lister is the part of the transport discovery needs
type Lister interface {
	ListModels(ctx context.Context) ([]string, error)
	ProbeChatCompletion(ctx context.Context, model string) (bool, error)
}

// Discover lists or probes models according to prefer.
//
// With PreferAuto a 403/404 from the listing, a network failure or a
// listing without a model array falls back to probing candidates; any
// other listing error is returned. With PreferModels listing errors are
// returned and a missing array yields no results.
func Discover(ctx context.Context, lister Lister, prefer Prefer, candidates []string) ([]ModelResult, error) {
	log := logger.LoggerFromContext(ctx).Named("discovery")

	if prefer != PreferProbe {
		ids, err := lister.ListModels(ctx)
		switch {
		case err == nil:
			results := make([]ModelResult, 0, len(ids))
			for _, id := range ids {
				results = append(results, ModelResult{
					ModelID: id,
					Method:  MethodModelsEndpoint,
					Status:  StatusAvailable,
					Details: "listed",
				})
			}
			log.Debugw("Models listed", logger.FieldCount, len(results))
			return results, nil
		case errors.Is(err, openai.ErrNoModelList):
			if prefer == PreferModels {
				return []ModelResult{}, nil
			}
		case prefer == PreferModels:
			return nil, err
		case openai.IsNetworkError(err):
		case openai.StatusCode(err) == http.StatusForbidden, openai.StatusCode(err) == http.StatusNotFound:
		default:
			return nil, err
		}
		log.Debugw("Model listing unavailable, probing candidates",
			logger.FieldError, err.Error(),
			logger.FieldCount, len(candidates),
		)
	}

	return probe(ctx, lister, candidates)
}

func probe(ctx context.Context, lister Lister, candidates []string) ([]ModelResult, error) {
	results := make([]ModelResult, 0, len(candidates))
	for _, id := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "model discovery cancelled")
		}
		result := ModelResult{ModelID: id, Method: MethodProbe}

		ok, err := lister.ProbeChatCompletion(ctx, id)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, errors.Wrap(ctx.Err(), "model discovery cancelled")
		case err != nil:
			result.Status = StatusError
			if code := openai.StatusCode(err); code != 0 {
				result.Details = fmt.Sprintf("HTTP %d", code)
			} else {
				result.Details = err.Error()
			}
		case ok:
			result.Status = StatusAvailable
			result.Details = "probe succeeded"
		default:
			result.Status = StatusUnavailable
			result.Details = "probe rejected"
		}
		results = append(results, result)
	}
	return results, nil
}

// Available returns the ids of available results in order
func Available(results []ModelResult) []string {
	var ids []string
	for _, r := range results {
		if r.Status == StatusAvailable {
			ids = append(ids, r.ModelID)
		}
	}
	return ids
}

// DefaultModel returns the first available model, else fallback, else FallbackModel
func DefaultModel(results []ModelResult, fallback string) string {
	if ids := Available(results); len(ids) > 0 {
		return ids[0]
	}
	if fallback != "" {
		return fallback
	}
	return FallbackModel
}

// Choices returns the ids offered for interactive selection: the
// available ones, or every result when none is available
func Choices(results []ModelResult) []string {
	if ids := Available(results); len(ids) > 0 {
		return ids
	}
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ModelID)
	}
	return ids
}
