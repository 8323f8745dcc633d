// Package tracker records one row per model request in the usage database
// and aggregates them for `strata usage`.
package tracker

import (
	"database/sql"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/teranos/strata/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ModelUsage represents a record of one model request
type ModelUsage struct {
	ID                int        `json:"id" db:"id"`
	OperationType     string     `json:"operation_type" db:"operation_type"` // chat, explain, probe
	SessionID         string     `json:"session_id" db:"session_id"`
	ModelName         string     `json:"model_name" db:"model_name"`
	Endpoint          string     `json:"endpoint" db:"endpoint"`
	ModelConfig       *string    `json:"model_config,omitempty" db:"model_config"`
	RequestTimestamp  time.Time  `json:"request_timestamp" db:"request_timestamp"`
	ResponseTimestamp *time.Time `json:"response_timestamp,omitempty" db:"response_timestamp"`
	TokensUsed        *int       `json:"tokens_used,omitempty" db:"tokens_used"`
	Success           bool       `json:"success" db:"success"`
	StatusCode        *int       `json:"status_code,omitempty" db:"status_code"`
	ErrorMessage      *string    `json:"error_message,omitempty" db:"error_message"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// ModelConfig represents the generation parameters of a request
type ModelConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// UsageTracker writes and aggregates usage rows
type UsageTracker struct {
	db *sql.DB
}

// NewUsageTracker creates a tracker over a migrated database
func NewUsageTracker(db *sql.DB) *UsageTracker {
	return &UsageTracker{db: db}
}

// TrackUsage records a request. Timestamps are stored in UTC so range
// queries compare consistently.
func (t *UsageTracker) TrackUsage(usage *ModelUsage) error {
	query := `
		INSERT INTO model_usage (
			operation_type, session_id, model_name, endpoint, model_config,
			request_timestamp, response_timestamp, tokens_used, success,
			status_code, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var responseTS *time.Time
	if usage.ResponseTimestamp != nil {
		utc := usage.ResponseTimestamp.UTC()
		responseTS = &utc
	}

	_, err := t.db.Exec(query,
		usage.OperationType, usage.SessionID, usage.ModelName, usage.Endpoint,
		usage.ModelConfig, usage.RequestTimestamp.UTC(), responseTS,
		usage.TokensUsed, usage.Success, usage.StatusCode, usage.ErrorMessage,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to record usage for %s", usage.ModelName)
	}
	return nil
}

// UsageStats represents aggregated usage statistics
type UsageStats struct {
	TotalRequests      int     `json:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests"`
	SuccessRate        float64 `json:"success_rate"`
	TotalTokens        int     `json:"total_tokens"`
	UniqueModels       int     `json:"unique_models"`
}

// GetUsageStats returns usage statistics for requests made at or after since
func (t *UsageTracker) GetUsageStats(since time.Time) (*UsageStats, error) {
	query := `
		SELECT
			COUNT(*) as total_requests,
			COUNT(CASE WHEN success = 1 THEN 1 END) as successful_requests,
			COALESCE(SUM(COALESCE(tokens_used, 0)), 0) as total_tokens,
			COUNT(DISTINCT model_name) as unique_models
		FROM model_usage
		WHERE request_timestamp >= ?`

	var stats UsageStats
	err := t.db.QueryRow(query, since.UTC()).Scan(
		&stats.TotalRequests, &stats.SuccessfulRequests,
		&stats.TotalTokens, &stats.UniqueModels,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query usage stats")
	}

	if stats.TotalRequests > 0 {
		stats.SuccessRate = float64(stats.SuccessfulRequests) / float64(stats.TotalRequests)
	}
	return &stats, nil
}

// ModelBreakdown represents usage statistics for one model on one endpoint
type ModelBreakdown struct {
	ModelName         string   `json:"model_name"`
	Endpoint          string   `json:"endpoint"`
	RequestCount      int      `json:"request_count"`
	FailedCount       int      `json:"failed_count"`
	TotalTokens       int      `json:"total_tokens"`
	AvgResponseTimeMs *float64 `json:"avg_response_time_ms,omitempty"`
}

// GetModelBreakdown returns usage grouped by model, busiest first
func (t *UsageTracker) GetModelBreakdown(since time.Time) ([]ModelBreakdown, error) {
	query := `
		SELECT
			model_name,
			endpoint,
			COUNT(*) as request_count,
			COUNT(CASE WHEN success = 0 THEN 1 END) as failed_count,
			COALESCE(SUM(COALESCE(tokens_used, 0)), 0) as total_tokens,
			AVG(CASE WHEN response_timestamp IS NOT NULL THEN
				(julianday(response_timestamp) - julianday(request_timestamp)) * 86400000
				ELSE NULL END) as avg_response_time_ms
		FROM model_usage
		WHERE request_timestamp >= ?
		GROUP BY model_name, endpoint
		ORDER BY request_count DESC, model_name ASC`

	rows, err := t.db.Query(query, since.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "failed to query model breakdown")
	}
	defer rows.Close()

	var breakdown []ModelBreakdown
	for rows.Next() {
		var mb ModelBreakdown
		var avg sql.NullFloat64
		if err := rows.Scan(&mb.ModelName, &mb.Endpoint, &mb.RequestCount,
			&mb.FailedCount, &mb.TotalTokens, &avg); err != nil {
			return nil, errors.Wrap(err, "failed to scan model breakdown")
		}
		if avg.Valid {
			v := avg.Float64
			mb.AvgResponseTimeMs = &v
		}
		breakdown = append(breakdown, mb)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read model breakdown")
	}

	return breakdown, nil
}

// NewModelConfig serializes generation parameters for the model_config column
func NewModelConfig(temperature *float64, maxTokens *int, topP *float64) *string {
	if temperature == nil && maxTokens == nil && topP == nil {
		return nil
	}

	data, err := json.Marshal(ModelConfig{
		Temperature: temperature,
		MaxTokens:   maxTokens,
		TopP:        topP,
	})
	if err != nil {
		return nil
	}

	s := string(data)
	return &s
}
