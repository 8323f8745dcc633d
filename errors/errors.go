// Package errors provides error handling for strata.
//
// This package re-exports github.com/cockroachdb/errors and adds the
// classification used across prompt composition and answer finalization:
//
//	ErrConfig      active stack missing or invalid, unknown layer names
//	ErrPrompt      missing template, parse failure, undefined variable, bad variables file
//	ErrExtraction  no usable final answer from the model
//	ErrSchema      strict-mode answer failed JSON/shape validation (also ErrExtraction)
//
// Classified errors keep their own message; the class is attached as a mark,
// so errors.Is(err, ErrPrompt) works through any amount of wrapping:
//
//	return errors.NewPromptError("missing template for %s/%s", bundle, role)
//
//	if errors.Is(err, errors.ErrConfig) {
//	    // tell the user to pick a stack
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Classification sentinels. Use with errors.Is().
var (
	// ErrConfig indicates the prompt stack selection is missing or invalid
	ErrConfig = New("configuration error")

	// ErrPrompt indicates a template or variables file could not be used
	ErrPrompt = New("prompt error")

	// ErrExtraction indicates no usable final answer could be extracted
	ErrExtraction = New("extraction failure")

	// ErrSchema indicates a structured answer did not match the analysis schema
	ErrSchema = New("schema validation failure")

	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out")
)

// NewConfigError creates a configuration error with a formatted message
func NewConfigError(format string, args ...interface{}) error {
	return Mark(crdb.NewWithDepthf(1, format, args...), ErrConfig)
}

// WrapConfig marks err as a configuration error and adds context
func WrapConfig(err error, format string, args ...interface{}) error {
	return Mark(crdb.WrapWithDepthf(1, err, format, args...), ErrConfig)
}

// NewPromptError creates a prompt error with a formatted message
func NewPromptError(format string, args ...interface{}) error {
	return Mark(crdb.NewWithDepthf(1, format, args...), ErrPrompt)
}

// WrapPrompt marks err as a prompt error and adds context
func WrapPrompt(err error, format string, args ...interface{}) error {
	return Mark(crdb.WrapWithDepthf(1, err, format, args...), ErrPrompt)
}

// NewExtractionError creates an extraction failure with a formatted message
func NewExtractionError(format string, args ...interface{}) error {
	return Mark(crdb.NewWithDepthf(1, format, args...), ErrExtraction)
}

// NewSchemaError creates a schema failure. Schema failures are a sub-kind of
// extraction failure and match both sentinels.
func NewSchemaError(format string, args ...interface{}) error {
	return Mark(Mark(crdb.NewWithDepthf(1, format, args...), ErrSchema), ErrExtraction)
}

// WrapSchema marks err as a schema failure and adds context
func WrapSchema(err error, format string, args ...interface{}) error {
	return Mark(Mark(crdb.WrapWithDepthf(1, err, format, args...), ErrSchema), ErrExtraction)
}

// IsConfigError checks if an error is or wraps ErrConfig
func IsConfigError(err error) bool {
	return err != nil && Is(err, ErrConfig)
}

// IsPromptError checks if an error is or wraps ErrPrompt
func IsPromptError(err error) bool {
	return err != nil && Is(err, ErrPrompt)
}

// IsExtractionError checks if an error is or wraps ErrExtraction
func IsExtractionError(err error) bool {
	return err != nil && Is(err, ErrExtraction)
}

// IsSchemaError checks if an error is or wraps ErrSchema
func IsSchemaError(err error) bool {
	return err != nil && Is(err, ErrSchema)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Mark(crdb.NewWithDepthf(1, format, args...), ErrNotFound)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Mark(crdb.NewWithDepthf(1, format, args...), ErrInvalidRequest)
}
