package finalize

import (
	"fmt"

	"github.com/teranos/strata/errors"
)

// ExhaustedError is returned when no attempt produced an acceptable answer
type ExhaustedError struct {
	Attempts         int
	Last             *Response // last response obtained, nil if none arrived
	LastFailure      FailureKind
	ContentPresent   bool
	ReasoningPresent bool
	History          []Attempt
}

func newExhaustedError(attempts []Attempt) *ExhaustedError {
	e := &ExhaustedError{Attempts: len(attempts), History: attempts}
	if len(attempts) > 0 {
		e.LastFailure = attempts[len(attempts)-1].Failure
	}
	for i := len(attempts) - 1; i >= 0; i-- {
		if attempts[i].Response != nil {
			e.Last = attempts[i].Response
			break
		}
	}
	e.ContentPresent = e.Last.HasContent()
	e.ReasoningPresent = e.Last.HasReasoning()
	return e
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf(
		"model returned no usable final content after %d attempts (last failure: %s). content present: %s, reasoning_content present: %s",
		e.Attempts, e.LastFailure, yesNo(e.ContentPresent), yesNo(e.ReasoningPresent))
}

// Is classifies the error as an extraction failure, and as a schema
// failure when the last attempt failed validation
func (e *ExhaustedError) Is(target error) bool {
	switch target {
	case errors.ErrExtraction:
		return true
	case errors.ErrSchema:
		return e.LastFailure == FailureSchema || e.LastFailure == FailureInvalidJSON
	}
	return false
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
