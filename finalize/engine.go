package finalize

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/logger"
)

// Attempt records one round trip and how it was judged
type Attempt struct {
	Number   int
	Response *Response // nil when the invoker reported ErrEmptyOutput
	Text     string    // extracted answer candidate
	Channel  Channel
	Failure  FailureKind
	Err      error // validation detail for strict-mode failures
	Duration time.Duration
}

// Accepted reports whether the attempt produced the final answer
func (a Attempt) Accepted() bool {
	return a.Failure == FailureNone
}

// Result is an accepted answer
type Result struct {
	Text     string    // accepted answer as extracted
	Analysis *Analysis // strict mode only
	Channel  Channel
	Response *Response
	Attempts []Attempt
	Messages []Message // outgoing conversation including corrective turns
}

// Answer returns the accepted text without a leading FINAL:
func (r *Result) Answer() string {
	return StripFinalPrefix(r.Text)
}

// Engine runs the finalization protocol against an Invoker. An Engine
// holds no per-call state and may be shared by concurrent callers.
type Engine struct {
	Invoker     Invoker
	Model       string
	Params      Params
	Mode        Mode
	MaxAttempts int
	OnAttempt   func(Attempt)
	Logger      *zap.SugaredLogger
}

// Run sends messages and retries until an answer is accepted or
// MaxAttempts is reached. The caller's slice is not modified; corrective
// turns are appended to a copy. Transport errors abort immediately.
func (e *Engine) Run(ctx context.Context, messages []Message) (*Result, error) {
	if e.Invoker == nil {
		return nil, errors.New("finalize: engine has no invoker")
	}
	maxAttempts := e.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	log := e.Logger
	if log == nil {
		log = logger.LoggerFromContext(ctx).Named("finalize")
	}

	outgoing := make([]Message, len(messages), len(messages)+maxAttempts)
	copy(outgoing, messages)

	attempts := make([]Attempt, 0, maxAttempts)
	for n := 1; n <= maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "finalization cancelled")
		}

		start := time.Now()
		resp, err := e.Invoker.ChatCompletion(ctx, e.Model, outgoing, e.Params)
		if err != nil && !errors.Is(err, ErrEmptyOutput) {
			return nil, err
		}

		attempt := Attempt{Number: n, Response: resp, Duration: time.Since(start)}
		var analysis *Analysis
		if err != nil {
			attempt.Response = nil
			attempt.Failure = FailureNoAnswer
			attempt.Err = err
		} else {
			analysis = e.inspect(&attempt)
		}
		attempts = append(attempts, attempt)

		log.Debugw("Finalization attempt",
			logger.FieldAttempt, n,
			logger.FieldMaxAttempts, maxAttempts,
			logger.FieldModel, e.Model,
			logger.FieldFailure, string(attempt.Failure),
			"channel", string(attempt.Channel),
			logger.FieldDurationMS, attempt.Duration.Milliseconds())

		if e.OnAttempt != nil {
			e.OnAttempt(attempt)
		}

		if attempt.Accepted() {
			return &Result{
				Text:     attempt.Text,
				Analysis: analysis,
				Channel:  attempt.Channel,
				Response: attempt.Response,
				Attempts: attempts,
				Messages: outgoing,
			}, nil
		}

		if n < maxAttempts {
			outgoing = append(outgoing, CorrectiveMessage(attempt.Failure, e.Mode))
		}
	}

	exhausted := newExhaustedError(attempts)
	log.Warnw("No usable final answer",
		logger.FieldAttempt, exhausted.Attempts,
		logger.FieldFailure, string(exhausted.LastFailure),
		"content_present", exhausted.ContentPresent,
		"reasoning_present", exhausted.ReasoningPresent)
	return nil, exhausted
}

// inspect judges one response, filling in the attempt's text and failure
func (e *Engine) inspect(a *Attempt) *Analysis {
	ext, ok := Extract(a.Response)
	if !ok {
		a.Failure = FailureNoAnswer
		return nil
	}
	a.Text = ext.Text
	a.Channel = ext.Channel

	if e.Mode != ModeStrict {
		return nil
	}

	// The reasoning channel only yields text that followed the sentinel
	if ext.Channel == ChannelContent && !HasSentinelPrefix(ext.Text) {
		a.Failure = FailureMissingPrefix
		return nil
	}

	analysis, err := ParseAnalysis(ext.Text)
	if err != nil {
		a.Err = err
		if IsSyntaxError(err) {
			a.Failure = FailureInvalidJSON
		} else {
			a.Failure = FailureSchema
		}
		return nil
	}
	return analysis
}
