package logger

import "go.uber.org/zap/zapcore"

// Verbosity level constants for CLI flag counts.
const (
	VerbosityUser  = 0 // No flags: results and errors only
	VerbosityInfo  = 1 // -v: + progress, resolved stack, attempt summaries
	VerbosityDebug = 2 // -vv: + HTTP calls, config details, timing
	VerbosityTrace = 3 // -vvv: + template sources, retry internals
	VerbosityAll   = 4 // -vvvv: + full request/response bodies
)

// OutputCategory defines a category of output that can be enabled/disabled
type OutputCategory int

const (
	OutputResults OutputCategory = iota // Command output
	OutputErrors                        // Errors with hints

	OutputProgress // Spinners, attempt counters
	OutputStack    // Resolved stack and layer sources

	OutputHTTPCalls // Outgoing requests to the model API
	OutputConfig    // Config values loaded/applied
	OutputTiming    // Operation timing

	OutputTemplates // Template sources read during composition

	OutputRequestBody  // Full request bodies
	OutputResponseBody // Full response bodies
)

var categoryLevels = map[OutputCategory]int{
	OutputResults: VerbosityUser,
	OutputErrors:  VerbosityUser,

	OutputProgress: VerbosityInfo,
	OutputStack:    VerbosityInfo,

	OutputHTTPCalls: VerbosityDebug,
	OutputConfig:    VerbosityDebug,
	OutputTiming:    VerbosityDebug,

	OutputTemplates: VerbosityTrace,

	OutputRequestBody:  VerbosityAll,
	OutputResponseBody: VerbosityAll,
}

// ShouldOutput returns true if the given category should be shown at the given verbosity
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		return verbosity >= VerbosityAll
	}
	return verbosity >= minLevel
}

// VerbosityToLevel maps verbosity flags (-v, -vv, etc.) to zap log levels
//
//	0 (none)  -> WarnLevel
//	1 (-v)    -> InfoLevel
//	2+ (-vv)  -> DebugLevel
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch {
	case verbosity <= VerbosityUser:
		return zapcore.WarnLevel
	case verbosity == VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// LevelName returns a human-readable name for verbosity level
func LevelName(verbosity int) string {
	switch verbosity {
	case VerbosityUser:
		return "User"
	case VerbosityInfo:
		return "Info (-v)"
	case VerbosityDebug:
		return "Debug (-vv)"
	case VerbosityTrace:
		return "Trace (-vvv)"
	case VerbosityAll:
		return "All (-vvvv)"
	default:
		if verbosity > VerbosityAll {
			return "All (-vvvv+)"
		}
		return "Unknown"
	}
}
