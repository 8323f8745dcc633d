// Package llm detects when strata is driven by another language model
// (an agent shelling out to the CLI) rather than a person at a terminal.
package llm

import (
	"os"
	"strings"
)

// CallerEnvVar set to "llm" marks an agent caller explicitly
const CallerEnvVar = "STRATA_CALLER"

// knownAgentVars are set by coding agents that run shell commands
var knownAgentVars = []string{
	"CURSOR_AGENT",
	"GITHUB_COPILOT",
	"AIDER_MODEL",
}

// LLMInfo describes the detected caller
type LLMInfo struct {
	IsLLM bool   `json:"is_llm"`
	Tool  string `json:"tool,omitempty"`
}

// IsLLMEnvironment returns true when an agent caller is detected
func IsLLMEnvironment() bool {
	return GetLLMInfo().IsLLM
}

// GetLLMInfo returns the detected caller. STRATA_CALLER=human forces a
// human caller even when agent variables are present.
func GetLLMInfo() LLMInfo {
	switch strings.ToLower(os.Getenv(CallerEnvVar)) {
	case "llm":
		return LLMInfo{IsLLM: true, Tool: "generic-llm"}
	case "human":
		return LLMInfo{}
	}

	for _, name := range knownAgentVars {
		if os.Getenv(name) != "" {
			return LLMInfo{IsLLM: true, Tool: strings.ToLower(name)}
		}
	}
	return LLMInfo{}
}
