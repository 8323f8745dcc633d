// Package display renders command output: panels, tables, Markdown and JSON.
package display

import (
	"github.com/spf13/cobra"

	"github.com/teranos/strata/ai/llm"
)

// ShouldOutputJSON determines if a command should output JSON based on flags and LLM detection
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return llm.IsLLMEnvironment()
	}

	// An explicit --json on the command wins either way
	if f := cmd.Flags().Lookup("json"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetBool("json")
		return v
	}

	if globalFlag, _ := cmd.Root().PersistentFlags().GetBool("json"); globalFlag {
		return true
	}

	return llm.IsLLMEnvironment()
}
