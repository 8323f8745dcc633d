package finalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSections(t *testing.T) {
	text := `FINAL:
Overview: A small tokenizer.
It has two stages.

Key Components
- Lexer
- Parser

data flow: bytes to tokens
Risks / Pitfalls:
- unbounded recursion`

	s := ParseSections(text)
	assert.Equal(t, "A small tokenizer.\nIt has two stages.", s["overview"])
	assert.Equal(t, "- Lexer\n- Parser", s["components"])
	assert.Equal(t, "bytes to tokens", s["data_flow"])
	assert.Equal(t, "- unbounded recursion", s["risks"])
	assert.Equal(t, NotProvided, s["assumptions"])
	assert.Equal(t, NotProvided, s["open_questions"])
}

func TestParseSections_MarkdownHeadings(t *testing.T) {
	s := ParseSections("## Overview\nmain loop\n\n### **Open Questions**\n- threads?")
	assert.Equal(t, "main loop", s["overview"])
	assert.Equal(t, "- threads?", s["open_questions"])
}

func TestParseSections_NoHeadingsFallsBackToOverview(t *testing.T) {
	s := ParseSections("FINAL: This code reads a file and prints it.\nNothing else.")
	assert.Equal(t, "This code reads a file and prints it.\nNothing else.", s["overview"])
	for _, sec := range SectionTitles[1:] {
		assert.Equal(t, NotProvided, s[sec.Key], sec.Key)
	}
}

func TestParseSections_Empty(t *testing.T) {
	s := ParseSections("  ")
	assert.Len(t, s, len(SectionTitles))
	assert.Equal(t, NotProvided, s["overview"])
}

func TestSectionsFromAnalysis(t *testing.T) {
	s := SectionsFromAnalysis(&Analysis{
		Overview:   "o",
		Components: []Component{{Name: "A", Responsibility: "does a"}},
		DataFlow:   "",
		Risks:      []string{"r1", "r2"},
	})
	assert.Equal(t, "o", s["overview"])
	assert.Equal(t, "- **A**: does a", s["components"])
	assert.Equal(t, NotProvided, s["data_flow"])
	assert.Equal(t, "- r1\n- r2", s["risks"])
	assert.Equal(t, NotProvided, s["open_questions"])
}
