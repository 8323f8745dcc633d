package finalize

import (
	"strings"
)

// NotProvided fills sections the answer left empty
const NotProvided = "Not provided."

// Section is one titled part of a free-text answer
type Section struct {
	Key   string
	Title string
}

// SectionTitles in display order. Headings match by case-insensitive prefix.
var SectionTitles = []Section{
	{"overview", "Overview"},
	{"components", "Key Components"},
	{"data_flow", "Data Flow"},
	{"assumptions", "Assumptions"},
	{"risks", "Risks / Pitfalls"},
	{"open_questions", "Open Questions"},
}

// Sections maps section keys to their text
type Sections map[string]string

// ParseSections splits a free-text answer into SectionTitles. Text on a
// heading line after the title (and an optional colon) belongs to that
// section. When no heading is recognized the whole answer becomes the
// overview. Empty sections are set to NotProvided.
func ParseSections(text string) Sections {
	normalized := strings.TrimSpace(StripFinalPrefix(text))

	builders := make(map[string]*strings.Builder, len(SectionTitles))
	for _, s := range SectionTitles {
		builders[s.Key] = &strings.Builder{}
	}

	current := ""
	for _, line := range strings.Split(normalized, "\n") {
		line = strings.TrimRight(line, "\r")
		heading := headingText(line)
		if section, ok := matchHeading(heading); ok {
			current = section.Key
			remainder := strings.TrimSpace(strings.TrimLeft(heading[len(section.Title):], "*:"))
			if remainder != "" {
				builders[current].WriteString(remainder + "\n")
			}
			continue
		}
		if current != "" {
			builders[current].WriteString(line + "\n")
		}
	}

	found := false
	for _, b := range builders {
		if strings.TrimSpace(b.String()) != "" {
			found = true
			break
		}
	}

	sections := make(Sections, len(SectionTitles))
	for _, s := range SectionTitles {
		sections[s.Key] = builders[s.Key].String()
	}
	if !found {
		sections["overview"] = normalized
	}
	for key, value := range sections {
		if value = strings.TrimSpace(value); value == "" {
			value = NotProvided
		}
		sections[key] = value
	}
	return sections
}

// headingText drops Markdown heading and bold markers around a line
func headingText(line string) string {
	text := strings.TrimSpace(line)
	text = strings.TrimSpace(strings.TrimLeft(text, "#"))
	return strings.TrimPrefix(text, "**")
}

// matchHeading matches a line against the section titles by prefix
func matchHeading(line string) (Section, bool) {
	lower := strings.ToLower(line)
	for _, s := range SectionTitles {
		if strings.HasPrefix(lower, strings.ToLower(s.Title)) {
			return s, true
		}
	}
	return Section{}, false
}

// SectionsFromAnalysis renders a structured answer into the same sections
// free-text answers produce, so both can be displayed the same way
func SectionsFromAnalysis(a *Analysis) Sections {
	var components []string
	for _, c := range a.Components {
		components = append(components, "- **"+c.Name+"**: "+c.Responsibility)
	}
	bullets := func(items []string) string {
		lines := make([]string, len(items))
		for i, item := range items {
			lines[i] = "- " + item
		}
		return strings.Join(lines, "\n")
	}

	sections := Sections{
		"overview":       a.Overview,
		"components":     strings.Join(components, "\n"),
		"data_flow":      a.DataFlow,
		"assumptions":    bullets(a.Assumptions),
		"risks":          bullets(a.Risks),
		"open_questions": bullets(a.OpenQuestions),
	}
	for key, value := range sections {
		if strings.TrimSpace(value) == "" {
			sections[key] = NotProvided
		}
	}
	return sections
}
