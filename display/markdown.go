package display

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// MarkdownWidth is the wrap width of rendered Markdown
const MarkdownWidth = 80

var (
	rendererOnce sync.Once
	renderer     *glamour.TermRenderer
)

// RenderMarkdown renders text for the terminal. When styling is
// unavailable the text is returned unchanged.
func RenderMarkdown(text string) string {
	rendererOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(MarkdownWidth),
		)
		if err == nil {
			renderer = r
		}
	})
	if renderer == nil || PlainOutput {
		return text
	}
	out, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// PlainOutput disables Markdown styling, for --json runs and tests
var PlainOutput bool
