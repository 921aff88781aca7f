package ui

import (
	"github.com/charmbracelet/glamour"
)

// RenderMarkdown renders markdown text using glamour.
// Returns the original text if colors are disabled or rendering fails.
// Word wraps at terminal width, capped at 100 columns for readability.
func RenderMarkdown(markdown string) string {
	if !ShouldUseColor() {
		return markdown
	}

	const maxReadableWidth = 100
	wrapWidth := GetWidth()
	if wrapWidth > maxReadableWidth {
		wrapWidth = maxReadableWidth
	}

	// Auto style respects the terminal's light/dark background
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return markdown
	}

	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}

	return rendered
}
