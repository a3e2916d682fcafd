// Package render renders run summaries for the terminal.
package render

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

const defaultWidth = 80

// Markdown renders markdown for terminal display, wrapping at width (80 if not positive).
// with noColor the content is returned unchanged, so logs and CI output stay plain.
func Markdown(content string, width int, noColor bool) (string, error) {
	if noColor {
		return content, nil
	}
	if width <= 0 {
		width = defaultWidth
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}

	result, err := renderer.Render(content)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return result, nil
}
