package ui

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// truncate shortens a string to the given limit, adding ellipsis if needed.
func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// wrap breaks text on word boundaries so no line is wider than width.
// Words longer than width are split.
func wrap(text string, width int) string {
	text = strings.TrimSpace(text)
	if width <= 0 {
		return text
	}
	return ansi.Wrap(text, width, "-")
}
