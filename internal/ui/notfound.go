package ui

import (
	"strings"
)

func (m Model) renderNotFound() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(styles.BrandText.Render("404"))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Bold(true).Render("Page not found"))
	b.WriteString("\n")
	if m.missingPath != "" {
		b.WriteString(styles.MutedText.Render(truncate(m.missingPath, m.cardWidth()-6)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.ButtonFocused.Render("Back to Home"))
	return styles.Card.Width(m.cardWidth()).Render(b.String())
}
