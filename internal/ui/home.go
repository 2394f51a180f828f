package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/datealchemy/alchemy/internal/route"
)

const (
	homeAuth = iota
	homeSocials
	homeCount
)

var homeActions = [homeCount]struct {
	label string
	dest  route.Path
}{
	homeAuth:    {label: "The Date Alchemy", dest: route.Auth},
	homeSocials: {label: "Singles Socials", dest: route.Socials},
}

func (m Model) renderHome() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(styles.Logo.Render("✦ The Date Alchemy"))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Bold(true).Render(wrap("Redefining Dating for Busy Professionals in Mauritius", m.cardWidth()-6)))
	b.WriteString("\n")
	b.WriteString(styles.AccentText.Render("Relationship Science Based Match Making"))
	b.WriteString("\n\n")

	buttons := make([]string, 0, homeCount*2)
	for i, a := range homeActions {
		style := styles.Button
		if i == m.homeFocus {
			style = styles.ButtonFocused
		}
		if i > 0 {
			buttons = append(buttons, "  ")
		}
		buttons = append(buttons, style.Render(a.label))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, buttons...))

	if m.auth.User != nil {
		b.WriteString("\n\n")
		b.WriteString(styles.MutedText.Render("Signed in as " + m.auth.User.Email))
	}

	return lipgloss.NewStyle().Align(lipgloss.Center).Render(b.String())
}

func (m Model) handleHomeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Left, m.keys.Prev, m.keys.Up):
		m.homeFocus = (m.homeFocus + homeCount - 1) % homeCount
	case key.Matches(msg, m.keys.Right, m.keys.Next, m.keys.Down):
		m.homeFocus = (m.homeFocus + 1) % homeCount
	case key.Matches(msg, m.keys.Confirm):
		cmd := m.visit(string(homeActions[m.homeFocus].dest))
		return m, cmd
	case key.Matches(msg, m.keys.GoAuth):
		cmd := m.visit(string(route.Auth))
		return m, cmd
	case key.Matches(msg, m.keys.GoSocials):
		cmd := m.visit(string(route.Socials))
		return m, cmd
	}
	return m, nil
}
