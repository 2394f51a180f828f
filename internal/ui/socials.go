package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/datealchemy/alchemy/internal/route"
)

// socialTile is one entry of the socials hub. Tiles without a destination
// are placeholders.
type socialTile struct {
	title string
	dest  route.Path
}

var socialTiles = []socialTile{
	{title: "Ice Breaking Questions", dest: route.Questions},
	{title: "Under Progress"},
	{title: "Under Progress"},
	{title: "Under Progress"},
}

const socialColumns = 2

func (m Model) renderSocials() string {
	styles := m.theme.Styles()

	tileWidth := (m.cardWidth() - 4) / socialColumns
	if tileWidth < 18 {
		tileWidth = 18
	}

	tiles := make([]string, len(socialTiles))
	for i, t := range socialTiles {
		style := styles.Card
		if i == m.socialsFocus {
			style = styles.CardFocused
		}
		title := styles.Text.Bold(true).Render(t.title)
		sub := styles.AccentText.Render("Open ›")
		if t.dest == "" {
			title = styles.MutedText.Bold(true).Render(t.title)
			sub = styles.FaintText.Render("Coming Soon")
		}
		tiles[i] = style.
			Width(tileWidth).
			Align(lipgloss.Center).
			Render(title + "\n" + sub)
	}

	rows := make([]string, 0, (len(tiles)+socialColumns-1)/socialColumns)
	for i := 0; i < len(tiles); i += socialColumns {
		end := min(i+socialColumns, len(tiles))
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, tiles[i:end]...))
	}

	var b strings.Builder
	b.WriteString(styles.BrandText.Render("Singles Socials"))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render("Connect, explore, and discover meaningful connections"))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.JoinVertical(lipgloss.Left, rows...))

	return lipgloss.NewStyle().Align(lipgloss.Center).Render(b.String())
}

func (m Model) handleSocialsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(socialTiles)
	switch {
	case key.Matches(msg, m.keys.Left):
		if m.socialsFocus%socialColumns > 0 {
			m.socialsFocus--
		}
	case key.Matches(msg, m.keys.Right):
		if m.socialsFocus%socialColumns < socialColumns-1 && m.socialsFocus+1 < n {
			m.socialsFocus++
		}
	case key.Matches(msg, m.keys.Up):
		if m.socialsFocus-socialColumns >= 0 {
			m.socialsFocus -= socialColumns
		}
	case key.Matches(msg, m.keys.Down):
		if m.socialsFocus+socialColumns < n {
			m.socialsFocus += socialColumns
		}
	case key.Matches(msg, m.keys.Next):
		m.socialsFocus = (m.socialsFocus + 1) % n
	case key.Matches(msg, m.keys.Prev):
		m.socialsFocus = (m.socialsFocus + n - 1) % n
	case key.Matches(msg, m.keys.Confirm):
		tile := socialTiles[m.socialsFocus]
		if tile.dest == "" {
			m.notice = notice{kind: noticeInfo, text: "Coming Soon"}
			return m, nil
		}
		cmd := m.visit(string(tile.dest))
		return m, cmd
	}
	return m, nil
}
