package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/datealchemy/alchemy/internal/route"
)

// cardWidth is the width of the centred content card.
func (m Model) cardWidth() int {
	w := m.width - 8
	if w > 72 {
		w = 72
	}
	if w < 30 {
		w = 30
	}
	return w
}

func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	title := "Not found"
	if r, ok := route.Match(string(m.history.Current())); ok {
		title = r.Title
	}

	left := bg.Join([]string{
		styles.Logo.Render("✦ Date Alchemy"),
		styles.MutedText.Render(title),
	}, "  ›  ")

	var badge string
	switch {
	case m.auth.Loading:
		badge = styles.FaintText.Render("checking session")
	case !m.provider.Configured():
		badge = styles.WarningText.Render("offline")
	case m.auth.User == nil:
		badge = styles.MutedText.Render("signed out")
	case m.auth.Approved():
		badge = styles.SuccessText.Render("● ") + styles.Text.Render(truncate(m.auth.User.Email, 32))
	default:
		badge = styles.WarningText.Render("● ") + styles.Text.Render(truncate(m.auth.User.Email, 32))
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(badge) - 2
	if gap < 1 {
		gap = 1
	}
	return styles.Header.Width(m.width).Render(left + bg.Spaces(gap) + badge)
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	var line string
	if m.notice.text != "" {
		style := styles.InfoText
		switch m.notice.kind {
		case noticeSuccess:
			style = styles.SuccessText
		case noticeError:
			style = styles.DangerText
		}
		line = style.Render(truncate(m.notice.text, m.width-4))
	} else {
		hints := make([]string, 0, 6)
		for _, b := range m.screenHints() {
			h := b.Help()
			hints = append(hints, styles.AccentText.Render(h.Key)+bg.Space()+styles.MutedText.Render(h.Desc))
		}
		line = bg.Join(hints, "  ")
	}
	return styles.Footer.Width(m.width).Render(line)
}

// screenHints lists the bindings worth advertising on the current screen.
func (m Model) screenHints() []key.Binding {
	k := m.keys
	var out []key.Binding
	switch m.history.Current() {
	case route.Home:
		out = []key.Binding{k.GoAuth, k.GoSocials, k.Confirm}
	case route.Auth:
		out = []key.Binding{k.Next, k.Confirm}
	case route.Socials:
		out = []key.Binding{k.Confirm}
	case route.Questions:
		out = []key.Binding{k.Left, k.Right}
	case route.Dashboard:
		switch route.Guard(m.guardState()) {
		case route.Allow:
			out = []key.Binding{k.SignOut, k.Refresh}
		case route.ApprovalPending:
			out = []key.Binding{k.Refresh}
		}
	}
	if m.history.Current() != route.Home {
		out = append(out, k.Back)
	}
	return append(out, k.ShortHelp()[0], k.Quit)
}
