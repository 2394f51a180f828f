package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/datealchemy/alchemy/internal/route"
)

func (m Model) renderDashboard() string {
	styles := m.theme.Styles()
	state := m.guardState()

	switch route.Guard(state) {
	case route.Wait, route.RedirectToAuth:
		return m.spinner.View() + styles.MutedText.Render(" Loading...")

	case route.ApprovalPending:
		var b strings.Builder
		b.WriteString(styles.WarningText.Bold(true).Render("Approval Pending"))
		b.WriteString("\n\n")
		b.WriteString(styles.Text.Render(wrap(
			"Your account is currently under review. You will be able to access the dashboard once an administrator approves your profile.",
			m.cardWidth()-6,
		)))
		b.WriteString("\n\n")
		b.WriteString(styles.MutedText.Render("Signed in as: " + state.User.Email))
		b.WriteString("\n\n")
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			styles.ButtonFocused.Render("Back to Home"),
			"  ",
			styles.FaintText.Render("r to re-check approval"),
		))
		return styles.Card.Width(m.cardWidth()).Render(b.String())
	}

	label := styles.MutedText.Width(12)
	row := func(name, value string) string {
		return label.Render(name) + styles.Text.Render(value)
	}

	p := state.Profile
	var b strings.Builder
	b.WriteString(styles.BrandText.Render("Dashboard"))
	b.WriteString("\n\n")
	b.WriteString(row("E-mail", state.User.Email))
	b.WriteString("\n")
	b.WriteString(label.Render("Status") + styles.SuccessText.Render("Approved"))
	b.WriteString("\n")
	b.WriteString(row("Member since", formatTime(p.CreatedAt)))
	b.WriteString("\n")
	b.WriteString(row("Updated", formatTime(p.UpdatedAt)))
	b.WriteString("\n\n")

	if m.signingOut {
		b.WriteString(m.spinner.View() + styles.MutedText.Render(" Signing out..."))
	} else {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			styles.ButtonFocused.Render("Sign out"),
			"  ",
			styles.FaintText.Render("o / enter"),
		))
	}
	return styles.Card.Width(m.cardWidth()).Render(b.String())
}

func (m Model) handleDashboardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch route.Guard(m.guardState()) {
	case route.ApprovalPending:
		switch {
		case key.Matches(msg, m.keys.Confirm):
			cmd := m.resetTo(route.Home)
			return m, cmd
		case key.Matches(msg, m.keys.Refresh):
			m.notice = notice{kind: noticeInfo, text: "Re-checking approval..."}
			return m, bootstrapCmd(m.ctx, m.provider)
		}
	case route.Allow:
		switch {
		case key.Matches(msg, m.keys.SignOut, m.keys.Confirm):
			if m.signingOut {
				return m, nil
			}
			m.signingOut = true
			return m, tea.Batch(signOutCmd(m.ctx, m.provider), m.spinner.Tick)
		case key.Matches(msg, m.keys.Refresh):
			m.notice = notice{kind: noticeInfo, text: "Re-checking session..."}
			return m, bootstrapCmd(m.ctx, m.provider)
		}
	}
	return m, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2 Jan 2006 15:04")
}
