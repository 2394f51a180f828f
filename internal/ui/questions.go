package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/datealchemy/alchemy/internal/questions"
	"github.com/datealchemy/alchemy/internal/route"
)

func (m *Model) handleQuestions(msg questionsMsg) {
	m.quiz.loading = false
	m.quiz.loaded = true
	m.quiz.set = msg.set
	m.quiz.err = msg.err
	m.quiz.carousel.SetCount(len(msg.set.Questions))
	m.log.Debug().
		Int("count", len(msg.set.Questions)).
		Stringer("origin", msg.set.Origin).
		Msg("questions loaded")

	if msg.err != nil && m.history.Current() == route.Questions {
		m.notice = notice{kind: noticeError, text: "Showing bundled questions: " + msgText(msg.err)}
	}
}

func (m Model) handleQuestionsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.quiz.loaded {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Left):
		m.quiz.carousel.Prev()
	case key.Matches(msg, m.keys.Right):
		m.quiz.carousel.Next()
	}
	return m, nil
}

// handleMouse maps a left-button drag on the questions screen onto the
// carousel's touch gestures. Cell columns are scaled to pixels so the
// swipe threshold keeps its meaning.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.showHelp || m.history.Current() != route.Questions || !m.quiz.loaded {
		return m, nil
	}

	x := msg.X * m.pxPerCell
	c := &m.quiz.carousel
	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonLeft:
			c.TouchStart(x)
		case tea.MouseButtonWheelDown, tea.MouseButtonWheelRight:
			c.Next()
		case tea.MouseButtonWheelUp, tea.MouseButtonWheelLeft:
			c.Prev()
		}
	case tea.MouseActionMotion:
		c.TouchMove(x)
	case tea.MouseActionRelease:
		c.TouchMove(x)
		c.TouchEnd()
	}
	return m, nil
}

func (m Model) renderQuestions() string {
	styles := m.theme.Styles()
	width := m.cardWidth()

	if !m.quiz.loaded {
		return m.spinner.View() + styles.MutedText.Render(" Loading questions...")
	}

	c := m.quiz.carousel
	qs := m.quiz.set.Questions
	if len(qs) == 0 {
		return styles.MutedText.Render("No questions available")
	}

	text := wrap(qs[c.Index()], width-8)
	card := styles.CardFocused.
		Width(width).
		Height(7).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.Text.Bold(true).Render(text))

	// Follow the pointer while dragging. Padding on one side moves the
	// centred card by half its width, hence the doubling.
	if shift := c.Offset() / m.pxPerCell; shift != 0 {
		limit := width / 2
		shift = max(-limit, min(limit, shift))
		pad := lipgloss.NewStyle()
		if shift > 0 {
			pad = pad.PaddingLeft(shift * 2)
		} else {
			pad = pad.PaddingRight(-shift * 2)
		}
		card = pad.Render(card)
	}

	prev := styles.Button.Render("‹ Prev")
	if c.AtStart() {
		prev = styles.FaintText.Padding(0, 2).Render("‹ Prev")
	}
	next := styles.Button.Render("Next ›")
	if c.AtEnd() {
		next = styles.FaintText.Padding(0, 2).Render("Next ›")
	}
	counter := styles.MutedText.Padding(0, 2).Render(fmt.Sprintf("%d / %d", c.Index()+1, c.Count()))
	controls := lipgloss.JoinHorizontal(lipgloss.Center, prev, counter, next)

	var b strings.Builder
	b.WriteString(styles.BrandText.Render("Ice Breaking Questions"))
	if m.quiz.set.Origin == questions.OriginFallback {
		b.WriteString(styles.FaintText.Render("  (offline set)"))
	}
	b.WriteString("\n\n")
	b.WriteString(card)
	b.WriteString("\n\n")
	b.WriteString(controls)
	b.WriteString("\n\n")
	b.WriteString(styles.FaintText.Render("Swipe left or right to navigate"))

	return lipgloss.NewStyle().Align(lipgloss.Center).Render(b.String())
}
