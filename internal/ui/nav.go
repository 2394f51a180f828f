package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/datealchemy/alchemy/internal/route"
)

// visit navigates to raw, pushing it onto the back stack. Unknown paths
// land on the not-found screen, which echoes them.
func (m *Model) visit(raw string) tea.Cmd {
	r, ok := route.Match(raw)
	m.missingPath = ""
	if !ok {
		m.missingPath = raw
	}
	m.notice = notice{}
	m.history.Push(r.Path)
	return m.enter()
}

// back pops one screen. At the bottom of the stack it does nothing.
func (m *Model) back() tea.Cmd {
	if !m.history.Back() {
		return nil
	}
	m.notice = notice{}
	return m.enter()
}

// resetTo jumps to p and forgets the back stack.
func (m *Model) resetTo(p route.Path) tea.Cmd {
	m.history.Reset(p)
	m.missingPath = ""
	m.notice = notice{}
	return m.enter()
}

// enter runs after every navigation: it applies the route guard and
// prepares the screen that ends up current.
func (m *Model) enter() tea.Cmd {
	m.applyGuard()
	switch m.history.Current() {
	case route.Auth:
		return m.form.applyFocus()
	case route.Questions:
		if !m.quiz.loaded && !m.quiz.loading {
			m.quiz.loading = true
			return loadQuestionsCmd(m.ctx, m.questions)
		}
	}
	return nil
}

// applyGuard redirects a protected screen to the auth screen once auth
// state settles without a user. The protected path is remembered so a
// successful sign-in returns to it.
func (m *Model) applyGuard() {
	cur, ok := route.Match(string(m.history.Current()))
	if !ok || !cur.Protected {
		return
	}
	if route.Guard(m.guardState()) != route.RedirectToAuth {
		return
	}
	m.log.Debug().Str("path", string(cur.Path)).Msg("redirecting to sign-in")
	m.afterAuth = cur.Path
	m.history.Replace(route.Auth)
	m.form.applyFocus()
}
