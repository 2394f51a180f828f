package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/datealchemy/alchemy/internal/auth"
	"github.com/datealchemy/alchemy/internal/questions"
)

// Messages delivered back to Update by the commands below.
type (
	bootstrapDoneMsg struct{}
	authChangedMsg   struct{}
	authResultMsg    struct {
		action authAction
		err    error
	}
	signOutMsg struct {
		err error
	}
	questionsMsg struct {
		set questions.Set
		err error
	}
)

func bootstrapCmd(ctx context.Context, p *auth.Provider) tea.Cmd {
	return func() tea.Msg {
		p.Bootstrap(ctx)
		return bootstrapDoneMsg{}
	}
}

// waitForAuthChange blocks until the auth store changes. Update re-arms it
// after every change.
func waitForAuthChange(ctx context.Context, store *auth.Store) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-store.Changes():
			return authChangedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func authCmd(ctx context.Context, p *auth.Provider, action authAction, creds credentials) tea.Cmd {
	return func() tea.Msg {
		var err error
		switch action {
		case actionSignUp:
			err = p.SignUp(ctx, creds.Email, creds.Password)
		default:
			err = p.SignIn(ctx, creds.Email, creds.Password)
		}
		return authResultMsg{action: action, err: err}
	}
}

func signOutCmd(ctx context.Context, p *auth.Provider) tea.Cmd {
	return func() tea.Msg {
		return signOutMsg{err: p.SignOut(ctx)}
	}
}

func loadQuestionsCmd(ctx context.Context, src *questions.Source) tea.Cmd {
	return func() tea.Msg {
		set, err := src.Load(ctx)
		return questionsMsg{set: set, err: err}
	}
}
