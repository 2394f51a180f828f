package ui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-playground/validator/v10"
)

// Focus slots on the auth screen.
const (
	focusEmail = iota
	focusPassword
	focusSignUp
	focusLogIn
	focusCount
)

type authAction int

const (
	actionSignUp authAction = iota
	actionLogIn
)

func (a authAction) String() string {
	if a == actionSignUp {
		return "sign up"
	}
	return "log in"
}

// credentials is the validated form payload.
type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// authForm holds the e-mail/password inputs and their validation errors.
type authForm struct {
	email    textinput.Model
	password textinput.Model
	focus    int
	busy     bool
	errs     map[string]string
}

func newAuthForm(lastEmail string) authForm {
	email := textinput.New()
	email.Placeholder = "your@email.com"
	email.CharLimit = 254
	email.Prompt = ""
	email.SetValue(lastEmail)

	password := textinput.New()
	password.Placeholder = "Enter your password"
	password.CharLimit = 72
	password.Prompt = ""
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	f := authForm{email: email, password: password}
	if strings.TrimSpace(lastEmail) != "" {
		f.focus = focusPassword
	}
	f.applyFocus()
	return f
}

// editing reports whether a text input has focus.
func (f authForm) editing() bool {
	return f.focus == focusEmail || f.focus == focusPassword
}

func (f *authForm) setWidth(w int) {
	if w < 10 {
		w = 10
	}
	f.email.Width = w
	f.password.Width = w
}

func (f *authForm) move(delta int) tea.Cmd {
	f.focus = (f.focus + delta + focusCount) % focusCount
	return f.applyFocus()
}

func (f *authForm) applyFocus() tea.Cmd {
	f.email.Blur()
	f.password.Blur()
	switch f.focus {
	case focusEmail:
		return f.email.Focus()
	case focusPassword:
		return f.password.Focus()
	}
	return nil
}

// update forwards msg to the focused input.
func (f *authForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch f.focus {
	case focusEmail:
		f.email, cmd = f.email.Update(msg)
		delete(f.errs, "Email")
	case focusPassword:
		f.password, cmd = f.password.Update(msg)
		delete(f.errs, "Password")
	}
	return cmd
}

// validate checks the inputs and returns field errors keyed by field name.
func (f authForm) validate() (credentials, map[string]string) {
	creds := credentials{
		Email:    strings.TrimSpace(f.email.Value()),
		Password: f.password.Value(),
	}
	err := validate.Struct(creds)
	if err == nil {
		return creds, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return creds, map[string]string{"Email": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fieldMessage(fe)
	}
	return creds, out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() + "." + fe.Tag() {
	case "Email.required":
		return "E-mail is required"
	case "Email.email":
		return "Enter a valid e-mail address"
	case "Password.required":
		return "Password is required"
	case "Password.min":
		return "Password must be at least " + fe.Param() + " characters"
	default:
		return fe.Error()
	}
}

func (f *authForm) resetPassword() {
	f.password.Reset()
}

func (m Model) renderAuth() string {
	styles := m.theme.Styles()
	f := m.form

	var b strings.Builder
	b.WriteString(styles.Logo.Render("✦ The Date Alchemy"))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Bold(true).Render("Welcome"))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render("Sign up or log in to continue your journey"))
	b.WriteString("\n\n")

	field := func(label string, input textinput.Model, focused bool, errMsg string) {
		labelStyle := styles.MutedText
		if focused {
			labelStyle = styles.AccentText.Bold(true)
		}
		b.WriteString(labelStyle.Render(label))
		b.WriteString("\n")
		box := lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color(m.theme.Border)).
			Padding(0, 1)
		if focused {
			box = box.BorderForeground(lipgloss.Color(m.theme.BorderFocus))
		}
		b.WriteString(box.Render(input.View()))
		b.WriteString("\n")
		if errMsg != "" {
			b.WriteString(styles.DangerText.Render(errMsg))
			b.WriteString("\n")
		}
	}
	field("Email", f.email, f.focus == focusEmail, f.errs["Email"])
	field("Password", f.password, f.focus == focusPassword, f.errs["Password"])
	b.WriteString("\n")

	signUp := styles.Button.Render("Sign Up")
	if f.focus == focusSignUp {
		signUp = styles.ButtonFocused.Render("Sign Up")
	}
	logIn := styles.Button.Render("Log In")
	if f.focus == focusLogIn {
		logIn = styles.ButtonFocused.Render("Log In")
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, signUp, "  ", logIn))

	if f.busy {
		b.WriteString("\n\n")
		b.WriteString(m.spinner.View() + styles.MutedText.Render(" Contacting server..."))
	} else if !m.provider.Configured() {
		b.WriteString("\n\n")
		b.WriteString(styles.WarningText.Render("Offline mode: sign-in is unavailable"))
	}

	return styles.Card.Width(m.cardWidth()).Render(b.String())
}

// handleAuthKey processes keyboard input for the auth screen.
func (m Model) handleAuthKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		cmd := m.back()
		return m, cmd
	case "tab", "down":
		cmd := m.form.move(1)
		return m, cmd
	case "shift+tab", "up":
		cmd := m.form.move(-1)
		return m, cmd
	case "left", "right":
		if !m.form.editing() {
			if m.form.focus == focusSignUp {
				m.form.focus = focusLogIn
			} else {
				m.form.focus = focusSignUp
			}
			return m, nil
		}
	case "enter":
		switch m.form.focus {
		case focusEmail:
			cmd := m.form.move(1)
			return m, cmd
		case focusPassword, focusLogIn:
			return m.submit(actionLogIn)
		case focusSignUp:
			return m.submit(actionSignUp)
		}
	}
	if m.form.editing() {
		cmd := m.form.update(msg)
		return m, cmd
	}
	return m.handleGlobalKey(msg)
}

// submit validates the form and starts the backend call.
func (m Model) submit(action authAction) (tea.Model, tea.Cmd) {
	if m.form.busy {
		return m, nil
	}
	creds, errs := m.form.validate()
	m.form.errs = errs
	if len(errs) > 0 {
		if _, bad := errs["Email"]; bad {
			m.form.focus = focusEmail
		} else {
			m.form.focus = focusPassword
		}
		cmd := m.form.applyFocus()
		return m, cmd
	}

	m.form.busy = true
	m.notice = notice{}
	m.rememberEmail(creds.Email)
	m.log.Debug().Stringer("action", action).Msg("auth form submitted")
	return m, tea.Batch(authCmd(m.ctx, m.provider, action, creds), m.spinner.Tick)
}

func (m *Model) handleAuthResult(msg authResultMsg) tea.Cmd {
	m.form.busy = false
	switch {
	case msg.err == nil:
		m.form.resetPassword()
		m.form.errs = nil
		m.awaitingSession = true
		dest := m.afterAuth
		if dest == "" {
			dest = defaultAfterAuth
		}
		m.afterAuth = ""
		m.history.Replace(dest)
		return m.enter()
	case isConfirmationPending(msg.err):
		m.form.resetPassword()
		m.notice = notice{kind: noticeInfo, text: msgText(msg.err)}
		m.form.focus = focusLogIn
		return m.form.applyFocus()
	default:
		m.notice = notice{kind: noticeError, text: msgText(msg.err)}
		return nil
	}
}
