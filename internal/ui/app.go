package ui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/datealchemy/alchemy/internal/auth"
	"github.com/datealchemy/alchemy/internal/carousel"
	"github.com/datealchemy/alchemy/internal/config"
	"github.com/datealchemy/alchemy/internal/prefs"
	"github.com/datealchemy/alchemy/internal/questions"
	"github.com/datealchemy/alchemy/internal/route"
)

// defaultAfterAuth is where a successful sign-in lands when no protected
// screen sent the user to the auth screen.
const defaultAfterAuth = route.Dashboard

// Options configures the UI.
type Options struct {
	Context   context.Context
	Provider  *auth.Provider
	Questions *questions.Source
	Config    config.Config
	Prefs     prefs.Prefs
	PrefsPath string
	Logger    zerolog.Logger
	// StartPath is the first screen shown. Defaults to "/".
	StartPath string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	provider  *auth.Provider
	questions *questions.Source
	log       zerolog.Logger
	prefsPath string
	prefs     prefs.Prefs
	pxPerCell int

	// UI state
	keys     keyMap
	theme    Theme
	width    int
	height   int
	ready    bool
	showHelp bool
	spinner  spinner.Model
	notice   notice

	// Navigation
	history     route.History
	missingPath string
	afterAuth   route.Path

	// Auth state
	auth            auth.State
	awaitingSession bool
	signingOut      bool

	// Screens
	homeFocus    int
	form         authForm
	socialsFocus int
	quiz         quizState
}

// quizState is the questions screen's data and carousel.
type quizState struct {
	carousel carousel.Model
	set      questions.Set
	loaded   bool
	loading  bool
	err      error
}

type noticeKind int

const (
	noticeInfo noticeKind = iota
	noticeSuccess
	noticeError
)

// notice is a one-line message shown in the footer until the next
// navigation.
type notice struct {
	kind noticeKind
	text string
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	provider := opts.Provider
	if provider == nil {
		provider = auth.NewProvider(nil, nil)
	}

	source := opts.Questions
	if source == nil {
		source = questions.NewSource(nil, opts.Logger)
	}

	themeName := opts.Prefs.Theme
	if themeName == "" {
		themeName = DefaultThemeName
	}

	pxPerCell := opts.Config.Carousel.PixelsPerCell
	if pxPerCell <= 0 {
		pxPerCell = config.DefaultPixelsPerCell
	}

	spin := spinner.New(spinner.WithSpinner(spinner.Dot))

	m := Model{
		ctx:       ctx,
		provider:  provider,
		questions: source,
		log:       opts.Logger,
		prefsPath: opts.PrefsPath,
		prefs:     opts.Prefs,
		pxPerCell: pxPerCell,
		keys:      DefaultKeyMap(),
		theme:     GetTheme(themeName),
		spinner:   spin,
		auth:      provider.State(),
		form:      newAuthForm(opts.Prefs.LastEmail),
		quiz: quizState{
			carousel: carousel.New(0, opts.Config.Carousel.SwipeThreshold),
		},
	}
	m.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Brand))

	start := opts.StartPath
	if start == "" {
		start = string(route.Home)
	}
	m.history.Reset(route.Home)
	if r, ok := route.Match(start); !ok || r.Path != route.Home {
		m.visit(start)
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		bootstrapCmd(m.ctx, m.provider),
		waitForAuthChange(m.ctx, m.provider.Store()),
	}
	if m.quiz.loading {
		cmds = append(cmds, loadQuestionsCmd(m.ctx, m.questions))
	}
	if m.history.Current() == route.Auth && m.form.editing() {
		cmds = append(cmds, m.form.applyFocus())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.form.setWidth(m.cardWidth() - 10)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case bootstrapDoneMsg:
		m.syncAuth()
		m.log.Debug().Bool("signed_in", m.auth.User != nil).Msg("bootstrap settled")
		return m, nil

	case authChangedMsg:
		m.syncAuth()
		return m, waitForAuthChange(m.ctx, m.provider.Store())

	case authResultMsg:
		cmd := m.handleAuthResult(msg)
		return m, cmd

	case signOutMsg:
		cmd := m.handleSignOut(msg)
		return m, cmd

	case questionsMsg:
		m.handleQuestions(msg)
		return m, nil
	}

	// Cursor blink and similar input messages.
	if m.history.Current() == route.Auth && m.form.editing() {
		cmd := m.form.update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, m.renderScreen())
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) renderScreen() string {
	switch m.history.Current() {
	case route.Home:
		return m.renderHome()
	case route.Auth:
		return m.renderAuth()
	case route.Socials:
		return m.renderSocials()
	case route.Questions:
		return m.renderQuestions()
	case route.Dashboard:
		return m.renderDashboard()
	default:
		return m.renderNotFound()
	}
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	// Any key closes help
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	if m.history.Current() == route.Auth {
		return m.handleAuthKey(msg)
	}
	return m.handleGlobalKey(msg)
}

// handleGlobalKey handles keys shared by every screen, then hands off to
// the current screen.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Brand))
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.Back):
		cmd := m.back()
		return m, cmd

	case key.Matches(msg, m.keys.Home):
		cmd := m.resetTo(route.Home)
		return m, cmd
	}

	switch m.history.Current() {
	case route.Home:
		return m.handleHomeKey(msg)
	case route.Socials:
		return m.handleSocialsKey(msg)
	case route.Questions:
		return m.handleQuestionsKey(msg)
	case route.Dashboard:
		return m.handleDashboardKey(msg)
	case route.NotFound:
		if key.Matches(msg, m.keys.Confirm) {
			cmd := m.resetTo(route.Home)
			return m, cmd
		}
	}
	return m, nil
}

// syncAuth pulls the latest auth state and re-applies the route guard.
func (m *Model) syncAuth() {
	m.auth = m.provider.State()
	if m.auth.User != nil {
		m.awaitingSession = false
	}
	m.applyGuard()
}

// guardState is the auth state the route guard sees. Right after a
// successful sign-in the session is still on its way through the listener,
// so the guard waits instead of redirecting.
func (m Model) guardState() auth.State {
	s := m.auth
	if m.awaitingSession && s.User == nil {
		s.Loading = true
	}
	return s
}

func (m *Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.log.Warn().Err(err).Str("path", m.prefsPath).Msg("saving preferences failed")
	}
}

func (m *Model) rememberEmail(email string) {
	if m.prefs.LastEmail == email {
		return
	}
	m.prefs.LastEmail = email
	m.savePrefs()
}

func (m *Model) handleSignOut(msg signOutMsg) tea.Cmd {
	m.signingOut = false
	m.awaitingSession = false
	cmd := m.resetTo(route.Home)
	m.syncAuth()
	if msg.err != nil {
		m.notice = notice{kind: noticeError, text: "Signed out on this device. " + msgText(msg.err)}
	} else {
		m.notice = notice{kind: noticeSuccess, text: "Signed out"}
	}
	return cmd
}

func isConfirmationPending(err error) bool {
	return errors.Is(err, auth.ErrConfirmationPending)
}

func msgText(err error) string {
	return auth.Message(err)
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(m.ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
