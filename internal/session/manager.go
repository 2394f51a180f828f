package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/datealchemy/alchemy/internal/auth"
	"github.com/datealchemy/alchemy/internal/supabase"
)

const (
	// DefaultRefreshMargin is how long before expiry the access token is
	// refreshed.
	DefaultRefreshMargin = time.Minute
	refreshTimeout       = 15 * time.Second
	// minRefreshDelay is the shortest wait the refresh timer is armed
	// with, so a token that is already stale cannot start a refresh loop.
	minRefreshDelay = 5 * time.Second
)

// API is the slice of the Supabase client the manager drives.
type API interface {
	SignUp(ctx context.Context, email, password string) (*supabase.Session, *supabase.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*supabase.Session, error)
	GetUser(ctx context.Context, accessToken string) (*supabase.User, error)
	SignOut(ctx context.Context, accessToken string) error
	FetchProfile(ctx context.Context, accessToken, userID string) (*supabase.Profile, error)
}

// Manager is the client-side session layer: it persists the session,
// refreshes it before expiry and broadcasts changes to subscribers. It
// implements auth.Backend.
type Manager struct {
	api      API
	store    TokenStore
	log      zerolog.Logger
	now      func() time.Time
	margin   time.Duration
	minDelay time.Duration

	refreshGroup singleflight.Group

	// persistMu orders adopt and drop end to end, so a store write or an
	// event from one never interleaves with the other.
	persistMu sync.Mutex

	mu          sync.Mutex
	current     *auth.Session
	loaded      bool
	timer       *time.Timer
	scheduledAt string
	subs        map[int]*subscriber
	nextSub     int
	closed      bool
}

var _ auth.Backend = (*Manager)(nil)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithRefreshMargin overrides DefaultRefreshMargin.
func WithRefreshMargin(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.margin = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager builds a manager over api, persisting to store. A nil store
// keeps the session in memory.
func NewManager(api API, store TokenStore, opts ...Option) *Manager {
	if store == nil {
		store = &MemoryStore{}
	}
	m := &Manager{
		api:      api,
		store:    store,
		log:      zerolog.Nop(),
		now:      time.Now,
		margin:   DefaultRefreshMargin,
		minDelay: minRefreshDelay,
		subs:     map[int]*subscriber{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetSession returns the current session, loading it from the token store
// on first use. An expired access token is refreshed first; a rejected
// refresh token drops the stored session.
func (m *Manager) GetSession(ctx context.Context) (*auth.Session, error) {
	sess, err := m.cached()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if sess.Expired(m.now(), m.marginFor(sess)) {
		if sess.RefreshToken == "" {
			m.log.Info().Str("user_id", sess.UserID).Msg("stored session expired without refresh token")
			m.drop(false, carrying(sess.AccessToken))
			return nil, nil
		}
		return m.refresh(ctx, sess.RefreshToken)
	}
	if sess.UserID == "" {
		user, err := m.api.GetUser(ctx, sess.AccessToken)
		if err != nil {
			return nil, translateError("get user", err)
		}
		sess.UserID = user.ID
		sess.Email = user.Email
		m.remember(sess, carrying(sess.AccessToken))
	}
	m.scheduleRefresh(sess)
	return sess, nil
}

func (m *Manager) cached() (*auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return copySession(m.current), nil
	}
	sess, err := m.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load persisted session: %w", err)
	}
	m.loaded = true
	m.current = sess
	return copySession(sess), nil
}

// SignUp registers an account. It returns a nil session when the project
// requires e-mail confirmation.
func (m *Manager) SignUp(ctx context.Context, email, password string) (*auth.Session, error) {
	wire, user, err := m.api.SignUp(ctx, email, password)
	if err != nil {
		return nil, translateError("sign up", err)
	}
	if wire == nil {
		if user != nil {
			m.log.Info().Str("user_id", user.ID).Msg("sign-up pending e-mail confirmation")
		}
		return nil, nil
	}
	sess := m.toSession(wire)
	m.adopt(sess, auth.EventSignedIn, nil)
	return copySession(sess), nil
}

// SignIn exchanges credentials for a session and announces SIGNED_IN.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	wire, err := m.api.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, translateError("sign in", err)
	}
	sess := m.toSession(wire)
	m.adopt(sess, auth.EventSignedIn, nil)
	return copySession(sess), nil
}

// SignOut revokes the session with the backend and forgets it locally. The
// local session is dropped even when the backend call fails.
func (m *Manager) SignOut(ctx context.Context) error {
	sess, err := m.cached()
	if err != nil {
		m.log.Warn().Err(err).Msg("reading session for sign-out")
	}
	var apiErr error
	if sess != nil && sess.AccessToken != "" {
		apiErr = m.api.SignOut(ctx, sess.AccessToken)
		if alreadyGone(apiErr) {
			apiErr = nil
		}
	}
	m.drop(true, nil)
	if apiErr != nil {
		return translateError("sign out", apiErr)
	}
	return nil
}

// FetchProfile reads the profile row for sess's user.
func (m *Manager) FetchProfile(ctx context.Context, sess *auth.Session) (*auth.Profile, error) {
	if sess == nil {
		return nil, nil
	}
	row, err := m.api.FetchProfile(ctx, sess.AccessToken, sess.UserID)
	if err != nil {
		return nil, translateError("fetch profile", err)
	}
	if row == nil {
		return nil, nil
	}
	return &auth.Profile{
		ID:         row.ID,
		Email:      row.Email,
		IsApproved: row.IsApproved,
		CreatedAt:  row.ParsedCreatedAt(),
		UpdatedAt:  row.ParsedUpdatedAt(),
	}, nil
}

// Subscribe registers onChange for session changes.
func (m *Manager) Subscribe(onChange func(auth.Event)) auth.Unsubscribe {
	sub := newSubscriber(onChange)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		sub.stop()
		return func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = sub
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
		sub.stop()
	}
}

// Close stops the refresh timer and all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.stopTimerLocked()
	for id, sub := range m.subs {
		sub.stop()
		delete(m.subs, id)
	}
}

// refresh trades refreshToken for a new session. Concurrent calls for the
// same token share one request and one TOKEN_REFRESHED event.
func (m *Manager) refresh(ctx context.Context, refreshToken string) (*auth.Session, error) {
	v, err, _ := m.refreshGroup.Do(refreshToken, func() (any, error) {
		wire, err := m.api.RefreshSession(ctx, refreshToken)
		if err != nil {
			return nil, err
		}
		sess := m.toSession(wire)
		if !m.adopt(sess, auth.EventTokenRefreshed, refreshing(refreshToken)) {
			return nil, errSuperseded
		}
		return sess, nil
	})
	if err != nil {
		if errors.Is(err, errSuperseded) {
			return m.cached()
		}
		var apiErr *supabase.APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			if m.drop(true, refreshing(refreshToken)) {
				m.log.Info().Err(err).Msg("refresh token rejected; dropped session")
			}
		}
		return nil, translateError("refresh session", err)
	}
	return copySession(v.(*auth.Session)), nil
}

var errSuperseded = errors.New("session changed during refresh")

// A guard inspects the current session and reports whether a pending
// adopt or drop still applies to it. A nil guard always applies.
type guard func(current *auth.Session) bool

// refreshing matches the session that carries refreshToken.
func refreshing(refreshToken string) guard {
	return func(cur *auth.Session) bool {
		return cur != nil && cur.RefreshToken == refreshToken
	}
}

// carrying matches the session that carries accessToken.
func carrying(accessToken string) guard {
	return func(cur *auth.Session) bool {
		return cur != nil && cur.AccessToken == accessToken
	}
}

// adopt makes sess current if ok approves the session it replaces, then
// persists it, announces it and arms the refresh timer. It reports
// whether sess was adopted.
func (m *Manager) adopt(sess *auth.Session, kind auth.EventKind, ok guard) bool {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	if ok != nil && !ok(m.current) {
		m.mu.Unlock()
		return false
	}
	m.current = copySession(sess)
	m.loaded = true
	m.mu.Unlock()

	if err := m.store.Save(sess); err != nil {
		m.log.Warn().Err(err).Msg("persisting session failed; it will not survive a restart")
	}
	m.log.Debug().Stringer("event", kind).Str("user_id", sess.UserID).Time("expires_at", sess.ExpiresAt).Msg("session updated")
	m.emit(auth.Event{Kind: kind, Session: sess})
	m.scheduleRefresh(sess)
	return true
}

func (m *Manager) remember(sess *auth.Session, ok guard) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !ok(m.current) {
		return
	}
	m.current = copySession(sess)
	m.loaded = true
}

// drop forgets the session locally if ok approves it and, when announce
// is set, emits SIGNED_OUT. It reports whether anything was dropped.
func (m *Manager) drop(announce bool, ok guard) bool {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	if ok != nil && !ok(m.current) {
		m.mu.Unlock()
		return false
	}
	m.current = nil
	m.loaded = true
	m.stopTimerLocked()
	m.mu.Unlock()

	if err := m.store.Delete(); err != nil {
		m.log.Warn().Err(err).Msg("removing persisted session failed")
	}
	if announce {
		m.emit(auth.Event{Kind: auth.EventSignedOut})
	}
	return true
}

func (m *Manager) scheduleRefresh(sess *auth.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || sess == nil || sess.RefreshToken == "" || sess.ExpiresAt.IsZero() {
		return
	}
	if m.timer != nil && m.scheduledAt == sess.RefreshToken {
		return
	}
	m.stopTimerLocked()

	delay := sess.ExpiresAt.Sub(m.now()) - m.marginFor(sess)
	if delay < m.minDelay {
		delay = m.minDelay
	}
	token := sess.RefreshToken
	m.scheduledAt = token
	m.timer = time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if _, err := m.refresh(ctx, token); err != nil {
			m.log.Warn().Err(err).Msg("scheduled token refresh failed")
		}
	})
}

// marginFor is the refresh margin for sess: the configured margin, but
// never more than half the token's lifetime.
func (m *Manager) marginFor(sess *auth.Session) time.Duration {
	margin := m.margin
	if sess.IssuedAt.IsZero() {
		return margin
	}
	if life := sess.ExpiresAt.Sub(sess.IssuedAt); life > 0 && life/2 < margin {
		margin = life / 2
	}
	return margin
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.scheduledAt = ""
}

func (m *Manager) emit(ev auth.Event) {
	m.mu.Lock()
	subs := make([]*subscriber, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub.push(auth.Event{Kind: ev.Kind, Session: copySession(ev.Session)})
	}
}

func (m *Manager) toSession(wire *supabase.Session) *auth.Session {
	issued := m.now()
	sess := &auth.Session{
		AccessToken:  wire.AccessToken,
		RefreshToken: wire.RefreshToken,
		IssuedAt:     issued,
		ExpiresAt:    wire.Expiry(issued),
		UserID:       wire.User.ID,
		Email:        wire.User.Email,
	}
	if sess.UserID != "" && sess.Email != "" && !sess.ExpiresAt.IsZero() {
		return sess
	}
	claims, err := supabase.ParseClaims(wire.AccessToken)
	if err != nil {
		m.log.Debug().Err(err).Msg("access token claims unreadable")
		return sess
	}
	if sess.UserID == "" {
		sess.UserID = claims.Subject
	}
	if sess.Email == "" {
		sess.Email = claims.Email
	}
	if sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = claims.Expiry()
	}
	return sess
}

// alreadyGone reports whether a logout failure means the session was
// already invalid server-side.
func alreadyGone(err error) bool {
	var apiErr *supabase.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

func translateError(op string, err error) error {
	var apiErr *supabase.APIError
	var transportErr *supabase.TransportError
	switch {
	case errors.As(err, &apiErr):
		return &auth.BackendError{Status: apiErr.Status, Code: apiErr.Code, Message: apiErr.Message}
	case errors.As(err, &transportErr):
		return &auth.NetworkError{Op: op, Err: transportErr.Err}
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
