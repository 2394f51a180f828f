package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBootstrapTimeout bounds how long Loading stays true at startup.
const DefaultBootstrapTimeout = 5 * time.Second

// Provider owns the auth state for one application run. It restores the
// persisted session at start, tracks backend session changes, and exposes
// the sign-up, sign-in and sign-out actions.
//
// A Provider with a nil Backend runs unconfigured: bootstrap settles
// immediately and every action returns ErrNotConfigured.
type Provider struct {
	backend Backend
	store   *Store
	log     zerolog.Logger
	timeout time.Duration

	mu          sync.Mutex
	mounted     bool
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe Unsubscribe
}

// Option configures a Provider.
type Option func(*Provider)

// WithBootstrapTimeout overrides DefaultBootstrapTimeout. Non-positive
// values are ignored.
func WithBootstrapTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger. The default discards.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Provider) { p.log = log }
}

// NewProvider builds a provider over backend. Pass a nil backend when the
// service is not configured.
func NewProvider(backend Backend, store *Store, opts ...Option) *Provider {
	if store == nil {
		store = NewStore()
	}
	p := &Provider{
		backend: backend,
		store:   store,
		log:     zerolog.Nop(),
		timeout: DefaultBootstrapTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Store returns the provider's state store.
func (p *Provider) Store() *Store { return p.store }

// State returns a snapshot of the auth state.
func (p *Provider) State() State { return p.store.Snapshot() }

// Configured reports whether a backend is available.
func (p *Provider) Configured() bool { return p.backend != nil }

// Mount subscribes to backend session changes. It does not block; run
// Bootstrap afterwards to restore the persisted session. Mounting twice is
// a no-op.
func (p *Provider) Mount(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mounted {
		return
	}
	p.mounted = true
	p.ctx, p.cancel = context.WithCancel(ctx)
	if p.backend == nil {
		return
	}
	p.unsubscribe = p.backend.Subscribe(p.handleEvent)
}

// Unmount cancels the subscription and in-flight work. Results that arrive
// afterwards are dropped.
func (p *Provider) Unmount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mounted {
		return
	}
	p.mounted = false
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.store.Dispose()
}

// Bootstrap restores the persisted session and its profile, then clears
// Loading. It returns once the fetch completes or the bootstrap timeout
// elapses, whichever comes first. A fetch that completes after the timeout
// still updates the user and profile while the provider is mounted.
//
// Failures are logged and never surface: the user simply stays signed out.
// Running Bootstrap again re-fetches and overwrites with the backend's
// current answer.
func (p *Provider) Bootstrap(ctx context.Context) {
	if p.backend == nil {
		p.log.Debug().Msg("auth backend not configured; skipping session bootstrap")
		p.store.SetLoading(false)
		return
	}

	w := p.store.Writer()
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.restore(p.workContext(ctx), w)
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		p.log.Warn().Err(ErrBootstrapTimeout).Dur("timeout", p.timeout).Msg("session fetch still running; continuing signed out")
	case <-ctx.Done():
		p.log.Debug().Err(ctx.Err()).Msg("session bootstrap cancelled")
	}
	p.store.SetLoading(false)
}

func (p *Provider) restore(ctx context.Context, w Writer) {
	sess, err := p.backend.GetSession(ctx)
	if err != nil {
		p.log.Warn().Err(err).Str("kind", KindOf(err).String()).Msg("session restore failed")
		return
	}
	if sess == nil {
		p.log.Debug().Msg("no persisted session")
		w.SetIdentity(nil, nil)
		return
	}
	if !w.SetSession(sess) {
		return
	}
	profile, err := p.backend.FetchProfile(ctx, sess)
	if err != nil {
		p.log.Warn().Err(err).Str("user_id", sess.UserID).Msg("profile fetch failed during bootstrap")
		return
	}
	w.SetProfile(profile)
	p.log.Info().Str("user_id", sess.UserID).Bool("approved", profile != nil && profile.IsApproved).Msg("session restored")
}

func (p *Provider) handleEvent(ev Event) {
	p.log.Debug().Stringer("event", ev.Kind).Msg("auth state change")
	if ev.Session == nil {
		p.store.Clear()
		return
	}

	w := p.store.Writer()
	if !w.SetSession(ev.Session) {
		return
	}
	profile, err := p.backend.FetchProfile(p.workContext(context.Background()), ev.Session)
	if err != nil {
		p.log.Warn().Err(err).Stringer("event", ev.Kind).Str("user_id", ev.Session.UserID).Msg("profile fetch failed")
		profile = nil
	}
	w.SetProfile(profile)
}

// workContext returns the mount context when mounted, else fallback.
func (p *Provider) workContext(fallback context.Context) context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx != nil {
		return p.ctx
	}
	return fallback
}

// SignUp registers an account. It returns ErrConfirmationPending when the
// backend wants the e-mail address confirmed before issuing a session.
// State changes arrive through the session-change listener, not here.
func (p *Provider) SignUp(ctx context.Context, email, password string) error {
	if p.backend == nil {
		return ErrNotConfigured
	}
	sess, err := p.backend.SignUp(ctx, email, password)
	if err != nil {
		return p.actionError("sign up", err)
	}
	if sess == nil {
		p.log.Info().Msg("sign-up accepted; awaiting e-mail confirmation")
		return ErrConfirmationPending
	}
	p.log.Info().Str("user_id", sess.UserID).Msg("signed up")
	return nil
}

// SignIn authenticates with e-mail and password. State changes arrive
// through the session-change listener.
func (p *Provider) SignIn(ctx context.Context, email, password string) error {
	if p.backend == nil {
		return ErrNotConfigured
	}
	sess, err := p.backend.SignIn(ctx, email, password)
	if err != nil {
		return p.actionError("sign in", err)
	}
	if sess != nil {
		p.log.Info().Str("user_id", sess.UserID).Msg("signed in")
	}
	return nil
}

// SignOut ends the session and clears the user and profile locally,
// whether or not the backend call succeeds.
func (p *Provider) SignOut(ctx context.Context) error {
	var err error
	if p.backend != nil {
		err = p.backend.SignOut(ctx)
	}
	p.store.Clear()
	if err != nil {
		return p.actionError("sign out", err)
	}
	p.log.Info().Msg("signed out")
	return nil
}

func (p *Provider) actionError(op string, err error) error {
	p.log.Warn().Err(err).Str("op", op).Str("kind", KindOf(err).String()).Msg("auth action failed")
	var backendErr *BackendError
	var networkErr *NetworkError
	if errors.As(err, &backendErr) || errors.As(err, &networkErr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
