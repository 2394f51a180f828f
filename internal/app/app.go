package app

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/datealchemy/alchemy/internal/auth"
	"github.com/datealchemy/alchemy/internal/config"
	"github.com/datealchemy/alchemy/internal/logger"
	"github.com/datealchemy/alchemy/internal/prefs"
	"github.com/datealchemy/alchemy/internal/questions"
	"github.com/datealchemy/alchemy/internal/session"
	"github.com/datealchemy/alchemy/internal/supabase"
	"github.com/datealchemy/alchemy/internal/ui"
)

// Options configure the application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/alchemy/prefs.toml
	EnvFile    string // empty loads .env and .env.local if present
	StartPath  string // first screen, e.g. "/questions"
	PollEvery  int    // approval re-check in seconds; zero uses default
}

// runtime is everything Run and Diag share.
type runtime struct {
	cfg      config.Config
	log      zerolog.Logger
	logClose io.Closer
	client   *supabase.Client
	manager  *session.Manager
	provider *auth.Provider
	source   *questions.Source
}

func open(opts Options) (*runtime, error) {
	if err := config.LoadEnvFiles(opts.EnvFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, closer, err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	rt := &runtime{cfg: cfg, log: log, logClose: closer}

	if !cfg.BackendConfigured() {
		log.Warn().Msg("backend not configured; running offline")
		rt.provider = auth.NewProvider(nil, nil, auth.WithLogger(log))
		rt.source = questions.NewSource(nil, log)
		return rt, nil
	}

	client, err := supabase.NewClient(cfg.Backend.URL, cfg.Backend.AnonKey)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("init backend client: %w", err)
	}
	store, err := tokenStore(cfg, log)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	rt.client = client
	rt.manager = session.NewManager(client, store, session.WithLogger(log))
	rt.provider = auth.NewProvider(rt.manager, nil,
		auth.WithBootstrapTimeout(cfg.Session.BootstrapTimeout),
		auth.WithLogger(log),
	)
	rt.source = questions.NewSource(client, log)
	log.Info().
		Str("backend", cfg.Backend.URL).
		Str("session_storage", cfg.Session.Storage).
		Msg("backend configured")
	return rt, nil
}

func (rt *runtime) close() {
	if rt.manager != nil {
		rt.manager.Close()
	}
	_ = rt.logClose.Close()
}

// tokenStore picks where sessions persist. Keyring entries are keyed by
// backend host so two projects never share a session. Without a working
// keyring the session file is used instead.
func tokenStore(cfg config.Config, log zerolog.Logger) (session.TokenStore, error) {
	switch cfg.Session.Storage {
	case config.StorageFile:
		return session.FileStore{Path: cfg.Session.FilePath}, nil
	case config.StorageMemory:
		return &session.MemoryStore{}, nil
	case config.StorageKeyring:
		u, err := url.Parse(cfg.Backend.URL)
		if err != nil {
			return nil, fmt.Errorf("parse backend url: %w", err)
		}
		return session.NewFallbackStore(
			session.NewKeyringStore(u.Hostname()),
			session.FileStore{Path: cfg.Session.FilePath},
			log,
		), nil
	default:
		return nil, fmt.Errorf("unknown session storage %q", cfg.Session.Storage)
	}
}

// Run boots the TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	rt, err := open(opts)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt.provider.Mount(ctx)
	defer rt.provider.Unmount()

	interval := defaultPollInterval
	if opts.PollEvery > 0 {
		interval = time.Duration(opts.PollEvery) * time.Second
	}
	if rt.provider.Configured() {
		StartApprovalPoller(ctx, rt.provider, interval, rt.log)
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	err = ui.Run(ui.Options{
		Context:   ctx,
		Provider:  rt.provider,
		Questions: rt.source,
		Config:    rt.cfg,
		Prefs:     prefs.Load(prefsPath),
		PrefsPath: prefsPath,
		Logger:    rt.log,
		StartPath: opts.StartPath,
	})
	if err != nil {
		rt.log.Error().Err(err).Msg("ui exited with error")
	}
	return err
}

// Diag reports whether the backend is configured and reachable by fetching
// the active questions once, bypassing the cache and the bundled fallback.
func Diag(ctx context.Context, opts Options, w io.Writer) error {
	rt, err := open(opts)
	if err != nil {
		return err
	}
	defer rt.close()

	fmt.Fprintf(w, "backend url:   %s\n", presence(rt.cfg.Backend.URL))
	fmt.Fprintf(w, "anon key:      %s\n", presence(rt.cfg.Backend.AnonKey))
	fmt.Fprintf(w, "session store: %s\n", rt.cfg.Session.Storage)

	if rt.client == nil {
		fmt.Fprintf(w, "questions:     %d bundled (offline)\n", len(questions.Bundled()))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, diagTimeout)
	defer cancel()
	rows, err := rt.client.FetchActiveQuestions(ctx)
	if err != nil {
		fmt.Fprintf(w, "questions:     error: %s\n", auth.Message(err))
		return fmt.Errorf("fetch questions: %w", err)
	}
	fmt.Fprintf(w, "questions:     %d active\n", len(rows))
	return nil
}

const diagTimeout = 10 * time.Second

func presence(v string) string {
	if v == "" {
		return "missing"
	}
	return "set"
}
