package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/zalando/go-keyring"

	"github.com/datealchemy/alchemy/internal/auth"
)

// KeyringService is the service name sessions are filed under in the OS
// credential store.
const KeyringService = "alchemy"

// TokenStore persists the current session between runs. Load returns nil
// with no error when nothing is stored.
type TokenStore interface {
	Load() (*auth.Session, error)
	Save(sess *auth.Session) error
	Delete() error
}

type record struct {
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token"`
	IssuedAt     time.Time `toml:"issued_at"`
	ExpiresAt    time.Time `toml:"expires_at"`
	UserID       string    `toml:"user_id"`
	Email        string    `toml:"email"`
}

func encode(sess *auth.Session) ([]byte, error) {
	rec := record{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		IssuedAt:     sess.IssuedAt.UTC(),
		ExpiresAt:    sess.ExpiresAt.UTC(),
		UserID:       sess.UserID,
		Email:        sess.Email,
	}
	data, err := toml.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*auth.Session, error) {
	var rec record
	if err := toml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if rec.AccessToken == "" {
		return nil, nil
	}
	return &auth.Session{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		IssuedAt:     rec.IssuedAt,
		ExpiresAt:    rec.ExpiresAt,
		UserID:       rec.UserID,
		Email:        rec.Email,
	}, nil
}

// KeyringStore keeps the session in the OS keychain/credential manager.
type KeyringStore struct {
	Service string
	Account string
}

// NewKeyringStore files the session for the project at host.
func NewKeyringStore(host string) KeyringStore {
	return KeyringStore{Service: KeyringService, Account: "session-" + host}
}

func (s KeyringStore) Load() (*auth.Session, error) {
	secret, err := keyring.Get(s.Service, s.Account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return decode([]byte(secret))
}

func (s KeyringStore) Save(sess *auth.Session) error {
	data, err := encode(sess)
	if err != nil {
		return err
	}
	if err := keyring.Set(s.Service, s.Account, string(data)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s KeyringStore) Delete() error {
	if err := keyring.Delete(s.Service, s.Account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// FileStore keeps the session in a TOML file readable only by the owner.
type FileStore struct {
	Path string
}

func (s FileStore) Load() (*auth.Session, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}
	return decode(data)
}

func (s FileStore) Save(sess *auth.Session) error {
	data, err := encode(sess)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.toml")
	if err != nil {
		return fmt.Errorf("create session temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (s FileStore) Delete() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// FallbackStore prefers Primary and switches to Fallback once Primary
// fails, typically a keyring on a machine with no secret service. A miss
// on Primary still consults Fallback so a session saved while degraded is
// found again.
type FallbackStore struct {
	Primary  TokenStore
	Fallback TokenStore

	log      zerolog.Logger
	mu       sync.Mutex
	degraded bool
}

// NewFallbackStore builds a FallbackStore that logs to log when it
// degrades.
func NewFallbackStore(primary, fallback TokenStore, log zerolog.Logger) *FallbackStore {
	return &FallbackStore{Primary: primary, Fallback: fallback, log: log}
}

// Degraded reports whether Primary has failed.
func (s *FallbackStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *FallbackStore) degrade(op string, err error) {
	s.mu.Lock()
	first := !s.degraded
	s.degraded = true
	s.mu.Unlock()
	if first {
		s.log.Warn().Err(err).Str("op", op).Msg("credential store unavailable; using session file")
	}
}

func (s *FallbackStore) Load() (*auth.Session, error) {
	if !s.Degraded() {
		sess, err := s.Primary.Load()
		if err == nil && sess != nil {
			return sess, nil
		}
		if err != nil {
			s.degrade("load", err)
		}
	}
	return s.Fallback.Load()
}

func (s *FallbackStore) Save(sess *auth.Session) error {
	if !s.Degraded() {
		err := s.Primary.Save(sess)
		if err == nil {
			if err := s.Fallback.Delete(); err != nil {
				s.log.Debug().Err(err).Msg("clearing stale session file")
			}
			return nil
		}
		s.degrade("save", err)
	}
	return s.Fallback.Save(sess)
}

func (s *FallbackStore) Delete() error {
	if err := s.Primary.Delete(); err != nil {
		s.degrade("delete", err)
	}
	return s.Fallback.Delete()
}

// MemoryStore keeps the session for the life of the process only.
type MemoryStore struct {
	mu   sync.Mutex
	sess *auth.Session
}

func (s *MemoryStore) Load() (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySession(s.sess), nil
}

func (s *MemoryStore) Save(sess *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = copySession(sess)
	return nil
}

func (s *MemoryStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = nil
	return nil
}

func copySession(sess *auth.Session) *auth.Session {
	if sess == nil {
		return nil
	}
	dup := *sess
	return &dup
}
