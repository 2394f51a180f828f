package auth

import (
	"context"
	"time"
)

// Session is the backend-issued proof of authentication for one user.
type Session struct {
	AccessToken  string
	RefreshToken string
	// IssuedAt is the local time the token pair was received.
	IssuedAt     time.Time
	ExpiresAt    time.Time
	UserID       string
	Email        string
}

// Expired reports whether the access token is past its expiry, allowing
// for margin of clock skew. A zero expiry never expires.
func (s *Session) Expired(now time.Time, margin time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(margin).Before(s.ExpiresAt)
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	dup := *s
	return &dup
}

// Profile is the application record keyed by the session's user id.
type Profile struct {
	ID         string
	Email      string
	IsApproved bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (p *Profile) clone() *Profile {
	if p == nil {
		return nil
	}
	dup := *p
	return &dup
}

// EventKind names a backend session change.
type EventKind int

const (
	EventSignedIn EventKind = iota
	EventSignedOut
	EventTokenRefreshed
)

func (k EventKind) String() string {
	switch k {
	case EventSignedIn:
		return "SIGNED_IN"
	case EventSignedOut:
		return "SIGNED_OUT"
	case EventTokenRefreshed:
		return "TOKEN_REFRESHED"
	default:
		return "UNKNOWN"
	}
}

// Event is a session change notification. Session is nil on sign-out.
type Event struct {
	Kind    EventKind
	Session *Session
}

// Unsubscribe cancels a subscription. Calling it more than once is safe.
type Unsubscribe func()

// Backend is the managed auth/database service as seen by the client.
type Backend interface {
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*Session, error)
	// SignUp registers an account. The session is nil when the backend
	// requires e-mail confirmation first.
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	// FetchProfile returns the profile row for the session's user, or nil
	// when no row exists.
	FetchProfile(ctx context.Context, sess *Session) (*Profile, error)
	// Subscribe registers onChange for session changes. Notifications for
	// one subscriber are delivered in order on a goroutine owned by the
	// backend.
	Subscribe(onChange func(Event)) Unsubscribe
}
