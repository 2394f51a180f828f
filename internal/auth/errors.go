package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned by actions when no backend is configured.
	ErrNotConfigured = errors.New("sign-in is unavailable: backend not configured")
	// ErrBootstrapTimeout is logged when the session fetch outlives the
	// bootstrap timeout. It never reaches the user.
	ErrBootstrapTimeout = errors.New("session bootstrap timed out")
	// ErrConfirmationPending is returned by SignUp when the account exists
	// but has no session until its e-mail address is confirmed.
	ErrConfirmationPending = errors.New("check your inbox to confirm your e-mail address")
)

// BackendError is a structured failure reported by the backend, such as
// invalid credentials or a duplicate account.
type BackendError struct {
	Status  int
	Code    string
	Message string
}

// Error returns the backend's message unchanged.
func (e *BackendError) Error() string {
	return e.Message
}

// NetworkError is a transport-level failure: the backend never answered.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Kind classifies errors for display and logging.
type Kind int

const (
	KindNone Kind = iota
	KindConfiguration
	KindBackend
	KindNetwork
	KindTimeout
	KindConfirmationPending
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConfiguration:
		return "configuration"
	case KindBackend:
		return "backend"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindConfirmationPending:
		return "confirmation_pending"
	default:
		return "unknown"
	}
}

// KindOf reports which taxonomy bucket err belongs to.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var backendErr *BackendError
	var networkErr *NetworkError
	switch {
	case errors.Is(err, ErrNotConfigured):
		return KindConfiguration
	case errors.Is(err, ErrConfirmationPending):
		return KindConfirmationPending
	case errors.Is(err, ErrBootstrapTimeout):
		return KindTimeout
	case errors.As(err, &backendErr):
		return KindBackend
	case errors.As(err, &networkErr):
		return KindNetwork
	default:
		return KindUnknown
	}
}

// Message returns the text to show a user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr.Message
	}
	if KindOf(err) == KindNetwork {
		return "Could not reach the server. Check your connection and try again."
	}
	return err.Error()
}
