package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signUpResponse covers both shapes /signup returns: a full session when
// e-mail confirmation is disabled, a bare user object otherwise.
type signUpResponse struct {
	Session
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SignUp registers a new account. When the project requires e-mail
// confirmation the returned session is nil and only the user is set.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, *User, error) {
	var payload signUpResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   credentials{Email: email, Password: password},
	}, &payload)
	if err != nil {
		return nil, nil, err
	}
	if payload.AccessToken != "" {
		sess := payload.Session
		return &sess, &sess.User, nil
	}
	user := &User{ID: payload.ID, Email: payload.Email}
	if user.ID == "" {
		user = &payload.User
	}
	return nil, user, nil
}

// SignInWithPassword exchanges e-mail and password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var payload Session
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   credentials{Email: email, Password: password},
	}, &payload)
	if err != nil {
		return nil, err
	}
	if payload.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}
	return &payload, nil
}

// RefreshSession trades a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("refresh token required")
	}
	var payload Session
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": refreshToken},
	}, &payload)
	if err != nil {
		return nil, err
	}
	if payload.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}
	return &payload, nil
}

// GetUser resolves the user an access token belongs to.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, fmt.Errorf("access token required")
	}
	var payload User
	if err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/auth/v1/user",
		token:  accessToken,
	}, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// SignOut revokes the session's refresh tokens.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if strings.TrimSpace(accessToken) == "" {
		return fmt.Errorf("access token required")
	}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		token:  accessToken,
	}, nil)
}
