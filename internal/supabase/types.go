package supabase

import (
	"time"
)

// postgrestTimestampLayout covers `timestamp without time zone` columns.
const postgrestTimestampLayout = "2006-01-02T15:04:05.999999"

// User mirrors the GoTrue user object.
type User struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Role             string `json:"role"`
	CreatedAt        string `json:"created_at"`
	LastSignInAt     string `json:"last_sign_in_at"`
	EmailConfirmedAt string `json:"email_confirmed_at"`
}

// Session mirrors the GoTrue token response.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Expiry returns the absolute expiry on the local clock. expires_in is
// measured from issued; the server's expires_at is only used without it,
// since it is off by however far the two clocks disagree.
func (s Session) Expiry(issued time.Time) time.Time {
	if s.ExpiresIn > 0 {
		return issued.Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	if s.ExpiresAt > 0 {
		return time.Unix(s.ExpiresAt, 0)
	}
	return time.Time{}
}

// Profile mirrors a row of the user_profiles table.
type Profile struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	IsApproved bool   `json:"is_approved"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// ParsedCreatedAt returns the parsed CreatedAt timestamp.
func (p Profile) ParsedCreatedAt() time.Time {
	return parseTime(p.CreatedAt)
}

// ParsedUpdatedAt returns the parsed UpdatedAt timestamp.
func (p Profile) ParsedUpdatedAt() time.Time {
	return parseTime(p.UpdatedAt)
}

// Question mirrors a row of the ice_breaking_questions table.
type Question struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

// ParsedCreatedAt returns the parsed CreatedAt timestamp.
func (q Question) ParsedCreatedAt() time.Time {
	return parseTime(q.CreatedAt)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(postgrestTimestampLayout, value, time.UTC); err == nil {
		return t
	}
	return time.Time{}
}
