package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

const (
	profilesTable  = "user_profiles"
	questionsTable = "ice_breaking_questions"
)

// FetchProfile loads the user_profiles row for userID. A missing row yields
// (nil, nil). accessToken scopes the query to the signed-in user; empty
// falls back to the anon key.
func (c *Client) FetchProfile(ctx context.Context, accessToken, userID string) (*Profile, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	var rows []Profile
	if err := c.selectRows(ctx, profilesTable, url.Values{
		"select": {"*"},
		"id":     {"eq." + id.String()},
	}, accessToken, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// FetchActiveQuestions lists active ice-breaking questions, oldest first.
func (c *Client) FetchActiveQuestions(ctx context.Context) ([]Question, error) {
	var rows []Question
	if err := c.selectRows(ctx, questionsTable, url.Values{
		"select":    {"*"},
		"is_active": {"eq.true"},
		"order":     {"created_at.asc"},
	}, "", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) selectRows(ctx context.Context, table string, query url.Values, token string, dest any) error {
	return c.do(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/" + table,
		query:  query,
		token:  token,
	}, dest)
}
