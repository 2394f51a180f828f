package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a Supabase project's auth (GoTrue) and REST (PostgREST)
// endpoints using the project's public anon key.
type Client struct {
	baseURL   *url.URL
	anonKey   string
	http      *http.Client
	userAgent string
}

const (
	defaultUserAgent = "alchemy/0.1"
	requestTimeout   = 10 * time.Second
	maxErrorBody     = 64 << 10
)

// APIError is a structured failure reported by the backend (4xx/5xx).
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: %s (status %d, %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("supabase: %s (status %d)", e.Message, e.Status)
}

// TransportError wraps failures that never produced an HTTP response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// NewClient builds a Client for the project at rawURL.
func NewClient(rawURL, anonKey string) (*Client, error) {
	base, err := parseBaseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(anonKey) == "" {
		return nil, fmt.Errorf("anon key is empty")
	}
	return &Client{
		baseURL: base,
		anonKey: strings.TrimSpace(anonKey),
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// SetHTTPClient swaps the underlying HTTP client.
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.http = httpClient
}

// request describes one call against the project.
type request struct {
	method string
	path   string
	query  url.Values
	token  string // bearer token; empty sends the anon key
	body   any
	header map[string]string
}

func (c *Client) do(ctx context.Context, req request, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	rel := &url.URL{Path: req.path}
	if len(req.query) > 0 {
		rel.RawQuery = req.query.Encode()
	}
	reqURL := c.baseURL.ResolveReference(rel)

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, reqURL.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	token := req.token
	if token == "" {
		token = c.anonKey
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("apikey", c.anonKey)
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.header {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &TransportError{Op: req.method + " " + req.path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeAPIError pulls a human message out of the different error shapes
// GoTrue and PostgREST produce.
func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
		ErrorCode        string `json:"error_code"`
		Code             any    `json:"code"`
	}
	_ = json.Unmarshal(raw, &payload)

	apiErr := &APIError{Status: resp.StatusCode, Code: payload.ErrorCode}
	if apiErr.Code == "" {
		if code, ok := payload.Code.(string); ok {
			apiErr.Code = code
		}
	}
	for _, candidate := range []string{payload.Msg, payload.ErrorDescription, payload.Message, payload.Error} {
		if strings.TrimSpace(candidate) != "" {
			apiErr.Message = strings.TrimSpace(candidate)
			break
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func parseBaseURL(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, fmt.Errorf("backend url is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse backend url %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse backend url %q: missing host", rawURL)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
