package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrUnauthorized is returned when the auth service rejects the token.
	ErrUnauthorized = errors.New("auth: unauthorized")

	// ErrUnavailable is returned when the auth service cannot be reached or
	// answers with something that is not an account record.
	ErrUnavailable = errors.New("auth: service unavailable")
)

const (
	// DefaultBaseURL is the auth service used when none is configured.
	DefaultBaseURL = "https://auth.rebble.io"

	tokenPath = "/api/v1/me/token"

	// maxAccountBody caps how much of an account response is read.
	maxAccountBody = 64 << 10
)

// UID is an opaque user identifier. The auth service has sent it both as a
// JSON string and as a number; either decodes.
type UID string

// UnmarshalJSON accepts a JSON string, number or null.
func (u *UID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*u = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = UID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("auth: uid: %w", err)
	}
	*u = UID(n.String())
	return nil
}

// Account is the subset of the account record the gateway uses.
type Account struct {
	IsSubscribed   bool `json:"is_subscribed"`
	UID            UID  `json:"uid"`
	AudioDebugMode bool `json:"audio_debug_mode"`
}

// AccountSource resolves an access token to an account.
type AccountSource interface {
	Account(ctx context.Context, token string) (*Account, error)
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient = &http.Client{Timeout: d}
		}
	}
}

// Client calls the auth service. It is safe for concurrent use and should be
// shared across requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ AccountSource = (*Client)(nil)

// NewClient returns a Client for the service at baseURL. An empty baseURL
// selects [DefaultBaseURL].
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Account fetches the account that owns token.
func (c *Client) Account(ctx context.Context, token string) (*Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tokenPath, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxAccountBody))
		return nil, fmt.Errorf("%w: auth service returned HTTP %d", ErrUnauthorized, resp.StatusCode)
	}

	var acct Account
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAccountBody)).Decode(&acct); err != nil {
		return nil, fmt.Errorf("%w: parse account: %w", ErrUnavailable, err)
	}
	return &acct, nil
}

// Ping checks that the auth service answers at all. Any HTTP response
// counts, since an anonymous request is expected to be rejected.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tokenPath, nil)
	if err != nil {
		return fmt.Errorf("auth: create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxAccountBody))
	return resp.Body.Close()
}
