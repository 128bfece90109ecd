package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const loginPath = "/api/login"

// Client authenticates against the remote account service.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ Directory = (*Client)(nil)

// ClientOption configures Client behavior.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient constructs a Client for the account service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID         string `json:"id"`
		Email      string `json:"email"`
		FirstName  string `json:"firstName"`
		LastName   string `json:"lastName"`
		Admin      bool   `json:"is_admin"`
		Restricted bool   `json:"is_restricted"`
	} `json:"user"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Authenticate posts credentials to the account service and classifies its
// response. No retries: the attempt is terminal on any failure.
func (c *Client) Authenticate(ctx context.Context, email, password string) (Account, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return Account{}, fmt.Errorf("encode login request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return Account{}, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Account{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var er errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		return Account{}, classifyDetail(er.Detail)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return Account{}, fmt.Errorf("%w: decode login response: %v", ErrUnavailable, err)
	}
	if strings.TrimSpace(lr.AccessToken) == "" {
		return Account{}, fmt.Errorf("%w: no access token in login response", ErrUnavailable)
	}
	if lr.User.Restricted {
		return Account{}, ErrRestricted
	}
	return Account{
		ID:         lr.User.ID,
		Email:      lr.User.Email,
		FirstName:  lr.User.FirstName,
		LastName:   lr.User.LastName,
		Admin:      lr.User.Admin,
		Restricted: lr.User.Restricted,
		APIToken:   lr.AccessToken,
	}, nil
}

// classifyDetail maps the account service's human-readable `detail` string to
// a failure kind. The substrings are the service's observed error vocabulary;
// anything unrecognized reads as bad credentials.
func classifyDetail(detail string) error {
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "verify your email"):
		return ErrEmailUnverified
	case strings.Contains(lower, "restricted"):
		return ErrRestricted
	default:
		return ErrInvalidCredentials
	}
}
