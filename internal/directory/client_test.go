package directory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newLoginServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/login" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientAuthenticateSuccess(t *testing.T) {
	srv := newLoginServer(t, http.StatusOK, map[string]any{
		"access_token": "tok-123",
		"user": map[string]any{
			"id":            "user-9",
			"email":         "jo@example.com",
			"firstName":     "Jo",
			"lastName":      "Smith",
			"is_admin":      true,
			"is_restricted": false,
		},
	})

	c := NewClient(srv.URL)
	acct, err := c.Authenticate(context.Background(), "jo@example.com", "pw")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if acct.ID != "user-9" || !acct.Admin || acct.Restricted {
		t.Fatalf("unexpected account: %+v", acct)
	}
	if acct.APIToken != "tok-123" {
		t.Fatalf("expected access token carried as APIToken, got %q", acct.APIToken)
	}
	if acct.DisplayName() != "Jo Smith" {
		t.Fatalf("unexpected display name: %q", acct.DisplayName())
	}
}

func TestClientClassifiesDetailStrings(t *testing.T) {
	cases := []struct {
		name   string
		status int
		detail string
		want   error
	}{
		{
			name:   "unverified email",
			status: http.StatusForbidden,
			detail: "Please verify your email before logging in. Check your email for the verification link.",
			want:   ErrEmailUnverified,
		},
		{
			name:   "restricted account",
			status: http.StatusForbidden,
			detail: "Your account has been restricted",
			want:   ErrRestricted,
		},
		{
			name:   "wrong password",
			status: http.StatusUnauthorized,
			detail: "Invalid email or password",
			want:   ErrInvalidCredentials,
		},
		{
			name:   "unrecognized detail",
			status: http.StatusBadRequest,
			detail: "something else entirely",
			want:   ErrInvalidCredentials,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newLoginServer(t, tc.status, map[string]string{"detail": tc.detail})
			c := NewClient(srv.URL)
			_, err := c.Authenticate(context.Background(), "jo@example.com", "pw")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestClientServerErrorIsUnavailable(t *testing.T) {
	srv := newLoginServer(t, http.StatusInternalServerError, map[string]string{"detail": "boom"})
	c := NewClient(srv.URL)
	if _, err := c.Authenticate(context.Background(), "jo@example.com", "pw"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClientNetworkFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(srv.URL)
	if _, err := c.Authenticate(context.Background(), "jo@example.com", "pw"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClientMissingAccessTokenIsUnavailable(t *testing.T) {
	srv := newLoginServer(t, http.StatusOK, map[string]any{
		"user": map[string]any{"id": "user-9"},
	})
	c := NewClient(srv.URL)
	if _, err := c.Authenticate(context.Background(), "jo@example.com", "pw"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClientRestrictedUserInSuccessBody(t *testing.T) {
	srv := newLoginServer(t, http.StatusOK, map[string]any{
		"access_token": "tok-123",
		"user": map[string]any{
			"id":            "user-9",
			"is_restricted": true,
		},
	})
	c := NewClient(srv.URL)
	if _, err := c.Authenticate(context.Background(), "jo@example.com", "pw"); !errors.Is(err, ErrRestricted) {
		t.Fatalf("expected ErrRestricted, got %v", err)
	}
}
