package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"drillhub.org/internal/audit"
	"drillhub.org/internal/directory"
	"drillhub.org/internal/session"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	body := map[string]any{"error": msg}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		body["request_id"] = rid
	}
	writeJSON(w, code, body)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// userMessage maps every failure kind to exactly one human-readable message.
// Raw decode or transport errors never reach the end user.
func userMessage(err error) string {
	switch {
	case errors.Is(err, directory.ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, directory.ErrEmailUnverified):
		return "Please verify your email before logging in. Check your inbox for the verification link."
	case errors.Is(err, directory.ErrRestricted):
		return "Your account has been restricted. Please contact the administrator."
	case errors.Is(err, directory.ErrUnavailable):
		return "We could not reach the sign-in service. Please try again."
	case errors.Is(err, session.ErrExpired):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, session.ErrInvalidToken):
		return "Your session is no longer valid. Please sign in again."
	default:
		return "Something went wrong. Please try again."
	}
}

func issueStatus(err error) int {
	switch {
	case errors.Is(err, directory.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, directory.ErrEmailUnverified),
		errors.Is(err, directory.ErrRestricted):
		return http.StatusForbidden
	case errors.Is(err, directory.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func loginOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, directory.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, directory.ErrEmailUnverified):
		return "email_unverified"
	case errors.Is(err, directory.ErrRestricted):
		return "restricted"
	case errors.Is(err, directory.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

const sessionCookie = "drillhub_session"

func (a *API) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, expiredSessionCookie())
}

// sessionFromRequest resolves the persisted token from the session cookie or
// a bearer header. Missing credentials read as session.ErrInvalidToken.
func (a *API) sessionFromRequest(r *http.Request) (session.Session, error) {
	raw := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		raw = c.Value
	}
	if raw == "" {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if strings.HasPrefix(strings.ToLower(header), "bearer ") {
			raw = strings.TrimSpace(header[len("bearer "):])
		}
	}
	if raw == "" {
		return session.Session{}, session.ErrInvalidToken
	}
	return a.authority.Read(raw)
}
