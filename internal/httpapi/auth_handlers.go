package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"drillhub.org/internal/audit"
	"drillhub.org/internal/obs"
	"drillhub.org/internal/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name,omitempty"`
	Admin      bool      `json:"is_admin"`
	Restricted bool      `json:"is_restricted"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (a *API) sessionPayload(s session.Session) sessionResponse {
	return sessionResponse{
		UserID:     s.UserID,
		Email:      s.Email,
		Name:       s.Name,
		Admin:      s.Admin,
		Restricted: s.Restricted,
		IssuedAt:   s.IssuedAt,
		ExpiresAt:  a.authority.ExpiresAt(s),
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	s, err := a.authority.Issue(r.Context(), req.Email, req.Password)
	obs.LoginAttempt(loginOutcome(err))
	if err != nil {
		writeError(w, r, issueStatus(err), userMessage(err))
		return
	}

	token, err := a.authority.Encode(s)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, userMessage(err))
		return
	}

	ctx := session.ContextWithSession(r.Context(), s)
	_ = audit.LogEvent(ctx, "session.issued", map[string]any{
		"email":      s.Email,
		"is_admin":   s.Admin,
		"expires_at": a.authority.ExpiresAt(s).Format(time.RFC3339),
	})

	a.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, a.sessionPayload(s))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	s, err := a.sessionFromRequest(r)
	if err == nil || errors.Is(err, session.ErrExpired) {
		a.authority.Invalidate(s)
		ctx := session.ContextWithSession(r.Context(), s)
		_ = audit.LogEvent(ctx, "session.signed_out", nil)
		obs.SessionEnded("signout")
	}
	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	s, err := a.sessionFromRequest(r)
	if err != nil {
		if errors.Is(err, session.ErrExpired) {
			obs.SessionEnded("expired")
			ctx := session.ContextWithSession(r.Context(), s)
			_ = audit.LogEvent(ctx, "session.expired", nil)
		}
		clearSessionCookie(w)
		writeError(w, r, http.StatusUnauthorized, userMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, a.sessionPayload(s))
}

// handleActivity is the refresh entry point for the client's activity
// tracker: it bumps last_activity and re-issues the cookie. An expired
// session is never upgraded back to valid.
func (a *API) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	s, err := a.sessionFromRequest(r)
	if err != nil {
		if errors.Is(err, session.ErrExpired) {
			obs.SessionEnded("expired")
		}
		clearSessionCookie(w)
		writeError(w, r, http.StatusUnauthorized, userMessage(err))
		return
	}

	refreshed := a.authority.RefreshActivity(s)
	token, err := a.authority.Encode(refreshed)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, userMessage(err))
		return
	}
	a.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, a.sessionPayload(refreshed))
}
