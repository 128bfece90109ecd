package httpapi

import (
	"net/http"
	"strings"

	"drillhub.org/internal/guard"
	"drillhub.org/internal/obs"
	"drillhub.org/internal/session"
)

type authorizeResponse struct {
	Allow      bool   `json:"allow"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// handleAuthorize is the navigation middleware's integration point: given the
// requested path and the caller's session cookie, it returns the route
// guard's decision.
func (a *API) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		writeError(w, r, http.StatusBadRequest, "path is required")
		return
	}

	// Expired or invalid tokens read as "no session"; the guard itself
	// never inspects validity.
	var current *session.Session
	if s, err := a.sessionFromRequest(r); err == nil {
		current = &s
	}

	d := guard.Decide(current, path)
	obs.GuardDecision(d.Rule, d.Allow)
	writeJSON(w, http.StatusOK, authorizeResponse{
		Allow:      d.Allow,
		RedirectTo: d.Target,
	})
}
