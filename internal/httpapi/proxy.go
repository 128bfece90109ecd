package httpapi

import (
	"net/http"
	"net/http/httputil"

	"drillhub.org/internal/audit"
	"drillhub.org/internal/obs"
	"drillhub.org/internal/session"
)

// newProxy builds the /api/ passthrough to the resource APIs. The gateway
// swaps the session cookie for the upstream bearer credential, and a 401 from
// any resource API forces a global sign-out: the session is invalidated here,
// once, instead of in every caller.
func (a *API) newProxy() http.Handler {
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(a.upstream)
			pr.SetXForwarded()
			pr.Out.Header.Del("Cookie")
			if s, ok := session.FromContext(pr.In.Context()); ok {
				pr.Out.Header.Set("Authorization", "Bearer "+s.APIToken)
			}
		},
		ModifyResponse: func(resp *http.Response) error {
			if resp.StatusCode != http.StatusUnauthorized {
				return nil
			}
			ctx := resp.Request.Context()
			if s, ok := session.FromContext(ctx); ok {
				a.authority.Invalidate(s)
				obs.SessionEnded("forced_signout")
				_ = audit.LogEvent(ctx, "session.forced_signout", map[string]any{
					"path": resp.Request.URL.Path,
				})
			}
			resp.Header.Add("Set-Cookie", expiredSessionCookie().String())
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			writeError(w, r, http.StatusBadGateway, "upstream unavailable")
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Anonymous passthrough is allowed; the backend enforces its own auth.
		if s, err := a.sessionFromRequest(r); err == nil {
			r = r.WithContext(session.ContextWithSession(r.Context(), s))
		}
		rp.ServeHTTP(w, r)
	})
}

func expiredSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	}
}
