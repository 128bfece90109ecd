// Package guard decides, per navigation, whether to allow, redirect, or deny
// based solely on the current session's claims. It is a pure function of
// (session, path): no clock, no network, no hidden state.
package guard

import (
	"net/url"
	"strings"

	"drillhub.org/internal/session"
)

// Well-known navigation targets.
const (
	HomePath      = "/"
	LoginPath     = "/login"
	AdminHomePath = "/admin/questions"

	apiPrefix   = "/api/"
	adminPrefix = "/admin"

	// CallbackParam carries the originally requested path through a login
	// redirect.
	CallbackParam = "callbackUrl"
)

// restrictedAllowlist is the only surface reachable by restricted sessions
// beyond the login page: home, contact, and the auth flow pages.
var restrictedAllowlist = []string{
	"/",
	"/contact",
	"/signup",
	"/forgot-password",
	"/reset-password",
	"/verify-email",
	"/verify-otp",
}

// Decision is the outcome of one navigation check.
type Decision struct {
	// Allow renders the requested path as-is.
	Allow bool
	// Target is the redirect destination when Allow is false.
	Target string
	// Rule names the matched rule, for metrics and logs.
	Rule string
}

func allowed(rule string) Decision {
	return Decision{Allow: true, Rule: rule}
}

func redirect(rule, target string) Decision {
	return Decision{Target: target, Rule: rule}
}

// Decide evaluates the navigation rules in order; the first match wins and no
// further rules run. A nil session means no currently valid session exists.
// The caller resolves validity (expiry, tampering) before calling.
func Decide(s *session.Session, path string) Decision {
	path = normalize(path)

	// 1. API passthrough: the backend enforces its own auth.
	if path == "/api" || strings.HasPrefix(path, apiPrefix) {
		return allowed("api")
	}

	// 2. Login entry page: signed-in users are routed to their landing page.
	if isLoginPage(path) {
		if s != nil {
			if s.Admin {
				return redirect("login_page", AdminHomePath)
			}
			return redirect("login_page", HomePath)
		}
		return allowed("login_page")
	}

	// 3. Admin surface: requires a valid admin session.
	if path == adminPrefix || strings.HasPrefix(path, adminPrefix+"/") {
		if s == nil {
			return redirect("admin", loginRedirect(path))
		}
		if !s.Admin {
			return redirect("admin", HomePath)
		}
		return allowed("admin")
	}

	// 4. Restricted sessions only reach the allowlist, regardless of claims.
	if s != nil && s.Restricted {
		for _, p := range restrictedAllowlist {
			if path == p {
				return allowed("restricted")
			}
		}
		return redirect("restricted", HomePath)
	}

	// 5. Everything else requires a session.
	if s == nil {
		return redirect("anonymous", loginRedirect(path))
	}

	// 6. Default allow.
	return allowed("default")
}

func isLoginPage(path string) bool {
	return path == LoginPath || strings.HasPrefix(path, LoginPath+"/")
}

// loginRedirect preserves the originally requested path as a callback target.
func loginRedirect(path string) string {
	return LoginPath + "?" + CallbackParam + "=" + url.QueryEscape(path)
}

func normalize(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
