package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"drillhub.org/internal/session"
)

func authorize(t *testing.T, api *API, path string, cookie *http.Cookie) authorizeResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/v1/authorize?path="+url.QueryEscape(path), nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	api.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authorize %q status = %d, body %s", path, rec.Code, rec.Body.String())
	}
	var body authorizeResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func TestAuthorizeRequiresPath(t *testing.T) {
	api := newTestAPI(t, &fakeDirectory{account: testAccount()}, newFakeClock())
	req := httptest.NewRequest(http.MethodGet, "/v1/authorize", nil)
	rec := httptest.NewRecorder()
	api.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAuthorizeAnonymous(t *testing.T) {
	api := newTestAPI(t, &fakeDirectory{account: testAccount()}, newFakeClock())

	cases := []struct {
		path       string
		wantAllow  bool
		wantTarget string
	}{
		{"/login", true, ""},
		{"/contact", true, ""},
		{"/dashboard", false, "/login?callbackUrl=%2Fdashboard"},
		{"/admin/questions", false, "/login?callbackUrl=%2Fadmin%2Fquestions"},
	}
	for _, tc := range cases {
		got := authorize(t, api, tc.path, nil)
		if got.Allow != tc.wantAllow || got.RedirectTo != tc.wantTarget {
			t.Fatalf("path %q: got %+v, want allow=%v target=%q", tc.path, got, tc.wantAllow, tc.wantTarget)
		}
	}
}

func TestAuthorizeSignedIn(t *testing.T) {
	clock := newFakeClock()
	api := newTestAPI(t, &fakeDirectory{account: testAccount()}, clock)
	cookie := loginAndCookie(t, api)

	cases := []struct {
		path       string
		wantAllow  bool
		wantTarget string
	}{
		{"/dashboard", true, ""},
		{"/login", false, "/"},
		{"/admin/questions", false, "/"},
	}
	for _, tc := range cases {
		got := authorize(t, api, tc.path, cookie)
		if got.Allow != tc.wantAllow || got.RedirectTo != tc.wantTarget {
			t.Fatalf("path %q: got %+v, want allow=%v target=%q", tc.path, got, tc.wantAllow, tc.wantTarget)
		}
	}
}

func TestAuthorizeAdmin(t *testing.T) {
	account := testAccount()
	account.Admin = true
	api := newTestAPI(t, &fakeDirectory{account: account}, newFakeClock())
	cookie := loginAndCookie(t, api)

	got := authorize(t, api, "/admin/questions", cookie)
	if !got.Allow || got.RedirectTo != "" {
		t.Fatalf("admin should reach admin routes: %+v", got)
	}
}

func TestAuthorizeRestricted(t *testing.T) {
	account := testAccount()
	account.Restricted = true
	clock := newFakeClock()
	authority, err := session.NewAuthority(&fakeDirectory{account: account}, "unit-test-secret", session.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewAuthority: %v", err)
	}
	api := New(ReadyProbe{}, "test", authority, nil)

	// A restricted account cannot sign in, but a previously issued token may
	// still be in flight; the guard pins it to the public allowlist.
	restricted := session.Session{
		ID: "t-1", UserID: "u-100", Email: account.Email,
		Restricted: true, IssuedAt: clock.Now(), LastActivity: clock.Now(),
	}
	token, err := authority.Encode(restricted)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	cookie := &http.Cookie{Name: sessionCookie, Value: token}

	cases := []struct {
		path       string
		wantAllow  bool
		wantTarget string
	}{
		{"/contact", true, ""},
		{"/dashboard", false, "/"},
		{"/admin/questions", false, "/"},
	}
	for _, tc := range cases {
		got := authorize(t, api, tc.path, cookie)
		if got.Allow != tc.wantAllow || got.RedirectTo != tc.wantTarget {
			t.Fatalf("path %q: got %+v, want allow=%v target=%q", tc.path, got, tc.wantAllow, tc.wantTarget)
		}
	}
}

func TestAuthorizeExpiredTokenReadsAsAnonymous(t *testing.T) {
	clock := newFakeClock()
	api := newTestAPI(t, &fakeDirectory{account: testAccount()}, clock)
	cookie := loginAndCookie(t, api)

	clock.Advance(session.DefaultTimeout)

	got := authorize(t, api, "/dashboard", cookie)
	if got.Allow || got.RedirectTo != "/login?callbackUrl=%2Fdashboard" {
		t.Fatalf("expired token must read as anonymous: %+v", got)
	}
}
