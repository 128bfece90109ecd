package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                             "/",
		"/metrics":                     "/metrics",
		"/v1/auth/login":               "/v1/auth/login",
		"/v1/authorize?path=%2Fadmin":  "/v1/authorize",
		"/api/questions":               "/api/*",
		"/api/questions/42/submission": "/api/*",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
