// Command smoke-session exercises a running gateway end to end: it signs in,
// keeps the session alive through the activity tracker's refresh funnel, then
// goes silent and verifies the inactivity expiry signs it out globally.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"drillhub.org/internal/activity"
)

const cookieName = "drillhub_session"

type smokeClient struct {
	base string
	http *http.Client

	mu    sync.Mutex
	token string
}

func main() {
	base := os.Getenv("DRILLHUB_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	email := os.Getenv("DRILLHUB_SMOKE_EMAIL")
	password := os.Getenv("DRILLHUB_SMOKE_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("DRILLHUB_SMOKE_EMAIL and DRILLHUB_SMOKE_PASSWORD are required")
	}

	sc := &smokeClient{
		base: base,
		http: &http.Client{Timeout: 5 * time.Second},
	}
	if err := sc.login(email, password); err != nil {
		log.Fatalf("login: %v", err)
	}
	log.Println("signed in")

	// Compressed timings so the whole warning/expiry cycle runs in seconds.
	cfg := activity.Config{
		Timeout:      6 * time.Second,
		WarningLead:  2 * time.Second,
		PollInterval: time.Second,
		Debounce:     200 * time.Millisecond,
	}

	expired := make(chan struct{})
	tracker := activity.NewTracker(cfg,
		activity.WithRefresh(func() {
			if err := sc.refresh(); err != nil {
				log.Printf("activity refresh: %v", err)
			}
		}),
		activity.OnWarning(func() {
			log.Println("inactivity warning surfaced")
		}),
		activity.OnExpired(func() {
			if err := sc.logout(); err != nil {
				log.Printf("logout: %v", err)
			}
			close(expired)
		}),
	)
	if err := tracker.Start(); err != nil {
		log.Fatalf("start tracker: %v", err)
	}
	defer tracker.Stop()

	// Stay active for a few cycles, then fall silent and let the tracker
	// expire the session.
	for i := 0; i < 6; i++ {
		tracker.Observe(activity.EventKeyPress)
		time.Sleep(500 * time.Millisecond)
	}
	log.Println("going idle")

	select {
	case <-expired:
	case <-time.After(cfg.Timeout + 5*time.Second):
		log.Fatalf("tracker never expired; state=%v", tracker.State())
	}

	// The invalidated token must be dead for every subsequent reader.
	status, err := sc.sessionStatus()
	if err != nil {
		log.Fatalf("session check: %v", err)
	}
	if status != http.StatusUnauthorized {
		log.Fatalf("expected 401 after forced sign-out, got %d", status)
	}

	fmt.Println("✅ session gateway smoke test passed")
}

func (sc *smokeClient) login(email, password string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}
	resp, err := sc.http.Post(sc.base+"/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == cookieName && c.Value != "" {
			sc.setToken(c.Value)
			return nil
		}
	}
	return fmt.Errorf("no session cookie in login response")
}

// refresh is the tracker's funnel to the authority: it bumps last activity
// server-side and swaps in the re-issued cookie.
func (sc *smokeClient) refresh() error {
	resp, err := sc.do(http.MethodPost, "/v1/session/activity")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == cookieName && c.Value != "" {
			sc.setToken(c.Value)
		}
	}
	return nil
}

func (sc *smokeClient) logout() error {
	resp, err := sc.do(http.MethodPost, "/v1/auth/logout")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (sc *smokeClient) sessionStatus() (int, error) {
	resp, err := sc.do(http.MethodGet, "/v1/session")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func (sc *smokeClient) do(method, path string) (*http.Response, error) {
	req, err := http.NewRequest(method, sc.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.AddCookie(&http.Cookie{Name: cookieName, Value: sc.getToken()})
	return sc.http.Do(req)
}

func (sc *smokeClient) setToken(v string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.token = v
}

func (sc *smokeClient) getToken() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.token
}
