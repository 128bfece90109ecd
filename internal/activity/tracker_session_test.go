package activity

import (
	"context"
	"errors"
	"testing"

	"drillhub.org/internal/directory"
	"drillhub.org/internal/session"
)

type stubDirectory struct {
	account directory.Account
}

func (d *stubDirectory) Authenticate(_ context.Context, _, _ string) (directory.Account, error) {
	return d.account, nil
}

// The tracker is the session's only activity writer: its refresh callback
// funnels through the authority, and its expiry callback invalidates. This
// exercises the full cycle against real tokens.
func TestTrackerDrivesSessionAuthority(t *testing.T) {
	clock := newFakeClock()
	dir := &stubDirectory{account: directory.Account{
		ID:    "u-100",
		Email: "zoe@example.com",
	}}
	authority, err := session.NewAuthority(dir, "unit-test-secret", session.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewAuthority: %v", err)
	}

	current, err := authority.Issue(context.Background(), "zoe@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	token, err := authority.Encode(current)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	issuedAt := current.LastActivity

	tr := NewTracker(DefaultConfig(),
		WithClock(clock.Now),
		WithRefresh(func() {
			current = authority.RefreshActivity(current)
			encoded, err := authority.Encode(current)
			if err != nil {
				t.Errorf("re-encode refreshed session: %v", err)
				return
			}
			token = encoded
		}),
		OnExpired(func() {
			authority.Invalidate(current)
		}),
	)

	// 19 silent minutes: the warning is pending and the token is one minute
	// from its sliding window. Reads alone never bump the activity timestamp.
	poll(tr, clock, 19)
	if tr.State() != StateWarning {
		t.Fatalf("expected WARNING, got %v", tr.State())
	}
	read, err := authority.Read(token)
	if err != nil {
		t.Fatalf("Read before refresh: %v", err)
	}
	if !read.LastActivity.Equal(issuedAt) {
		t.Fatalf("read bumped activity: %v, want %v", read.LastActivity, issuedAt)
	}

	// User activity funnels one refresh through the authority; the re-encoded
	// token carries the bumped timestamp.
	tr.Observe(EventKeyPress)
	read, err = authority.Read(token)
	if err != nil {
		t.Fatalf("Read after refresh: %v", err)
	}
	if !read.LastActivity.Equal(clock.Now()) {
		t.Fatalf("refresh did not bump activity: %v, want %v", read.LastActivity, clock.Now())
	}

	// A full silent window later the tracker expires and invalidates the
	// session; the token is dead for every subsequent reader.
	poll(tr, clock, 20)
	if tr.State() != StateExpired {
		t.Fatalf("expected EXPIRED, got %v", tr.State())
	}
	if _, err := authority.Read(token); !errors.Is(err, session.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after forced sign-out, got %v", err)
	}
}

// A declined warning prompt invalidates immediately, without waiting out the
// remaining window.
func TestTrackerDeclineInvalidatesSession(t *testing.T) {
	clock := newFakeClock()
	authority, err := session.NewAuthority(&stubDirectory{account: directory.Account{
		ID:    "u-100",
		Email: "zoe@example.com",
	}}, "unit-test-secret", session.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewAuthority: %v", err)
	}
	current, err := authority.Issue(context.Background(), "zoe@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	token, err := authority.Encode(current)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	tr := NewTracker(DefaultConfig(),
		WithClock(clock.Now),
		OnExpired(func() { authority.Invalidate(current) }),
	)

	poll(tr, clock, 18)
	tr.Decline()

	if _, err := authority.Read(token); !errors.Is(err, session.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after decline, got %v", err)
	}
}
