// Package activity detects user inactivity and drives the warning-then-forced-
// sign-out sequence for a connected client.
package activity

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// State of one client's inactivity machine.
type State int

const (
	// StateActive means qualifying activity was seen within the window.
	StateActive State = iota
	// StateWarning means the warning has been surfaced and the client must
	// confirm to stay signed in.
	StateWarning
	// StateExpired is terminal for this tracker instance. Only a fresh login
	// and a new tracker re-enter StateActive.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateWarning:
		return "WARNING"
	case StateExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// Event is a user input counted as evidence of presence.
type Event string

const (
	EventPointerDown Event = "pointer-down"
	EventKeyPress    Event = "key-press"
	EventScroll      Event = "scroll"
	EventTouchStart  Event = "touch-start"
)

// Config holds the tracker's timing policy.
type Config struct {
	// Timeout is the inactivity window after which the session is forced out.
	Timeout time.Duration
	// WarningLead is how long before Timeout the warning is surfaced.
	WarningLead time.Duration
	// PollInterval is the cadence at which inactivity is evaluated. The
	// warning may therefore fire up to one interval late; that tolerance is
	// part of the contract.
	PollInterval time.Duration
	// Debounce coalesces rapid event bursts into at most one upstream
	// activity refresh per interval.
	Debounce time.Duration
}

// DefaultConfig mirrors the production policy: 20-minute timeout, 2-minute
// warning lead, 60-second polling, 1-second refresh debounce.
func DefaultConfig() Config {
	return Config{
		Timeout:      20 * time.Minute,
		WarningLead:  2 * time.Minute,
		PollInterval: 60 * time.Second,
		Debounce:     time.Second,
	}
}

// ErrExpired is returned when an operation arrives after the tracker already
// expired.
var ErrExpired = errors.New("activity: session expired")

// Tracker is the inactivity state machine for one client instance. All state
// transitions happen under one lock; callbacks fire outside it.
type Tracker struct {
	cfg     Config
	now     func() time.Time
	refresh func()
	warn    func()
	expire  func()
	limiter *rate.Limiter

	mu           sync.Mutex
	state        State
	lastActivity time.Time
	warningShown bool
	started      bool
	stopped      bool
	done         chan struct{}
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if fn != nil {
			t.now = fn
		}
	}
}

// WithRefresh sets the callback that forwards activity to the session
// authority. It is debounced; the tracker is its only caller, preserving a
// single writer for the session.
func WithRefresh(fn func()) TrackerOption {
	return func(t *Tracker) { t.refresh = fn }
}

// OnWarning sets the callback fired when the warning must be surfaced.
func OnWarning(fn func()) TrackerOption {
	return func(t *Tracker) { t.warn = fn }
}

// OnExpired sets the callback fired on forced sign-out.
func OnExpired(fn func()) TrackerOption {
	return func(t *Tracker) { t.expire = fn }
}

// NewTracker constructs a Tracker. Zero or negative config fields fall back
// to the defaults; WarningLead is clamped below Timeout.
func NewTracker(cfg Config, opts ...TrackerOption) *Tracker {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.WarningLead <= 0 || cfg.WarningLead >= cfg.Timeout {
		cfg.WarningLead = def.WarningLead
		if cfg.WarningLead >= cfg.Timeout {
			cfg.WarningLead = cfg.Timeout / 10
		}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}

	t := &Tracker{
		cfg:  cfg,
		now:  time.Now,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.limiter = rate.NewLimiter(rate.Every(cfg.Debounce), 1)
	t.lastActivity = t.now()
	return t
}

// Start launches the polling loop. It returns an error if the tracker was
// already started or stopped.
func (t *Tracker) Start() error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return errors.New("activity: tracker already started")
	}
	if t.stopped {
		t.mu.Unlock()
		return errors.New("activity: tracker already stopped")
	}
	t.started = true
	t.lastActivity = t.now()
	t.mu.Unlock()

	go func() {
		ticker := time.NewTicker(t.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-t.done:
				return
			case <-ticker.C:
				t.evaluate()
			}
		}
	}()
	return nil
}

// Stop tears the tracker down: the polling loop exits and no further
// callbacks fire. Safe to call from any state, any number of times, including
// during a pending warning.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	close(t.done)
	t.mu.Unlock()
}

// Done is closed once the tracker has been stopped.
func (t *Tracker) Done() <-chan struct{} { return t.done }

// Observe records a qualifying event. Activity resumes the Active state,
// clears a pending warning, and forwards a debounced refresh upstream. The
// local timestamp never moves backward, so duplicate or reordered events are
// harmless. Expired trackers ignore events.
func (t *Tracker) Observe(_ Event) {
	t.mu.Lock()
	if t.stopped || t.state == StateExpired {
		t.mu.Unlock()
		return
	}
	now := t.now()
	if now.After(t.lastActivity) {
		t.lastActivity = now
	}
	t.warningShown = false
	t.state = StateActive
	forward := t.refresh != nil && t.limiter.AllowN(now, 1)
	t.mu.Unlock()

	if forward {
		t.refresh()
	}
}

// ConfirmStay handles the user confirming the warning prompt. It counts as
// the freshest activity event and resets the full window from this moment. A
// confirmation that lost the race against expiry returns ErrExpired.
func (t *Tracker) ConfirmStay() error {
	t.mu.Lock()
	if t.stopped || t.state == StateExpired {
		t.mu.Unlock()
		return ErrExpired
	}
	t.lastActivity = t.now()
	t.warningShown = false
	t.state = StateActive
	refresh := t.refresh
	t.mu.Unlock()

	if refresh != nil {
		refresh()
	}
	return nil
}

// Decline handles the user declining the warning prompt: immediate forced
// sign-out.
func (t *Tracker) Decline() {
	t.expireNow()
}

// State reports the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IdleFor reports how long the client has been without qualifying activity.
func (t *Tracker) IdleFor() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now().Sub(t.lastActivity)
}

// evaluate is one polling step: expire past the timeout, otherwise surface
// the warning once per inactivity episode when the lead threshold passes.
func (t *Tracker) evaluate() {
	t.mu.Lock()
	if t.stopped || t.state == StateExpired {
		t.mu.Unlock()
		return
	}
	idle := t.now().Sub(t.lastActivity)
	if idle >= t.cfg.Timeout {
		t.state = StateExpired
		cb := t.expire
		t.mu.Unlock()
		if cb != nil {
			cb()
		}
		return
	}
	if idle >= t.cfg.Timeout-t.cfg.WarningLead && !t.warningShown {
		t.warningShown = true
		t.state = StateWarning
		cb := t.warn
		t.mu.Unlock()
		if cb != nil {
			cb()
		}
		return
	}
	t.mu.Unlock()
}

func (t *Tracker) expireNow() {
	t.mu.Lock()
	if t.stopped || t.state == StateExpired {
		t.mu.Unlock()
		return
	}
	t.state = StateExpired
	cb := t.expire
	t.mu.Unlock()
	if cb != nil {
		cb()
	}
}
