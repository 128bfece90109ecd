package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"drillhub.org/internal/directory"
	"drillhub.org/internal/ids"
)

const (
	defaultIssuer = "drillhub"

	// DefaultTimeout is the sliding inactivity window after which a session
	// expires without qualifying activity.
	DefaultTimeout = 20 * time.Minute

	// DefaultMaxAge is the absolute session ceiling measured from issuance.
	// Activity never extends a session past it.
	DefaultMaxAge = 30 * 24 * time.Hour

	// issuedAtSkew tolerates small clock drift between issuer and reader.
	issuedAtSkew = 5 * time.Second
)

// Authority owns session issuance, expiry policy and invalidation. Tokens are
// HS256 JWTs carrying identity, role flags and the last-activity timestamp.
type Authority struct {
	directory directory.Directory
	secret    []byte
	issuer    string
	timeout   time.Duration
	maxAge    time.Duration
	now       func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> absolute ceiling, pruned on access
}

// Option configures Authority behavior.
type Option func(*Authority) error

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(a *Authority) error {
		if fn != nil {
			a.now = fn
		}
		return nil
	}
}

// WithTimeout configures the sliding inactivity window.
func WithTimeout(d time.Duration) Option {
	return func(a *Authority) error {
		if d <= 0 {
			return errors.New("session: timeout must be greater than zero")
		}
		a.timeout = d
		return nil
	}
}

// WithMaxAge configures the absolute session ceiling.
func WithMaxAge(d time.Duration) Option {
	return func(a *Authority) error {
		if d <= 0 {
			return errors.New("session: max age must be greater than zero")
		}
		a.maxAge = d
		return nil
	}
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) Option {
	return func(a *Authority) error {
		issuer = strings.TrimSpace(issuer)
		if issuer != "" {
			a.issuer = issuer
		}
		return nil
	}
}

// NewAuthority constructs an Authority signing with the given secret and
// verifying credentials against dir.
func NewAuthority(dir directory.Directory, secret string, opts ...Option) (*Authority, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("session: signing secret is required")
	}
	if dir == nil {
		return nil, errors.New("session: directory is required")
	}
	a := &Authority{
		directory: dir,
		secret:    []byte(secret),
		issuer:    defaultIssuer,
		timeout:   DefaultTimeout,
		maxAge:    DefaultMaxAge,
		now:       time.Now,
		revoked:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Timeout returns the configured sliding inactivity window.
func (a *Authority) Timeout() time.Duration { return a.timeout }

// MaxAge returns the configured absolute ceiling.
func (a *Authority) MaxAge() time.Duration { return a.maxAge }

type sessionClaims struct {
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	Admin        bool   `json:"is_admin"`
	Restricted   bool   `json:"is_restricted"`
	APIToken     string `json:"api_token,omitempty"`
	LastActivity int64  `json:"last_activity"`
	jwt.RegisteredClaims
}

// Issue exchanges credentials for a fresh session. Failures keep the
// directory's typed classification: directory.ErrInvalidCredentials,
// directory.ErrEmailUnverified, directory.ErrRestricted, directory.ErrUnavailable.
func (a *Authority) Issue(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Session{}, directory.ErrInvalidCredentials
	}
	account, err := a.directory.Authenticate(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	now := a.now().UTC()
	return Session{
		ID:           ids.New(),
		UserID:       account.ID,
		Email:        account.Email,
		Name:         account.DisplayName(),
		Admin:        account.Admin,
		Restricted:   account.Restricted,
		APIToken:     account.APIToken,
		IssuedAt:     now,
		LastActivity: now,
	}, nil
}

// Encode signs the session into its persisted token form.
func (a *Authority) Encode(s Session) (string, error) {
	if s.ID == "" || s.UserID == "" {
		return "", errors.New("session: id and user id are required")
	}
	claims := sessionClaims{
		Email:        s.Email,
		Name:         s.Name,
		Admin:        s.Admin,
		Restricted:   s.Restricted,
		APIToken:     s.APIToken,
		LastActivity: s.LastActivity.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   s.UserID,
			ID:        s.ID,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.IssuedAt.Add(a.maxAge)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Read decodes and validates a persisted token. Expired sessions are returned
// alongside ErrExpired and are never silently upgraded back to valid. Decode
// failures and revoked tokens return ErrInvalidToken.
func (a *Authority) Read(raw string) (Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(raw, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return Session{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok {
		return Session{}, ErrInvalidToken
	}
	if err := a.validateClaims(claims); err != nil {
		return Session{}, ErrInvalidToken
	}

	s := Session{
		ID:           claims.ID,
		UserID:       claims.Subject,
		Email:        claims.Email,
		Name:         claims.Name,
		Admin:        claims.Admin,
		Restricted:   claims.Restricted,
		APIToken:     claims.APIToken,
		IssuedAt:     claims.IssuedAt.Time.UTC(),
		LastActivity: time.Unix(claims.LastActivity, 0).UTC(),
	}
	if a.isRevoked(s.ID) {
		return Session{}, ErrInvalidToken
	}

	now := a.now().UTC()
	if s.LastActivity.After(now.Add(issuedAtSkew)) {
		return Session{}, ErrInvalidToken
	}
	if now.Sub(s.LastActivity) >= a.timeout {
		return s, ErrExpired
	}
	if !now.Before(s.IssuedAt.Add(a.maxAge)) {
		return s, ErrExpired
	}
	return s, nil
}

func (a *Authority) validateClaims(claims *sessionClaims) error {
	if claims.Issuer != a.issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if strings.TrimSpace(claims.ID) == "" {
		return errors.New("token id missing")
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return errors.New("timestamps missing")
	}
	if claims.LastActivity <= 0 {
		return errors.New("last activity missing")
	}
	now := a.now().UTC()
	if claims.IssuedAt.Time.After(now.Add(issuedAtSkew)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}

// RefreshActivity returns a copy with LastActivity bumped to now. It never
// moves LastActivity backward, so duplicate or out-of-order refreshes are
// harmless. The absolute ceiling is unaffected.
func (a *Authority) RefreshActivity(s Session) Session {
	now := a.now().UTC()
	if now.After(s.LastActivity) {
		s.LastActivity = now
	}
	return s
}

// ExpiresAt derives the effective expiry: the sliding window from the last
// activity, capped by the absolute ceiling.
func (a *Authority) ExpiresAt(s Session) time.Time {
	sliding := s.LastActivity.Add(a.timeout)
	ceiling := s.IssuedAt.Add(a.maxAge)
	if ceiling.Before(sliding) {
		return ceiling
	}
	return sliding
}

// Invalidate destroys the session. Subsequent reads of the same raw token
// report ErrInvalidToken. A destroyed session can only be replaced via Issue.
func (a *Authority) Invalidate(s Session) {
	if s.ID == "" {
		return
	}
	now := a.now().UTC()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revoked[s.ID] = s.IssuedAt.Add(a.maxAge)
	for id, ceiling := range a.revoked {
		if ceiling.Before(now) {
			delete(a.revoked, id)
		}
	}
}

func (a *Authority) isRevoked(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.revoked[id]
	return ok
}
