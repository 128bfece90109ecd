// Package directory verifies account credentials. Two implementations exist:
// a Client for the platform's remote account service and a PGStore backed by
// the gateway's own accounts table.
package directory

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrInvalidCredentials covers an unknown email or a wrong password on a
	// verified account. Issuance-time, terminal for the attempt.
	ErrInvalidCredentials = errors.New("directory: invalid credentials")

	// ErrEmailUnverified means the account exists but its email was never
	// confirmed. Distinct from ErrInvalidCredentials by contract.
	ErrEmailUnverified = errors.New("directory: email not verified")

	// ErrRestricted means the account carries the restriction flag.
	ErrRestricted = errors.New("directory: account restricted")

	// ErrUnavailable means the account service could not be reached or broke
	// protocol. Retryable by the user, never classified into the kinds above.
	ErrUnavailable = errors.New("directory: account service unavailable")
)

// Account is a verified account as reported by the credential check.
type Account struct {
	ID         string
	Email      string
	FirstName  string
	LastName   string
	Admin      bool
	Restricted bool
	// APIToken is the opaque bearer credential for the resource APIs.
	APIToken string
}

// DisplayName joins the name parts, tolerating either being empty.
func (a Account) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
}

// Directory exchanges credentials for an account.
type Directory interface {
	// Authenticate verifies email+password. Restricted and unverified accounts
	// fail with their dedicated errors; callers must not conflate them.
	Authenticate(ctx context.Context, email, password string) (Account, error)
}
