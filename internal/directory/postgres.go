package directory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PGStore implements Directory against the gateway's own accounts table.
type PGStore struct {
	db *sql.DB
}

var _ Directory = (*PGStore)(nil)

// NewPGStore constructs a PGStore over an open database handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Authenticate looks the account up by email and verifies the password hash.
// Unverified and restricted accounts fail with their dedicated errors after
// the password check, so probing cannot distinguish them from bad credentials
// without knowing the password.
func (s *PGStore) Authenticate(ctx context.Context, email, password string) (Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Account{}, ErrInvalidCredentials
	}

	row := s.db.QueryRowContext(ctx,
		`select id, email, first_name, last_name, password_hash, email_verified, is_admin, is_restricted, api_token
		   from accounts where email = $1`, email)

	var (
		acct         Account
		passwordHash string
		verified     bool
	)
	if err := row.Scan(&acct.ID, &acct.Email, &acct.FirstName, &acct.LastName,
		&passwordHash, &verified, &acct.Admin, &acct.Restricted, &acct.APIToken); err != nil {
		if err == sql.ErrNoRows {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, fmt.Errorf("find account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	if !verified {
		return Account{}, ErrEmailUnverified
	}
	if acct.Restricted {
		return Account{}, ErrRestricted
	}
	return acct, nil
}

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", fmt.Errorf("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
