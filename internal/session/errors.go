package session

import "errors"

var (
	// ErrExpired is returned by Read when the sliding inactivity window or the
	// absolute ceiling has passed. The decoded session is still returned so
	// callers can report who expired.
	ErrExpired = errors.New("session: expired")

	// ErrInvalidToken is returned by Read for malformed, tampered or revoked
	// tokens. It always forces re-authentication.
	ErrInvalidToken = errors.New("session: invalid token")
)
