package refresh

import (
	"errors"
	"time"
)

// Token is the server-side record of an issued refresh token. Only the HMAC of
// the raw token is stored.
type Token struct {
	ID         string
	UserID     int64
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
	CreatedAt  time.Time
}

var (
	ErrNotFound = errors.New("refresh token not found")
	ErrRevoked  = errors.New("refresh token revoked")
	ErrExpired  = errors.New("refresh token expired")
	ErrMismatch = errors.New("refresh token does not match")
)

// Check validates a stored token against what the client presented.
func (t Token) Check(presentedHash string, userID int64, now time.Time) error {
	if t.RevokedAt != nil {
		return ErrRevoked
	}
	if now.After(t.ExpiresAt) {
		return ErrExpired
	}
	if t.TokenHash != presentedHash || t.UserID != userID {
		return ErrMismatch
	}
	return nil
}
