// Package store persists users and the refresh-token ledger. Uniqueness of
// user emails and ledger entries is enforced here, not by callers.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// hashToken is the ledger key for a refresh token; raw tokens are never stored.
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
