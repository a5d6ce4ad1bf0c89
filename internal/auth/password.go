package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// NewTemporaryCredential generates the random password given to shadow
// accounts and returns it with its bcrypt hash.
func NewTemporaryCredential(cost int) (string, string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate credential: %w", err)
	}
	plain := base64.RawURLEncoding.EncodeToString(buf)
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", "", fmt.Errorf("hash credential: %w", err)
	}
	return plain, string(hash), nil
}
