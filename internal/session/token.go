package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// tokenLength is the number of random bytes in a cookie token
const tokenLength = 32

// newToken returns a random cookie token and the SHA-256 hex digest used as
// the store key.
func newToken() (token, id string, err error) {
	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate session token: %w", err)
	}
	token = hex.EncodeToString(b)
	return token, hashToken(token), nil
}

// hashToken maps a cookie token to its store key.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
