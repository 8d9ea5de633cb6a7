package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
)

// TokenKeyLen is the length of a token key: 20 random bytes, hex encoded.
const TokenKeyLen = 40

var tokenKeyRegex = regexp.MustCompile(`^[0-9a-f]{40}$`)

// GenerateTokenKey returns a new random 40-character token key.
func GenerateTokenKey() (string, error) {
	b := make([]byte, TokenKeyLen/2)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ValidateKeyFormat reports whether key could have been produced by
// GenerateTokenKey.
func ValidateKeyFormat(key string) bool {
	return tokenKeyRegex.MatchString(key)
}
