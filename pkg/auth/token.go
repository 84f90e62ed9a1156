package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	// InviteCodeBytes is the entropy of an invite code (16 bytes = 128 bits)
	InviteCodeBytes = 16
	// SessionHandleBytes is the entropy of a session handle (32 bytes = 256 bits)
	SessionHandleBytes = 32
)

// TokenGenerator produces opaque random tokens
type TokenGenerator struct {
	size int
}

// NewTokenGenerator creates a generator of size random bytes per token
func NewTokenGenerator(size int) *TokenGenerator {
	if size < InviteCodeBytes {
		size = InviteCodeBytes
	}
	return &TokenGenerator{size: size}
}

// NewInviteCodeGenerator returns the generator used for invite codes
func NewInviteCodeGenerator() *TokenGenerator {
	return NewTokenGenerator(InviteCodeBytes)
}

// NewSessionHandleGenerator returns the generator used for session handles
func NewSessionHandleGenerator() *TokenGenerator {
	return NewTokenGenerator(SessionHandleBytes)
}

// Generate returns a new lowercase hex token
func (tg *TokenGenerator) Generate() (string, error) {
	randomBytes := make([]byte, tg.size)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}

// Length is the number of characters in a generated token
func (tg *TokenGenerator) Length() int {
	return tg.size * 2
}

// ValidFormat reports whether token could have been produced by this generator.
// It lets callers reject garbage without touching the store.
func (tg *TokenGenerator) ValidFormat(token string) bool {
	if len(token) != tg.Length() {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// HashToken computes the SHA256 hash of a token for server-side lookup
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// TokenPrefix returns the first 8 characters of a token for log lines
func TokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
