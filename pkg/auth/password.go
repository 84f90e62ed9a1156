package auth

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest password bcrypt accepts
const MaxPasswordBytes = 72

// PasswordHasher hashes and verifies password credentials
type PasswordHasher interface {
	// Hash returns a salted hash of password
	Hash(password string) (string, error)

	// Compare returns nil if password matches hash, ErrAuthFailure otherwise
	Compare(hash, password string) error

	// CompareDummy burns the same time as a real comparison. Used when the
	// identifier is unknown so response timing does not reveal it.
	CompareDummy(password string)
}

// BcryptHasher implements PasswordHasher with bcrypt
type BcryptHasher struct {
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewBcryptHasher creates a hasher with the given cost (bcrypt.DefaultCost if out of range)
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Cost returns the configured work factor
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash returns a bcrypt hash of password
func (h *BcryptHasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", InvalidInputf("password longer than %d bytes", MaxPasswordBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Compare checks password against a stored bcrypt hash in constant time
func (h *BcryptHasher) Compare(hash, password string) error {
	// A corrupt stored hash is still a failed login from the caller's view
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrAuthFailure
	}
	return nil
}

// CompareDummy runs a comparison against a fixed hash of the same cost
func (h *BcryptHasher) CompareDummy(password string) {
	h.dummyOnce.Do(func() {
		h.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("parley-dummy-password"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
}
