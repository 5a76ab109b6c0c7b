package verification

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hides the verification-code hashing scheme from callers. Codes are
// never stored in the clear; only the hash is persisted alongside the pending
// verification.
type Hasher interface {
	Hash(code string) (string, error)
	Compare(hash, code string) error
}

// BcryptHasher implements Hasher with bcrypt at the default cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a bcrypt-backed Hasher. A cost of 0 selects the
// library default.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(code string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(code), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash verification code: %w", err)
	}
	return string(hashed), nil
}

func (h *BcryptHasher) Compare(hash, code string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		return fmt.Errorf("verification code mismatch: %w", err)
	}
	return nil
}
