package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost is 2^13 key expansion rounds.
	DefaultBcryptCost = 13
	// MinProductionBcryptCost is the lowest cost accepted from configuration.
	MinProductionBcryptCost = 13
	// BcryptMaxPasswordBytes is the input limit of the bcrypt algorithm.
	BcryptMaxPasswordBytes = 72

	bcryptVariant = "bcrypt"
)

// BcryptHasher hashes passwords with bcrypt at a fixed cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher constructs a hasher; costs below bcrypt.MinCost are raised to it.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost}
}

// Cost returns the configured work factor.
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash generates a salted bcrypt digest.
func (h *BcryptHasher) Hash(password string) (string, error) {
	sum, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: hash password: %w", err)
	}
	return string(sum), nil
}

// Verify recomputes the digest under the embedded salt and cost.
func (h *BcryptHasher) Verify(password, encoded string) (bool, error) {
	if password == "" || encoded == "" {
		return false, nil
	}

	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("bcrypt: verify password: %w", err)
	}
}

func isBcryptHash(encoded string) bool {
	return len(encoded) > 4 && encoded[0] == '$' && encoded[1] == '2'
}
