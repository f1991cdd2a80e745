package security

import (
	"errors"
	"fmt"
	"strings"
)

// Supported hashing algorithms.
const (
	AlgorithmBcrypt   = bcryptVariant
	AlgorithmArgon2id = argon2Variant
)

var errUnknownHashFormat = errors.New("security: unrecognised password hash format")

// HasherConfig selects the algorithm used for new hashes.
type HasherConfig struct {
	Algorithm  string
	BcryptCost int
	Argon2     Argon2Config
}

// MultiHasher hashes with the configured algorithm and verifies any supported
// stored format, so switching algorithms keeps existing credentials valid.
type MultiHasher struct {
	algorithm string
	bcrypt    *BcryptHasher
	argon2    *Argon2Hasher
}

// NewHasher builds a MultiHasher from configuration.
func NewHasher(cfg HasherConfig) (*MultiHasher, error) {
	algorithm := strings.ToLower(strings.TrimSpace(cfg.Algorithm))
	if algorithm == "" {
		algorithm = AlgorithmBcrypt
	}
	if algorithm != AlgorithmBcrypt && algorithm != AlgorithmArgon2id {
		return nil, fmt.Errorf("security: unsupported hash algorithm %q", cfg.Algorithm)
	}

	cost := cfg.BcryptCost
	if cost == 0 {
		cost = DefaultBcryptCost
	}

	argonCfg := cfg.Argon2
	if argonCfg == (Argon2Config{}) {
		argonCfg = DefaultArgon2Config()
	}
	argon, err := NewArgon2Hasher(argonCfg)
	if err != nil {
		return nil, err
	}

	return &MultiHasher{
		algorithm: algorithm,
		bcrypt:    NewBcryptHasher(cost),
		argon2:    argon,
	}, nil
}

// Algorithm reports the algorithm used for new hashes.
func (h *MultiHasher) Algorithm() string {
	return h.algorithm
}

// Hash hashes the password with the configured algorithm.
func (h *MultiHasher) Hash(password string) (string, error) {
	if h.algorithm == AlgorithmArgon2id {
		return h.argon2.Hash(password)
	}
	return h.bcrypt.Hash(password)
}

// Verify dispatches on the stored hash format.
func (h *MultiHasher) Verify(password, encoded string) (bool, error) {
	switch {
	case encoded == "":
		return false, nil
	case isBcryptHash(encoded):
		return h.bcrypt.Verify(password, encoded)
	case isArgon2Hash(encoded):
		return h.argon2.Verify(password, encoded)
	default:
		return false, errUnknownHashFormat
	}
}
