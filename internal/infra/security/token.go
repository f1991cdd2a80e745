package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
)

const (
	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// Largest multiple of len(alphanumeric) that fits in a byte; higher bytes
	// are rejected to keep the distribution uniform.
	rejectionLimit = 256 - 256%len(alphanumeric)

	// TicketSaltLength is the size of the random salt mixed into emailed tickets.
	TicketSaltLength = 64
	// SystemTicketLength is the size of system (invite) ticket values.
	SystemTicketLength = 20
	// OathSeedLength is the size of the random seed behind an OATH secret.
	// Multiples of 5 encode to base32 without padding.
	OathSeedLength = 10
)

// RandomString returns a cryptographically random alphanumeric string of the given length.
// A non-positive length is a programming error and panics.
func RandomString(length int) string {
	if length <= 0 {
		panic("security: random string length must be positive")
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length+length/4+1)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			panic("security: read random bytes: " + err.Error())
		}
		for _, b := range buf {
			if int(b) >= rejectionLimit {
				continue
			}
			out = append(out, alphanumeric[int(b)%len(alphanumeric)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out)
}

// HashToken calculates a SHA-256 hash of the provided value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// NewEmailTicket derives an emailed ticket bound to its recipient: a one-way
// digest of the address and fresh random salt.
func NewEmailTicket(email string) string {
	return HashToken(email + RandomString(TicketSaltLength))
}

// NewSystemTicketValue returns a random value for an invite ticket.
func NewSystemTicketValue() string {
	return RandomString(SystemTicketLength)
}

// NewOathSecret returns a base32 (unpadded) encoding of fresh random seed material.
func NewOathSecret() string {
	seed := RandomString(OathSeedLength)
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(seed))
}
