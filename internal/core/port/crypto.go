package port

import (
	"time"

	"github.com/arklim/account-auth/internal/core/domain"
)

// PasswordPolicyValidator enforces password strength requirements.
type PasswordPolicyValidator interface {
	Validate(password string, ctx domain.PasswordContext) error
}

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// OTPGenerator derives time-based one-time codes from a base32 secret.
type OTPGenerator interface {
	Code(secret string, at time.Time) (string, error)
	ProvisioningURI(account, secret string) (string, error)
}
