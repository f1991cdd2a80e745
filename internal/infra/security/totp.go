package security

import (
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	defaultTOTPPeriod = 30
	defaultTOTPIssuer = "account-auth"
)

// ErrMissingSecret is returned when secret is empty.
var ErrMissingSecret = fmt.Errorf("totp secret is required")

// TOTP derives RFC 6238 codes: 30 second steps, six digits, HMAC-SHA1.
type TOTP struct {
	issuer string
	opts   totp.ValidateOpts
}

// NewTOTP constructs a code generator labelled with issuer for provisioning URIs.
func NewTOTP(issuer string) *TOTP {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		issuer = defaultTOTPIssuer
	}
	return &TOTP{
		issuer: issuer,
		opts: totp.ValidateOpts{
			Period:    defaultTOTPPeriod,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		},
	}
}

// Code returns the code valid for the time step containing at.
func (t *TOTP) Code(secret string, at time.Time) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	code, err := totp.GenerateCodeCustom(secret, at, t.opts)
	if err != nil {
		return "", fmt.Errorf("generate totp code: %w", err)
	}
	return code, nil
}

// ProvisioningURI renders the otpauth:// URI an authenticator app enrolls from.
func (t *TOTP) ProvisioningURI(account, secret string) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
	if err != nil {
		return "", fmt.Errorf("decode totp secret: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: account,
		Period:      uint(t.opts.Period),
		Secret:      raw,
		Digits:      t.opts.Digits,
		Algorithm:   t.opts.Algorithm,
	})
	if err != nil {
		return "", fmt.Errorf("build provisioning uri: %w", err)
	}
	return key.URL(), nil
}
