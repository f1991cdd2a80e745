package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes surfaced to callers. Login and recovery codes are deliberately
// ambiguous; registration codes are specific.
const (
	CodeRegistrationDisabled = "registration-disabled"
	CodeLoginDisabled        = "login-disabled"

	CodeUsernameRequired = "username-required"
	CodeInvalidUsername  = "invalid-username"
	CodeInvalidFirstName = "invalid-first-name"
	CodeInvalidLastName  = "invalid-last-name"
	CodeEmailRequired    = "email-required"
	CodeInvalidEmail     = "invalid-email"
	CodePasswordRequired = "password-required"
	CodeInvalidPassword  = "invalid-password"
	CodeTokenRequired    = "token-required"
	CodeInvalidToken     = "invalid-token"

	CodeUserExists     = "user-exists"
	CodeEmailExists    = "email-exists"
	CodeNoSuchTicket   = "no-such-ticket"
	CodeTokenExhausted = "token-exhausted"
	CodeTokenExpired   = "token-expired"

	CodeInvalidLogin    = "invalid-login"
	CodeInvalidRecovery = "invalid-recovery"

	CodeNewPasswordRequired = "new-password-required"
	CodeInvalidNewPassword  = "invalid-new-password"
	CodeOldPasswordRequired = "old-password-required"
	CodeInvalidOldPassword  = "invalid-old-password"

	CodeValidationEmailFailure = "validation-email-failure"
	CodeRecoveryEmailFailure   = "recovery-email-failure"

	CodeAssociatedDataPresent = "associated-data-present"
)

// UserError carries every field or state violation found by an operation.
type UserError struct {
	Codes []string
}

// NewUserError builds a UserError from the supplied codes.
func NewUserError(codes ...string) *UserError {
	copied := make([]string, len(codes))
	copy(copied, codes)
	return &UserError{Codes: copied}
}

// Error implements error.
func (e *UserError) Error() string {
	if e == nil || len(e.Codes) == 0 {
		return "user error"
	}
	return strings.Join(e.Codes, ", ")
}

// Has reports whether the error contains the code.
func (e *UserError) Has(code string) bool {
	if e == nil {
		return false
	}
	for _, c := range e.Codes {
		if c == code {
			return true
		}
	}
	return false
}

// ErrorCodes extracts the codes of a UserError or DeliveryError found in err's chain.
func ErrorCodes(err error) []string {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.Codes
	}
	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) {
		return []string{deliveryErr.Code}
	}
	return nil
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	for _, c := range ErrorCodes(err) {
		if c == code {
			return true
		}
	}
	return false
}

// DeliveryError reports a notification failure that happened after the
// operation's records were committed. User is the committed account.
type DeliveryError struct {
	Code string
	User *User
	Err  error
}

// Error implements error.
func (e *DeliveryError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

// Unwrap exposes the mail sender error.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Committed always reports true; state changed even though delivery failed.
func (e *DeliveryError) Committed() bool {
	return true
}

// PreconditionError is raised with panic when an operation is invoked on an
// entity that was never persisted.
type PreconditionError struct {
	Operation string
	Reason    string
}

// Error implements error.
func (e PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
}
