package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/account-auth/internal/core/domain"
)

// ErrorResponse is the error payload. Codes carries every user-facing
// error code raised by the operation.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Codes   []string `json:"codes,omitempty"`
	UserID  string   `json:"user_id,omitempty"`
	TraceID string   `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string, codes ...string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		Codes:   codes,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary is the public view of an account.
type UserSummary struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	FirstName  string     `json:"first_name,omitempty"`
	LastName   string     `json:"last_name,omitempty"`
	Email      string     `json:"email"`
	Admin      bool       `json:"admin"`
	Active     bool       `json:"active"`
	Validated  bool       `json:"validated"`
	Created    time.Time  `json:"created"`
	LastAccess *time.Time `json:"last_access,omitempty"`
}

func newUserSummary(user *domain.User) UserSummary {
	if user == nil {
		return UserSummary{}
	}
	return UserSummary{
		ID:         user.ID,
		Username:   user.Username,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Email:      user.Email,
		Admin:      user.IsAdmin(),
		Active:     user.Active,
		Validated:  user.Validated,
		Created:    user.Created,
		LastAccess: user.LastAccess,
	}
}

// RegistrationRequest is the account registration payload. Field checks
// happen in the service so that every problem is reported at once.
type RegistrationRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Ticket    string `json:"ticket"`
}

// RegistrationResponse is returned after a successful registration.
type RegistrationResponse struct {
	User    UserSummary `json:"user"`
	Message string      `json:"message"`
}

// LoginRequest is the password login payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// OathLoginRequest adds the one-time code to a password login.
type OathLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

// RecoveryLoginRequest logs in with an emailed recovery ticket.
type RecoveryLoginRequest struct {
	Username string `json:"username"`
	Ticket   string `json:"ticket"`
}

// LoginResponse carries the authenticated account.
type LoginResponse struct {
	User UserSummary `json:"user"`
}

// ValidateRequest carries the emailed validation ticket.
type ValidateRequest struct {
	Ticket string `json:"ticket"`
}

// PasswordStrengthRequest asks for a strength estimate of a candidate password.
type PasswordStrengthRequest struct {
	Password string `json:"password" binding:"required"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// PasswordViolation is one failed policy rule.
type PasswordViolation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PasswordStrengthResponse reports the zxcvbn score (0-4) and policy result.
type PasswordStrengthResponse struct {
	Score      int                 `json:"score"`
	Valid      bool                `json:"valid"`
	Violations []PasswordViolation `json:"violations,omitempty"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}
