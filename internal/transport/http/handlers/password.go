package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/account-auth/internal/infra/security"
)

// PasswordHandler scores candidate passwords against the account policy.
type PasswordHandler struct{}

func NewPasswordHandler() *PasswordHandler {
	return &PasswordHandler{}
}

// Strength returns the zxcvbn score and every policy violation for the
// submitted password. Username and email are penalised as user inputs.
func (h *PasswordHandler) Strength(c *gin.Context) {
	var req PasswordStrengthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid password payload"))
		return
	}

	var inputs []string
	for _, in := range []string{req.Username, req.Email} {
		if trimmed := strings.TrimSpace(in); trimmed != "" {
			inputs = append(inputs, trimmed)
		}
	}

	resp := PasswordStrengthResponse{
		Score: security.Strength(req.Password, inputs...),
	}
	for _, err := range security.NewPasswordValidatorWithContext(inputs...).Violations(req.Password) {
		var pv *security.PasswordValidationError
		if errors.As(err, &pv) {
			resp.Violations = append(resp.Violations, PasswordViolation{Code: pv.Code, Message: pv.Message})
			continue
		}
		resp.Violations = append(resp.Violations, PasswordViolation{Code: "invalid", Message: err.Error()})
	}
	resp.Valid = len(resp.Violations) == 0

	c.JSON(http.StatusOK, resp)
}
