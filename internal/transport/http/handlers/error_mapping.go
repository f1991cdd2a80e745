package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/account-auth/internal/core/domain"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves err against the auth error types first,
// then against cases, falling back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	var delivery *domain.DeliveryError
	if errors.As(err, &delivery) {
		resp := NewErrorResponse(c, "email delivery failed", delivery.Code)
		if delivery.User != nil {
			resp.UserID = delivery.User.ID
		}
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, resp)
		return
	}

	var userErr *domain.UserError
	if errors.As(err, &userErr) {
		c.JSON(userErrorStatus(userErr), NewErrorResponse(c, userErr.Error(), userErr.Codes...))
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

func userErrorStatus(err *domain.UserError) int {
	switch {
	case err.Has(domain.CodeRegistrationDisabled), err.Has(domain.CodeLoginDisabled):
		return http.StatusForbidden
	case err.Has(domain.CodeInvalidLogin), err.Has(domain.CodeInvalidRecovery):
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}
