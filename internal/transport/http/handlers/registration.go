package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/account-auth/internal/usecase"
)

// RegistrationHandler exposes account registration.
type RegistrationHandler struct {
	auth *usecase.AuthService
}

func NewRegistrationHandler(auth *usecase.AuthService) *RegistrationHandler {
	return &RegistrationHandler{auth: auth}
}

// RegisterRoutes binds registration endpoints.
func (h *RegistrationHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/register", h.Register)
}

// Register creates an account and emails its validation ticket.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	// Absent keys stay absent so optional name fields are skipped.
	input := usecase.RegistrationInput{
		usecase.FieldUsername: req.Username,
		usecase.FieldEmail:    req.Email,
		usecase.FieldPassword: req.Password,
	}
	if req.FirstName != "" {
		input[usecase.FieldFirstName] = req.FirstName
	}
	if req.LastName != "" {
		input[usecase.FieldLastName] = req.LastName
	}
	if req.Ticket != "" {
		input[usecase.FieldTicket] = req.Ticket
	}

	user, err := h.auth.Register(c.Request.Context(), input)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to register user")
		return
	}

	c.JSON(http.StatusCreated, RegistrationResponse{
		User:    newUserSummary(user),
		Message: "validation email sent",
	})
}
