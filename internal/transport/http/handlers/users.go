package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/usecase"
)

// UserHandler exposes per-account ticket endpoints.
type UserHandler struct {
	auth *usecase.AuthService
}

func NewUserHandler(auth *usecase.AuthService) *UserHandler {
	return &UserHandler{auth: auth}
}

// RegisterRoutes binds account endpoints.
func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/:id/validate", h.Validate)
	r.POST("/:id/recovery", h.IssueRecovery)
}

func (h *UserHandler) loadUser(c *gin.Context) (*domain.User, bool) {
	id := strings.TrimSpace(c.Param("id"))
	user, err := h.auth.GetUser(c.Request.Context(), id)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to load user")
		return nil, false
	}
	return user, true
}

// Validate consumes the emailed validation ticket.
func (h *UserHandler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid validation payload"))
		return
	}

	user, ok := h.loadUser(c)
	if !ok {
		return
	}

	if err := h.auth.ValidateAccount(c.Request.Context(), user, req.Ticket); err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to validate account")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{User: newUserSummary(user)})
}

// IssueRecovery emails a fresh recovery ticket, revoking earlier ones.
func (h *UserHandler) IssueRecovery(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}

	if err := h.auth.IssueRecovery(c.Request.Context(), user); err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to issue recovery ticket")
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{Message: "recovery email sent"})
}
