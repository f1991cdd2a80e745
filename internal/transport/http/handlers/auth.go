package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/account-auth/internal/usecase"
)

// AuthHandler exposes the login endpoints.
type AuthHandler struct {
	auth *usecase.AuthService
}

func NewAuthHandler(auth *usecase.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRoutes binds login endpoints.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, middlewares ...gin.HandlerFunc) {
	chain := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, middlewares...), handler)
	}
	r.POST("/login", chain(h.Login)...)
	r.POST("/login/oath", chain(h.LoginOath)...)
	r.POST("/login/recovery", chain(h.LoginRecovery)...)
}

// Login authenticates with username and password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	user, err := h.auth.LoginPassword(c.Request.Context(), usecase.LoginInput{
		Username: req.Username,
		Password: req.Password,
	}, true)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to log in")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{User: newUserSummary(user)})
}

// LoginOath authenticates with password and a TOTP code.
func (h *AuthHandler) LoginOath(c *gin.Context) {
	var req OathLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	user, err := h.auth.LoginOath(c.Request.Context(), usecase.LoginInput{
		Username: req.Username,
		Password: req.Password,
	}, req.Code)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to log in")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{User: newUserSummary(user)})
}

// LoginRecovery authenticates with a single-use recovery ticket.
func (h *AuthHandler) LoginRecovery(c *gin.Context) {
	var req RecoveryLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid recovery payload"))
		return
	}

	user, err := h.auth.LoginRecovery(c.Request.Context(), usecase.RecoveryInput{
		Username: req.Username,
		Ticket:   req.Ticket,
	})
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to log in")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{User: newUserSummary(user)})
}
