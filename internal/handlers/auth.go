// Package handlers implements the HTTP surface: request binding,
// response shaping, and the mapping from domain errors to status codes.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quantarc/ordergate/internal/auth"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": errorBody{Code: code, Message: message}})
}

// AuthHandler serves login.
type AuthHandler struct {
	manager *auth.Manager
	logger  *zap.Logger
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(manager *auth.Manager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{manager: manager, logger: logger}
}

// LoginRequest is the login body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login exchanges credentials for a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "username and password are required")
		return
	}

	token, err := h.manager.Authenticate(req.Username, req.Password)
	if err != nil {
		writeError(c, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "invalid username or password")
		return
	}

	h.logger.Info("user logged in", zap.String("username", req.Username))
	c.JSON(http.StatusOK, token)
}
