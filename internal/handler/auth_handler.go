package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stridelab/runtracker-go/internal/middleware"
	"github.com/stridelab/runtracker-go/pkg/response"
)

// AuthHandler mints API tokens for the mobile client
type AuthHandler struct {
	secret string
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(secret string) *AuthHandler {
	return &AuthHandler{secret: secret}
}

type tokenRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
}

// Token handles POST /api/v1/auth/token
func (h *AuthHandler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "deviceId is required")
		return
	}

	token, err := middleware.MintToken(h.secret, req.DeviceID, 24*time.Hour)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"token": token})
}
