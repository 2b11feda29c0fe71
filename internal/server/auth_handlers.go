package server

import (
	"net/http"

	"cardledger/internal/api"
	"cardledger/internal/auth"
	"cardledger/internal/config"
	"cardledger/internal/logger"

	"github.com/gin-gonic/gin"
)

// LoginHandler authenticates the single admin credential. There are no
// per-user accounts; the ledger console is one shared workstation role.
type LoginHandler struct {
	config *config.Config
}

func NewLoginHandler(cfg *config.Config) *LoginHandler {
	return &LoginHandler{config: cfg}
}

type loginRequest struct {
	Password string `json:"password" binding:"required" validate:"required,min=8"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (h *LoginHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	if errs := ValidateStruct(req); len(errs) > 0 {
		RespondWithValidationErrors(c, errs)
		return
	}

	if h.config.AdminPasswordHash == "" {
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "Admin API is disabled"})
		return
	}

	if !auth.CheckPassword(h.config.AdminPasswordHash, req.Password) {
		logger.Errorf("Failed admin login from %s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Invalid credentials"})
		return
	}

	accessToken, refreshToken, err := auth.GenerateTokens(auth.RoleAdmin, h.config.JWTSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to generate tokens"})
		return
	}

	logger.Infof("Admin logged in from %s", c.ClientIP())
	c.JSON(http.StatusOK, tokenResponse{AccessToken: accessToken, RefreshToken: refreshToken})
}

func (h *LoginHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	accessToken, _, err := auth.RefreshAccessToken(req.RefreshToken, h.config.JWTSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Invalid refresh token"})
		return
	}

	c.JSON(http.StatusOK, tokenResponse{AccessToken: accessToken})
}
