package session

import (
	"errors"
	"net/http"

	"cardledger/internal/api"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type touchRequest struct {
	IDm string `json:"idm" binding:"required"`
}

type externalSessionRequest struct {
	Owner string `json:"owner" binding:"required"`
}

// Touch receives one card presentation from the reader frontend.
func (h *Handler) Touch(c *gin.Context) {
	var req touchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	result, err := h.service.Touch(ctx, req.IDm)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to process touch"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Current(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Current())
}

// AcquireExternal locks the reader for a workflow such as the
// registration dialog.
func (h *Handler) AcquireExternal(c *gin.Context) {
	var req externalSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.service.AcquireExternal(req.Owner); err != nil {
		if errors.Is(err, ErrExternalSessionHeld) {
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Reader is busy or held by another workflow"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to acquire session"})
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "External session acquired"})
}

func (h *Handler) ReleaseExternal(c *gin.Context) {
	var req externalSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	h.service.ReleaseExternal(req.Owner)
	c.JSON(http.StatusOK, api.MessageResponse{Message: "External session released"})
}
