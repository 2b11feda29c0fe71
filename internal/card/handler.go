package card

import (
	"errors"
	"net/http"
	"strconv"

	"cardledger/internal/api"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service  Service
	validate *validator.Validate
}

func NewHandler(service Service) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	result, err := h.service.Register(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrCardExists):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Card already registered"})
		case errors.Is(err, ErrCardDeletedExists):
			c.JSON(http.StatusConflict, gin.H{
				"error":      "Card was previously registered and deleted",
				"restorable": true,
			})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to register card"})
		}
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("cardID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid card ID"})
		return
	}

	ctx := c.Request.Context()
	card, err := h.service.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrCardNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Card not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch card"})
		return
	}

	c.JSON(http.StatusOK, card)
}

// List returns active cards; ?include_deleted=true includes retired ones.
func (h *Handler) List(c *gin.Context) {
	includeDeleted := c.Query("include_deleted") == "true"

	ctx := c.Request.Context()
	cards, err := h.service.List(ctx, includeDeleted)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch cards"})
		return
	}

	c.JSON(http.StatusOK, cards)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("cardID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid card ID"})
		return
	}

	var req UpdateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	card, err := h.service.Update(ctx, id, req)
	if err != nil {
		if errors.Is(err, ErrCardNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Card not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to update card"})
		return
	}

	c.JSON(http.StatusOK, card)
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("cardID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid card ID"})
		return
	}

	ctx := c.Request.Context()
	if err := h.service.SoftDelete(ctx, id); err != nil {
		switch {
		case errors.Is(err, ErrCardNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Card not found"})
		case errors.Is(err, ErrCardLent):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Card is currently lent out"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to delete card"})
		}
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Card deleted"})
}

func (h *Handler) Restore(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("cardID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid card ID"})
		return
	}

	ctx := c.Request.Context()
	if err := h.service.Restore(ctx, id); err != nil {
		if errors.Is(err, ErrCardNotDeleted) {
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Card is not deleted"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to restore card"})
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Card restored"})
}

func (h *Handler) Refund(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("cardID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid card ID"})
		return
	}

	ctx := c.Request.Context()
	row, err := h.service.Refund(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, ErrCardNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Card not found"})
		case errors.Is(err, ErrCardLent):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Card is currently lent out"})
		case errors.Is(err, ErrCardRefunded):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Card has already been refunded"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to refund card"})
		}
		return
	}

	c.JSON(http.StatusOK, row)
}
