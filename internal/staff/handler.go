package staff

import (
	"errors"
	"net/http"
	"strconv"

	"cardledger/internal/api"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// CreateStaff registers a new staff card.
func (h *Handler) CreateStaff(c *gin.Context) {
	var req CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	s, err := h.repo.Create(ctx, req.IDm, req.Name, req.Number, req.Note)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create staff"})
		return
	}

	c.JSON(http.StatusCreated, s)
}

// ListStaff lists staff; ?include_deleted=true includes soft-deleted rows.
func (h *Handler) ListStaff(c *gin.Context) {
	includeDeleted := c.Query("include_deleted") == "true"

	ctx := c.Request.Context()
	staffList, err := h.repo.List(ctx, includeDeleted)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch staff"})
		return
	}

	c.JSON(http.StatusOK, staffList)
}

func (h *Handler) GetStaff(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("staffID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid staff ID"})
		return
	}

	ctx := c.Request.Context()
	s, err := h.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrStaffNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Staff not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch staff"})
		return
	}

	c.JSON(http.StatusOK, s)
}

func (h *Handler) UpdateStaff(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("staffID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid staff ID"})
		return
	}

	var req UpdateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	s, err := h.repo.Update(ctx, id, req.Name, req.Number, req.Note)
	if err != nil {
		if errors.Is(err, ErrStaffNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Staff not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to update staff"})
		return
	}

	c.JSON(http.StatusOK, s)
}

func (h *Handler) DeleteStaff(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("staffID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid staff ID"})
		return
	}

	ctx := c.Request.Context()
	if err := h.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, ErrStaffNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Staff not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to delete staff"})
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Staff deleted"})
}

func (h *Handler) RestoreStaff(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("staffID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid staff ID"})
		return
	}

	ctx := c.Request.Context()
	if err := h.repo.Restore(ctx, id); err != nil {
		if errors.Is(err, ErrStaffNotDeleted) {
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Staff is not deleted"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to restore staff"})
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Staff restored"})
}
