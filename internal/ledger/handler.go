package ledger

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"cardledger/internal/api"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service   *Service
	pageLimit int
}

func NewHandler(service *Service, pageLimit int) *Handler {
	if pageLimit <= 0 {
		pageLimit = 50
	}
	return &Handler{service: service, pageLimit: pageLimit}
}

type mergeRequest struct {
	LedgerIDs []int  `json:"ledger_ids" binding:"required"`
	Note      string `json:"note"`
}

type dividerRequest struct {
	// Position i toggles the boundary between sorted detail rows i and i+1.
	Position *int `json:"position" binding:"required"`
}

// ListLedgers returns a card's rows. With from/to (YYYY-MM-DD) it
// returns the range in display order; without dates it pages newest
// first (query: page, from 1; page size from HISTORY_PAGE_LIMIT).
func (h *Handler) ListLedgers(c *gin.Context) {
	cardID, err := strconv.Atoi(c.Param("cardID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid card ID"})
		return
	}

	if c.Query("from") == "" && c.Query("to") == "" {
		page := 1
		if v := c.Query("page"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid page"})
				return
			}
			page = n
		}

		rows, err := h.service.RecentPage(c.Request.Context(), cardID, page, h.pageLimit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch ledgers"})
			return
		}
		c.JSON(http.StatusOK, rows)
		return
	}

	from, to, err := dateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid date range"})
		return
	}

	ctx := c.Request.Context()
	rows, err := h.service.DisplayList(ctx, cardID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch ledgers"})
		return
	}

	c.JSON(http.StatusOK, rows)
}

// ConsistencyReport walks the range and reports balance-chain breaks.
func (h *Handler) ConsistencyReport(c *gin.Context) {
	cardID, err := strconv.Atoi(c.Param("cardID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid card ID"})
		return
	}

	from, to, err := dateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid date range"})
		return
	}

	ctx := c.Request.Context()
	ok, breaks, err := h.service.ConsistencyReport(ctx, cardID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to check consistency"})
		return
	}

	if breaks == nil {
		breaks = []Inconsistency{}
	}
	c.JSON(http.StatusOK, gin.H{"consistent": ok, "breaks": breaks})
}

func (h *Handler) LatestBalances(c *gin.Context) {
	ctx := c.Request.Context()
	balances, err := h.service.LatestBalances(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch balances"})
		return
	}

	c.JSON(http.StatusOK, balances)
}

// CreateManualEntry inserts a hand-written row, the backfill path for
// failed registration reads and truncated onboard logs.
func (h *Handler) CreateManualEntry(c *gin.Context) {
	var req ManualEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	row, err := h.service.ManualEntry(ctx, req)
	if err != nil {
		if errors.Is(err, ErrInvalidDate) {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid date"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create entry"})
		return
	}

	c.JSON(http.StatusCreated, row)
}

// ListDetails returns a row's detail rows plus the count of bus legs
// still missing a stop name.
func (h *Handler) ListDetails(c *gin.Context) {
	ledgerID, err := strconv.Atoi(c.Param("ledgerID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid ledger ID"})
		return
	}

	ctx := c.Request.Context()
	details, unknownStops, err := h.service.Details(ctx, ledgerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch details"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"details": details, "unknown_bus_stops": unknownStops})
}

func (h *Handler) ToggleDivider(c *gin.Context) {
	ledgerID, err := strconv.Atoi(c.Param("ledgerID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid ledger ID"})
		return
	}

	var req dividerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	details, err := h.service.ToggleDivider(ctx, ledgerID, *req.Position)
	if err != nil {
		switch {
		case errors.Is(err, ErrLedgerNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Ledger not found"})
		case errors.Is(err, ErrInvalidDivider):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Divider position out of range"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to toggle divider"})
		}
		return
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) ClearDividers(c *gin.Context) {
	ledgerID, err := strconv.Atoi(c.Param("ledgerID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid ledger ID"})
		return
	}

	ctx := c.Request.Context()
	details, err := h.service.ClearDividers(ctx, ledgerID)
	if err != nil {
		if errors.Is(err, ErrLedgerNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Ledger not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to clear dividers"})
		return
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) Merge(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	merged, err := h.service.Merge(ctx, req.LedgerIDs, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, ErrMergeTooFew),
			errors.Is(err, ErrMergeDifferentCards),
			errors.Is(err, ErrMergeOpenLending),
			errors.Is(err, ErrMergeMixed),
			errors.Is(err, ErrMergeNotContiguous):
			c.JSON(http.StatusUnprocessableEntity, api.ErrorResponse{Error: err.Error()})
		case errors.Is(err, ErrLedgerNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Ledger not found"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to merge"})
		}
		return
	}

	c.JSON(http.StatusOK, merged)
}

func (h *Handler) Split(c *gin.Context) {
	ledgerID, err := strconv.Atoi(c.Param("ledgerID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid ledger ID"})
		return
	}

	ctx := c.Request.Context()
	rows, err := h.service.Split(ctx, ledgerID)
	if err != nil {
		switch {
		case errors.Is(err, ErrSplitNeedsGroups), errors.Is(err, ErrMergeOpenLending):
			c.JSON(http.StatusUnprocessableEntity, api.ErrorResponse{Error: err.Error()})
		case errors.Is(err, ErrLedgerNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Ledger not found"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to split"})
		}
		return
	}

	c.JSON(http.StatusOK, rows)
}

func (h *Handler) UndoMerge(c *gin.Context) {
	historyID, err := strconv.Atoi(c.Param("historyID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid history ID"})
		return
	}

	ctx := c.Request.Context()
	rows, err := h.service.UndoMerge(ctx, historyID)
	if err != nil {
		if errors.Is(err, ErrMergeHistoryNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Merge history not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to undo merge"})
		return
	}

	c.JSON(http.StatusOK, rows)
}

func (h *Handler) ListMergeHistories(c *gin.Context) {
	cardID, err := strconv.Atoi(c.Param("cardID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid card ID"})
		return
	}

	ctx := c.Request.Context()
	histories, err := h.service.MergeHistories(ctx, cardID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch merge histories"})
		return
	}

	c.JSON(http.StatusOK, histories)
}

func dateRange(c *gin.Context) (time.Time, time.Time, error) {
	from := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)

	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, err
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, err
		}
		to = parsed
	}
	return from, to, nil
}
