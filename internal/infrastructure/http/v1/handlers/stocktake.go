package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/domain"
	"stockpost/internal/domain/documents/stocktake"
	"stockpost/internal/infrastructure/http/v1/dto"
)

// StockTakeHandler handles HTTP requests for StockTake documents.
type StockTakeHandler struct {
	*BaseHandler
	service *stocktake.Service
}

// NewStockTakeHandler creates a new stock take handler.
func NewStockTakeHandler(base *BaseHandler, service *stocktake.Service) *StockTakeHandler {
	return &StockTakeHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /documents/stock-takes. The balance snapshot is
// taken server-side at creation time.
func (h *StockTakeHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateStockTakeRequest
	if !h.BindJSON(c, &req) {
		return
	}

	warehouseID, err := id.Parse(req.WarehouseID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid warehouseId"))
		return
	}

	doc, err := h.service.Create(ctx, warehouseID, req.Note)
	if err != nil {
		h.Error(c, err)
		return
	}

	response := dto.FromStockTake(doc)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// Get handles GET /documents/stock-takes/:id
func (h *StockTakeHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromStockTake(doc))
}

// Delete handles DELETE /documents/stock-takes/:id
func (h *StockTakeHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Delete(ctx, docID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Start handles POST /documents/stock-takes/:id/start
func (h *StockTakeHandler) Start(c *gin.Context) {
	h.transition(c, h.service.Start)
}

// SaveCounts handles POST /documents/stock-takes/:id/counts.
// Partial batches are fine; repeated counts for a line overwrite.
func (h *StockTakeHandler) SaveCounts(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.SaveCountsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	updates, err := req.ToUpdates()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.SaveCounts(ctx, docID, updates); err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	response := dto.FromStockTake(doc)
	h.CompleteIdempotency(c, http.StatusOK, "application/json", response)
	c.JSON(http.StatusOK, response)
}

// Complete handles POST /documents/stock-takes/:id/complete
func (h *StockTakeHandler) Complete(c *gin.Context) {
	h.transition(c, h.service.Complete)
}

// Approve handles POST /documents/stock-takes/:id/approve
func (h *StockTakeHandler) Approve(c *gin.Context) {
	h.transition(c, h.service.Approve)
}

// Cancel handles POST /documents/stock-takes/:id/cancel
func (h *StockTakeHandler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

// List handles GET /documents/stock-takes
func (h *StockTakeHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := stocktake.ListFilter{
		ListFilter: domain.DefaultListFilter(),
	}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.Query("orderBy")
	filter.IncludeDeleted = c.Query("includeDeleted") == "true"

	if status := c.Query("status"); status != "" {
		val := stocktake.Status(status)
		filter.Status = &val
	}

	if warehouseID := c.Query("warehouseId"); warehouseID != "" {
		if parsed, err := id.Parse(warehouseID); err == nil {
			filter.WarehouseID = &parsed
		}
	}

	if dateFrom := c.Query("dateFrom"); dateFrom != "" {
		if parsed, err := time.Parse(time.RFC3339, dateFrom); err == nil {
			filter.DateFrom = &parsed
		}
	}

	if dateTo := c.Query("dateTo"); dateTo != "" {
		if parsed, err := time.Parse(time.RFC3339, dateTo); err == nil {
			filter.DateTo = &parsed
		}
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.StockTakeResponse, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromStockTake(doc)
	}

	c.JSON(http.StatusOK, dto.StockTakeListResponse{
		Items:      items,
		TotalCount: int(result.TotalCount),
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

func (h *StockTakeHandler) transition(c *gin.Context, op func(ctx context.Context, docID id.ID) error) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := op(ctx, docID); err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	response := dto.FromStockTake(doc)
	h.CompleteIdempotency(c, http.StatusOK, "application/json", response)
	c.JSON(http.StatusOK, response)
}
