package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/domain"
	"stockpost/internal/domain/documents/movement"
	"stockpost/internal/infrastructure/http/v1/dto"
)

// MovementHandler handles HTTP requests for Movement documents.
type MovementHandler struct {
	*BaseHandler
	service *movement.Service
}

// NewMovementHandler creates a new movement handler.
func NewMovementHandler(base *BaseHandler, service *movement.Service) *MovementHandler {
	return &MovementHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /documents/movements
func (h *MovementHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Create(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	response := dto.FromMovement(doc)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// Get handles GET /documents/movements/:id
func (h *MovementHandler) Get(c *gin.Context) {
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

	c.JSON(http.StatusOK, dto.FromMovement(doc))
}

// Update handles PUT /documents/movements/:id - draft only, lines
// replaced wholesale.
func (h *MovementHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdateMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := req.ApplyTo(doc); err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Update(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	response := dto.FromMovement(doc)
	h.CompleteIdempotency(c, http.StatusOK, "application/json", response)
	c.JSON(http.StatusOK, response)
}

// Delete handles DELETE /documents/movements/:id
func (h *MovementHandler) Delete(c *gin.Context) {
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

// Submit handles POST /documents/movements/:id/submit
func (h *MovementHandler) Submit(c *gin.Context) {
	h.transition(c, h.service.Submit)
}

// Approve handles POST /documents/movements/:id/approve
func (h *MovementHandler) Approve(c *gin.Context) {
	h.transition(c, h.service.Approve)
}

// Post handles POST /documents/movements/:id/post
func (h *MovementHandler) Post(c *gin.Context) {
	h.transition(c, h.service.Post)
}

// Reject handles POST /documents/movements/:id/reject
func (h *MovementHandler) Reject(c *gin.Context) {
	h.transitionWithReason(c, h.service.Reject)
}

// Cancel handles POST /documents/movements/:id/cancel
func (h *MovementHandler) Cancel(c *gin.Context) {
	h.transitionWithReason(c, h.service.Cancel)
}

// List handles GET /documents/movements
func (h *MovementHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := movement.ListFilter{
		ListFilter: domain.DefaultListFilter(),
	}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.Query("orderBy")
	filter.IncludeDeleted = c.Query("includeDeleted") == "true"

	if movType := c.Query("type"); movType != "" {
		val := movement.Type(movType)
		filter.Type = &val
	}

	if status := c.Query("status"); status != "" {
		val := movement.Status(status)
		filter.Status = &val
	}

	if refID := c.Query("refId"); refID != "" {
		if parsed, err := id.Parse(refID); err == nil {
			filter.RefID = &parsed
		}
	}

	if posted := c.Query("posted"); posted != "" {
		val := posted == "true"
		filter.Posted = &val
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

	items := make([]*dto.MovementResponse, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromMovement(doc)
	}

	c.JSON(http.StatusOK, dto.MovementListResponse{
		Items:      items,
		TotalCount: int(result.TotalCount),
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// transition runs a reason-less state transition and returns the
// updated document.
func (h *MovementHandler) transition(c *gin.Context, op func(ctx context.Context, docID id.ID) error) {
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

	response := dto.FromMovement(doc)
	h.CompleteIdempotency(c, http.StatusOK, "application/json", response)
	c.JSON(http.StatusOK, response)
}

func (h *MovementHandler) transitionWithReason(c *gin.Context, op func(ctx context.Context, docID id.ID, reason string) error) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.ReasonRequest
	if c.Request.ContentLength > 0 {
		if !h.BindJSON(c, &req) {
			return
		}
	}

	if err := op(ctx, docID, req.Reason); err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	response := dto.FromMovement(doc)
	h.CompleteIdempotency(c, http.StatusOK, "application/json", response)
	c.JSON(http.StatusOK, response)
}
