package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/domain"
	"stockpost/internal/domain/catalogs/location"
	"stockpost/internal/domain/filter"
	"stockpost/internal/infrastructure/http/v1/dto"
)

// LocationHandler handles HTTP requests for the location catalog.
type LocationHandler struct {
	*BaseHandler
	service *location.Service
}

// NewLocationHandler creates a new location handler.
func NewLocationHandler(base *BaseHandler, service *location.Service) *LocationHandler {
	return &LocationHandler{
		BaseHandler: base,
		service:     service,
	}
}

// List handles GET /locations
func (h *LocationHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	f := domain.DefaultListFilter()
	f.Search = c.Query("search")
	f.Limit = h.ParseIntQuery(c, "limit", 50)
	f.Offset = h.ParseIntQuery(c, "offset", 0)
	f.OrderBy = c.DefaultQuery("orderBy", "name")
	f.IncludeDeleted = c.Query("includeDeleted") == "true"

	if parentID := c.Query("parentId"); parentID != "" {
		f.ParentID = &parentID
	}
	if isFolder := c.Query("isFolder"); isFolder != "" {
		val := isFolder == "true"
		f.IsFolder = &val
	}

	// Field-level conditions arrive as a JSON array in the filter parameter.
	if raw := c.Query("filter"); raw != "" {
		var conditions []filter.Item
		if err := json.Unmarshal([]byte(raw), &conditions); err != nil {
			h.Error(c, apperror.NewValidation("invalid filter format (json expected)"))
			return
		}
		f.Conditions = conditions
	}

	result, err := h.service.List(ctx, f)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.LocationResponse, len(result.Items))
	for i, loc := range result.Items {
		items[i] = dto.FromLocation(loc)
	}

	c.JSON(http.StatusOK, dto.LocationListResponse{
		Items:      items,
		TotalCount: int(result.TotalCount),
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Get handles GET /locations/:id
func (h *LocationHandler) Get(c *gin.Context) {
	locID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	loc, err := h.service.GetByID(c.Request.Context(), locID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromLocation(loc))
}

// Create handles POST /locations
func (h *LocationHandler) Create(c *gin.Context) {
	var req dto.CreateLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	loc, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Create(c.Request.Context(), loc); err != nil {
		h.Error(c, err)
		return
	}

	resp := dto.FromLocation(loc)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", resp)

	c.JSON(http.StatusCreated, resp)
}

// Update handles PUT /locations/:id
func (h *LocationHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	locID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdateLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	loc, err := h.service.GetByID(ctx, locID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(loc)

	if err := h.service.Update(ctx, loc); err != nil {
		h.Error(c, err)
		return
	}

	resp := dto.FromLocation(loc)
	h.CompleteIdempotency(c, http.StatusOK, "application/json", resp)

	c.JSON(http.StatusOK, resp)
}

// Delete handles DELETE /locations/:id (soft delete).
func (h *LocationHandler) Delete(c *gin.Context) {
	locID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), locID); err != nil {
		h.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SetDeletionMark handles POST /locations/:id/deletion-mark
func (h *LocationHandler) SetDeletionMark(c *gin.Context) {
	locID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.SetDeletionMarkRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.SetDeletionMark(c.Request.Context(), locID, req.Marked); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "deletion mark updated")
}

// GetTree handles GET /locations/tree
func (h *LocationHandler) GetTree(c *gin.Context) {
	var rootID *id.ID
	if rootStr := c.Query("rootId"); rootStr != "" {
		parsed, err := id.Parse(rootStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid rootId format"))
			return
		}
		rootID = &parsed
	}

	items, err := h.service.GetTree(c.Request.Context(), rootID)
	if err != nil {
		h.Error(c, err)
		return
	}

	nodes := make([]*dto.LocationResponse, len(items))
	for i, loc := range items {
		nodes[i] = dto.FromLocation(loc)
	}

	c.JSON(http.StatusOK, gin.H{"items": nodes})
}
