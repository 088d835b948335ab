package dto

import (
	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/domain/catalogs/location"
)

// --- Request DTOs ---

// CreateLocationRequest represents a request to create a location.
type CreateLocationRequest struct {
	Code        string  `json:"code,omitempty"`
	Name        string  `json:"name" binding:"required"`
	Kind        string  `json:"kind" binding:"required"`
	WarehouseID *string `json:"warehouseId,omitempty"`
	ParentID    *string `json:"parentId,omitempty"`
	IsFolder    bool    `json:"isFolder,omitempty"`
	Address     string  `json:"address,omitempty"`
	Description string  `json:"description,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *CreateLocationRequest) ToEntity() (*location.Location, error) {
	loc := location.NewLocation(r.Code, r.Name, location.Kind(r.Kind))
	loc.ParentID = r.ParentID
	loc.IsFolder = r.IsFolder
	if r.Address != "" {
		loc.Address = &r.Address
	}
	if r.Description != "" {
		loc.Description = &r.Description
	}

	if r.WarehouseID != nil {
		warehouseID, err := id.Parse(*r.WarehouseID)
		if err != nil {
			return nil, apperror.NewValidation("invalid warehouseId")
		}
		loc.WarehouseID = &warehouseID
	}

	return loc, nil
}

// UpdateLocationRequest represents a request to update a location.
type UpdateLocationRequest struct {
	Code        *string `json:"code,omitempty"`
	Name        *string `json:"name,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
	Address     *string `json:"address,omitempty"`
	Description *string `json:"description,omitempty"`
	Version     int     `json:"version" binding:"required,min=1"`
}

// ApplyTo applies updates to an existing entity. Kind and warehouse
// binding are immutable after creation.
func (r *UpdateLocationRequest) ApplyTo(loc *location.Location) {
	if r.Code != nil {
		loc.Code = *r.Code
	}
	if r.Name != nil {
		loc.Name = *r.Name
	}
	if r.IsActive != nil {
		loc.IsActive = *r.IsActive
	}
	if r.Address != nil {
		loc.Address = r.Address
	}
	if r.Description != nil {
		loc.Description = r.Description
	}
	loc.Version = r.Version
}

// --- Response DTOs ---

// LocationResponse represents a location in API responses.
type LocationResponse struct {
	CatalogResponse
	Kind        string  `json:"kind"`
	WarehouseID *string `json:"warehouseId,omitempty"`
	IsActive    bool    `json:"isActive"`
	Address     string  `json:"address,omitempty"`
	Description string  `json:"description,omitempty"`
}

// FromLocation converts domain entity to response DTO.
func FromLocation(loc *location.Location) *LocationResponse {
	resp := &LocationResponse{
		CatalogResponse: FromCatalog(loc.Catalog),
		Kind:            string(loc.Kind),
		IsActive:        loc.IsActive,
	}
	if loc.Address != nil {
		resp.Address = *loc.Address
	}
	if loc.Description != nil {
		resp.Description = *loc.Description
	}
	if loc.WarehouseID != nil {
		v := loc.WarehouseID.String()
		resp.WarehouseID = &v
	}
	return resp
}

// LocationListResponse represents a list of locations.
type LocationListResponse struct {
	Items      []*LocationResponse `json:"items"`
	TotalCount int                 `json:"totalCount"`
	Limit      int                 `json:"limit"`
	Offset     int                 `json:"offset"`
}
