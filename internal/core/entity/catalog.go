package entity

import (
	"context"

	"stockpost/internal/core/apperror"
)

// Catalog is the base shape of reference data such as locations.
type Catalog struct {
	BaseCatalog

	// Code is a short human-readable identifier, unique per catalog.
	// Left empty at creation it gets auto-numbered.
	Code string `db:"code" json:"code"`

	Name string `db:"name" json:"name"`

	// ParentID links hierarchical catalogs. Nil means a root node.
	ParentID *string `db:"parent_id" json:"parentId,omitempty"`

	// IsFolder marks grouping nodes that hold no data themselves.
	IsFolder bool `db:"is_folder" json:"isFolder"`
}

// NewCatalog creates a catalog entry with a generated ID.
func NewCatalog(code, name string) Catalog {
	return Catalog{
		BaseCatalog: NewBaseCatalog(),
		Code:        code,
		Name:        name,
	}
}

// Validate checks invariants that need no database access.
func (c *Catalog) Validate(ctx context.Context) error {
	if c.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	return nil
}
