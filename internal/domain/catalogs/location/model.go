// Package location provides the Location catalog.
// Locations form a hierarchy: warehouses at the root, with zones and
// bins nested below. Stock balances are kept per leaf location.
package location

import (
	"context"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/entity"
	"stockpost/internal/core/id"
)

// Kind defines the level of a location in the hierarchy.
type Kind string

const (
	KindWarehouse Kind = "warehouse"
	KindZone      Kind = "zone"
	KindBin       Kind = "bin"
)

// Location represents one storage place.
type Location struct {
	entity.Catalog

	// Kind defines the hierarchy level
	Kind Kind `db:"kind" json:"kind"`

	// WarehouseID points to the root warehouse. Nil for warehouses themselves.
	WarehouseID *id.ID `db:"warehouse_id" json:"warehouseId,omitempty"`

	// IsActive indicates the location accepts stock operations
	IsActive bool `db:"is_active" json:"isActive"`

	// Address is the physical address (warehouses only)
	Address *string `db:"address" json:"address,omitempty"`

	Description *string `db:"description" json:"description,omitempty"`
}

// NewLocation creates a new Location with required fields.
func NewLocation(code, name string, kind Kind) *Location {
	return &Location{
		Catalog:  entity.NewCatalog(code, name),
		Kind:     kind,
		IsActive: true,
	}
}

// Validate checks invariants that need no database access.
func (l *Location) Validate(ctx context.Context) error {
	if err := l.Catalog.Validate(ctx); err != nil {
		return err
	}

	if !isValidKind(l.Kind) {
		return apperror.NewValidation("invalid location kind").
			WithDetail("field", "kind").
			WithDetail("value", string(l.Kind))
	}

	// Zones and bins always belong to a warehouse.
	if l.Kind != KindWarehouse && l.WarehouseID == nil {
		return apperror.NewValidation("warehouse is required for nested locations").
			WithDetail("field", "warehouseId")
	}

	if l.Kind == KindWarehouse && l.WarehouseID != nil {
		return apperror.NewValidation("warehouse cannot belong to another warehouse").
			WithDetail("field", "warehouseId")
	}

	return nil
}

// CanStoreStock returns true if the location can hold balances.
func (l *Location) CanStoreStock() bool {
	return l.IsActive && !l.IsFolder
}

func isValidKind(k Kind) bool {
	switch k {
	case KindWarehouse, KindZone, KindBin:
		return true
	}
	return false
}
