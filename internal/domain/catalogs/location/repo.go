package location

import (
	"context"

	"stockpost/internal/core/id"
	"stockpost/internal/domain"
)

// Repository defines Location persistence.
type Repository interface {
	// Create inserts a new location.
	Create(ctx context.Context, loc *Location) error

	// GetByID retrieves a location by ID.
	GetByID(ctx context.Context, locID id.ID) (*Location, error)

	// Update modifies a location with optimistic locking on version.
	Update(ctx context.Context, loc *Location) error

	// SetDeletionMark sets or clears the deletion mark.
	SetDeletionMark(ctx context.Context, locID id.ID, marked bool) error

	// List retrieves locations with filtering and pagination.
	List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Location], error)

	// GetTree retrieves the hierarchy below rootID (whole forest when nil).
	GetTree(ctx context.Context, rootID *id.ID) ([]*Location, error)

	// ListByWarehouse retrieves all locations belonging to a warehouse,
	// including the warehouse itself.
	ListByWarehouse(ctx context.Context, warehouseID id.ID) ([]*Location, error)
}
