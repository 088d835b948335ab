package stocktake

import (
	"context"
	"time"

	"stockpost/internal/core/id"
	"stockpost/internal/domain"
)

// Repository defines persistence operations for stock-take documents.
type Repository interface {
	Create(ctx context.Context, doc *StockTake) error
	GetByID(ctx context.Context, docID id.ID) (*StockTake, error)
	Update(ctx context.Context, doc *StockTake) error
	Delete(ctx context.Context, docID id.ID) error

	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockTake], error)

	// GetForUpdate locks the document row for the transaction duration
	GetForUpdate(ctx context.Context, docID id.ID) (*StockTake, error)
}

// ListFilter narrows stock-take listings.
type ListFilter struct {
	domain.ListFilter

	Status      *Status
	WarehouseID *id.ID
	DateFrom    *time.Time
	DateTo      *time.Time
}
