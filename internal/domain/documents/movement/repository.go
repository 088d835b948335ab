package movement

import (
	"context"
	"time"

	"stockpost/internal/core/id"
	"stockpost/internal/domain"
)

// Repository defines storage operations for movement documents.
type Repository interface {
	Create(ctx context.Context, doc *Movement) error
	GetByID(ctx context.Context, docID id.ID) (*Movement, error)
	Update(ctx context.Context, doc *Movement) error
	Delete(ctx context.Context, docID id.ID) error

	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Movement], error)
	GetForUpdate(ctx context.Context, docID id.ID) (*Movement, error)
}

// ListFilter for filtering movements.
type ListFilter struct {
	domain.ListFilter

	Type     *Type
	Status   *Status
	RefID    *id.ID
	Posted   *bool
	DateFrom *time.Time
	DateTo   *time.Time
}
