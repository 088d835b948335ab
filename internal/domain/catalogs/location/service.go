package location

import (
	"context"
	"fmt"
	"time"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/core/tx"
	"stockpost/internal/domain"
	"stockpost/pkg/numerator"
)

// Service provides business logic for the Location catalog.
type Service struct {
	repo      Repository
	numerator *numerator.Service
	txManager tx.Manager
}

// NewService creates a new Location service.
func NewService(repo Repository, numerator *numerator.Service, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		numerator: numerator,
		txManager: txManager,
	}
}

// Create assigns a code when missing, resolves the warehouse from the
// parent, validates and persists.
func (s *Service) Create(ctx context.Context, loc *Location) error {
	if err := s.prepareForCreate(ctx, loc); err != nil {
		return err
	}

	if err := loc.Validate(ctx); err != nil {
		return asValidationErr(err)
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, loc); err != nil {
			return fmt.Errorf("create location: %w", err)
		}
		return nil
	})
}

// prepareForCreate handles code generation and parent consistency.
func (s *Service) prepareForCreate(ctx context.Context, loc *Location) error {
	if loc.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("LOC"), nil, time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		loc.Code = code
	}

	// Nested locations inherit the warehouse from their parent.
	if loc.ParentID != nil && loc.WarehouseID == nil {
		parentID, err := id.Parse(*loc.ParentID)
		if err != nil {
			return apperror.NewValidation("invalid parent id").
				WithDetail("field", "parentId")
		}
		parent, err := s.GetByID(ctx, parentID)
		if err != nil {
			return err
		}
		if parent.Kind == KindWarehouse {
			loc.WarehouseID = &parent.ID
		} else {
			loc.WarehouseID = parent.WarehouseID
		}
	}

	return nil
}

// GetByID retrieves a location by ID.
func (s *Service) GetByID(ctx context.Context, locID id.ID) (*Location, error) {
	loc, err := s.repo.GetByID(ctx, locID)
	if err != nil {
		return nil, asLocationErr(err, locID.String())
	}
	return loc, nil
}

// Update validates and persists changes to an existing location.
func (s *Service) Update(ctx context.Context, loc *Location) error {
	if err := loc.Validate(ctx); err != nil {
		return asValidationErr(err)
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, loc); err != nil {
			return fmt.Errorf("update location: %w", err)
		}
		return nil
	})
}

// Delete soft-deletes a location by setting its deletion mark.
func (s *Service) Delete(ctx context.Context, locID id.ID) error {
	if _, err := s.GetByID(ctx, locID); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.SetDeletionMark(ctx, locID, true); err != nil {
			return fmt.Errorf("delete location: %w", err)
		}
		return nil
	})
}

// SetDeletionMark sets or clears the deletion mark.
func (s *Service) SetDeletionMark(ctx context.Context, locID id.ID, marked bool) error {
	err := s.repo.SetDeletionMark(ctx, locID, marked)
	if err != nil {
		return asLocationErr(err, locID.String())
	}
	return nil
}

// List retrieves locations with filtering.
func (s *Service) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Location], error) {
	return s.repo.List(ctx, f)
}

// GetTree retrieves the location hierarchy.
func (s *Service) GetTree(ctx context.Context, rootID *id.ID) ([]*Location, error) {
	return s.repo.GetTree(ctx, rootID)
}

// ResolveWarehouse expands a warehouse into the IDs of every location
// under it, the warehouse itself included. Stock-take snapshots use this
// to scope the count sheet.
func (s *Service) ResolveWarehouse(ctx context.Context, warehouseID id.ID) ([]id.ID, error) {
	wh, err := s.GetByID(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	if wh.Kind != KindWarehouse {
		return nil, apperror.NewValidation("location is not a warehouse").
			WithDetail("location_id", warehouseID.String()).
			WithDetail("kind", string(wh.Kind))
	}

	nested, err := s.repo.ListByWarehouse(ctx, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("list warehouse locations: %w", err)
	}

	ids := make([]id.ID, 0, len(nested)+1)
	seen := map[id.ID]bool{}
	for _, loc := range nested {
		if loc.IsFolder || seen[loc.ID] {
			continue
		}
		seen[loc.ID] = true
		ids = append(ids, loc.ID)
	}
	if !seen[warehouseID] {
		ids = append(ids, warehouseID)
	}
	return ids, nil
}

// asValidationErr keeps structured errors intact and wraps plain ones.
func asValidationErr(err error) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewValidation(err.Error())
}

// asLocationErr remaps repository not-found errors to the catalog name
// clients know.
func asLocationErr(err error, idOrCode string) error {
	if err == nil {
		return nil
	}
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound("location", idOrCode)
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewInternal(err).WithDetail("entity", "location").WithDetail("id", idOrCode)
}
