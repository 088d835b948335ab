package stocktake

import (
	"context"
	"fmt"
	"time"

	"stockpost/internal/core/apperror"
	appctx "stockpost/internal/core/context"
	"stockpost/internal/core/entity"
	"stockpost/internal/core/id"
	"stockpost/internal/core/numerator"
	"stockpost/internal/core/tx"
	"stockpost/internal/core/types"
	"stockpost/internal/domain"
	"stockpost/internal/domain/audit"
	"stockpost/internal/domain/documents/movement"
	"stockpost/internal/domain/notify"
	"stockpost/pkg/logger"
)

// BalanceSource lists on-hand balances for the count sheet snapshot.
// Satisfied by ledger.Repository.
type BalanceSource interface {
	ListPositiveByLocations(ctx context.Context, locationIDs []id.ID) ([]entity.StockBalance, error)
}

// LocationResolver expands a warehouse into the location set it covers
// (the warehouse itself plus all descendant locations).
type LocationResolver interface {
	ResolveWarehouse(ctx context.Context, warehouseID id.ID) ([]id.ID, error)
}

// AdjustmentPoster persists a pre-approved reconciliation movement and
// applies its stock effect inside the caller's transaction.
// Satisfied by movement.Service.
type AdjustmentPoster interface {
	CreatePosted(ctx context.Context, doc *movement.Movement) error
}

// CountUpdate carries one counted line from the count sheet.
type CountUpdate struct {
	LineID     id.ID          `json:"lineId"`
	CountedQty types.Quantity `json:"countedQty"`
	Note       string         `json:"note,omitempty"`
}

// Service provides business operations for stock-take documents.
// Approval routes the reconciliation through the movement posting path,
// so the ledger has a single write entry point.
type Service struct {
	repo      Repository
	balances  BalanceSource
	locations LocationResolver
	poster    AdjustmentPoster
	numerator numerator.Generator
	txManager tx.Manager
	auditSink audit.Sink
	notifier  notify.Sink
}

// NewService creates a new stock-take service.
func NewService(
	repo Repository,
	balances BalanceSource,
	locations LocationResolver,
	poster AdjustmentPoster,
	numerator numerator.Generator,
	txManager tx.Manager,
	auditSink audit.Sink,
	notifier notify.Sink,
) *Service {
	return &Service{
		repo:      repo,
		balances:  balances,
		locations: locations,
		poster:    poster,
		numerator: numerator,
		txManager: txManager,
		auditSink: auditSink,
		notifier:  notifier,
	}
}

// Create snapshots every positive balance in the warehouse into a new
// draft count sheet.
func (s *Service) Create(ctx context.Context, warehouseID id.ID, note string) (*StockTake, error) {
	doc := New(warehouseID, appctx.GetUserID(ctx))
	doc.Note = note

	audit.EnrichCreatedByDirect(ctx, &doc.CreatedBy, &doc.UpdatedBy)

	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}

	locationIDs, err := s.locations.ResolveWarehouse(ctx, warehouseID)
	if err != nil {
		return nil, err
	}

	balances, err := s.balances.ListPositiveByLocations(ctx, locationIDs)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	for _, bal := range balances {
		doc.AddLine(bal.ProductID, bal.VariantID, bal.LocationID, bal.Quantity)
	}

	number, err := s.allocateNumber(ctx)
	if err != nil {
		return nil, err
	}
	doc.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, doc, audit.ActionCreate, map[string]any{
		"number":       doc.Number,
		"warehouse_id": doc.WarehouseID,
		"lines":        len(doc.Lines),
	})

	logger.Info(ctx, "stock take created",
		"id", doc.ID, "number", doc.Number, "lines", len(doc.Lines))
	return doc, nil
}

// GetByID retrieves a stock-take with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*StockTake, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines

	return doc, nil
}

// Delete soft-deletes a draft stock-take.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	if doc.Status != StatusDraft {
		return apperror.NewInvalidState(doc.GetDocumentType(), string(doc.Status), "delete")
	}

	return s.repo.Delete(ctx, docID)
}

// Start moves a draft stock-take to in_progress.
func (s *Service) Start(ctx context.Context, docID id.ID) error {
	countedBy := appctx.GetUserID(ctx)

	var doc *StockTake
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.getForUpdateWithLines(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.Start(countedBy); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, doc, audit.ActionStart, map[string]any{"counted_by": countedBy})
	return nil
}

// SaveCounts records counted quantities for a batch of lines.
// Safe to call repeatedly; later counts for a line overwrite earlier ones.
func (s *Service) SaveCounts(ctx context.Context, docID id.ID, updates []CountUpdate) error {
	if len(updates) == 0 {
		return apperror.NewValidation("at least one count is required")
	}

	var doc *StockTake
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.getForUpdateWithLines(ctx, docID)
		if err != nil {
			return err
		}
		for _, upd := range updates {
			if err := doc.SetCount(upd.LineID, upd.CountedQty, upd.Note); err != nil {
				return err
			}
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, doc, audit.ActionCount, map[string]any{"count_updates": len(updates)})
	return nil
}

// Complete computes variances and moves the stock-take to completed.
// Approvers are notified of the result.
func (s *Service) Complete(ctx context.Context, docID id.ID) error {
	var doc *StockTake
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.getForUpdateWithLines(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.Complete(); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}

		s.publish(ctx, notify.Event{
			Topic:         notify.TopicStockTakeCompleted,
			RecipientRole: notify.RoleApprover,
			Payload: map[string]any{
				"stock_take_id":  doc.ID,
				"number":         doc.Number,
				"variance_lines": len(doc.VarianceLines()),
			},
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, doc, audit.ActionComplete, map[string]any{
		"variance_lines": len(doc.VarianceLines()),
	})
	logger.Info(ctx, "stock take completed",
		"id", doc.ID, "number", doc.Number, "variance_lines", len(doc.VarianceLines()))
	return nil
}

// Approve accepts the count as truth. When counted quantities differ
// from the snapshot, a posted adjustment movement is synthesized in the
// same transaction so the ledger matches the count exactly.
func (s *Service) Approve(ctx context.Context, docID id.ID) error {
	approver := appctx.GetUserID(ctx)

	var doc *StockTake
	var adjustment *movement.Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.getForUpdateWithLines(ctx, docID)
		if err != nil {
			return err
		}

		if err := doc.MarkApproved(approver); err != nil {
			return err
		}

		if variances := doc.VarianceLines(); len(variances) > 0 {
			adjustment = s.buildAdjustment(doc, variances, approver)
			if err := s.poster.CreatePosted(ctx, adjustment); err != nil {
				return err
			}
		}

		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	payload := map[string]any{"approved_by": approver}
	if adjustment != nil {
		payload["adjustment_id"] = adjustment.ID
		payload["adjustment_number"] = adjustment.Number
	}
	s.recordAudit(ctx, doc, audit.ActionApprove, payload)

	logger.Info(ctx, "stock take approved",
		"id", doc.ID, "number", doc.Number, "adjusted", adjustment != nil)
	return nil
}

// Cancel moves a non-approved stock-take to cancelled.
func (s *Service) Cancel(ctx context.Context, docID id.ID) error {
	var doc *StockTake
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.getForUpdateWithLines(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.Cancel(); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, doc, audit.ActionCancel, nil)
	return nil
}

// List retrieves stock-takes with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockTake], error) {
	return s.repo.List(ctx, filter)
}

// --- helpers ---

// buildAdjustment turns the variance lines into an adjustment movement
// referencing this stock-take. Each line targets the counted location
// with the signed variance as quantity.
func (s *Service) buildAdjustment(doc *StockTake, variances []Line, approver string) *movement.Movement {
	adj := movement.New(movement.TypeAdjust, approver)
	adj.Date = time.Now().UTC()
	adj.Note = fmt.Sprintf("Reconciliation for stock take %s", doc.Number)

	refType := doc.GetDocumentType()
	refID := doc.ID
	adj.RefType = &refType
	adj.RefID = &refID

	lines := make([]movement.Line, 0, len(variances))
	for _, v := range variances {
		locationID := v.LocationID
		lines = append(lines, movement.Line{
			ProductID:    v.ProductID,
			VariantID:    v.VariantID,
			ToLocationID: &locationID,
			Quantity:     *v.Variance,
			Note:         v.Note,
		})
	}
	adj.ReplaceLines(lines)
	return adj
}

func (s *Service) getForUpdateWithLines(ctx context.Context, docID id.ID) (*StockTake, error) {
	doc, err := s.repo.GetForUpdate(ctx, docID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.GetLines(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines
	return doc, nil
}

func (s *Service) allocateNumber(ctx context.Context) (string, error) {
	cfg := numerator.DefaultConfig(NumberPrefix)
	number, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: NumeratorStrategy}, time.Now())
	if err != nil {
		return "", fmt.Errorf("generate number: %w", err)
	}
	return number, nil
}

func (s *Service) recordAudit(ctx context.Context, doc *StockTake, action audit.Action, payload map[string]any) {
	if err := s.auditSink.Record(ctx, doc.GetDocumentType(), doc.ID, action, payload); err != nil {
		logger.Warn(ctx, "audit record failed", "action", action, "id", doc.ID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, event notify.Event) {
	if err := s.notifier.Publish(ctx, event); err != nil {
		logger.Warn(ctx, "notification publish failed", "topic", event.Topic, "error", err)
	}
}
