package movement

import (
	"context"
	"fmt"
	"time"

	"stockpost/internal/core/apperror"
	appctx "stockpost/internal/core/context"
	"stockpost/internal/core/id"
	"stockpost/internal/core/numerator"
	"stockpost/internal/core/tx"
	"stockpost/internal/domain"
	"stockpost/internal/domain/audit"
	"stockpost/internal/domain/ledger"
	"stockpost/internal/domain/notify"
	"stockpost/internal/domain/rules"
	"stockpost/pkg/logger"
)

// Service provides business operations for movement documents.
// Posting runs the ledger executor and the status update in one
// transaction; audit and notification failures never fail a transition.
type Service struct {
	repo      Repository
	executor  *ledger.Executor
	numerator numerator.Generator
	txManager tx.Manager
	guard     *rules.PostingGuard
	auditSink audit.Sink
	notifier  notify.Sink
}

// NewService creates a new movement service.
func NewService(
	repo Repository,
	executor *ledger.Executor,
	numerator numerator.Generator,
	txManager tx.Manager,
	guard *rules.PostingGuard,
	auditSink audit.Sink,
	notifier notify.Sink,
) *Service {
	return &Service{
		repo:      repo,
		executor:  executor,
		numerator: numerator,
		txManager: txManager,
		guard:     guard,
		auditSink: auditSink,
		notifier:  notifier,
	}
}

// Create creates a new movement document in draft.
func (s *Service) Create(ctx context.Context, doc *Movement) error {
	audit.EnrichCreatedByDirect(ctx, &doc.CreatedBy, &doc.UpdatedBy)

	if err := doc.Validate(ctx); err != nil {
		return err
	}

	if doc.Number == "" {
		number, err := s.allocateNumber(ctx, NumberPrefix)
		if err != nil {
			return err
		}
		doc.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, doc, audit.ActionCreate, map[string]any{
		"number": doc.Number,
		"type":   doc.Type,
	})

	logger.Info(ctx, "movement created", "id", doc.ID, "number", doc.Number, "type", doc.Type)
	return nil
}

// GetByID retrieves a movement with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Movement, error) {
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

// Update replaces lines and metadata of a draft movement.
func (s *Service) Update(ctx context.Context, doc *Movement) error {
	if err := doc.CanModify(); err != nil {
		return err
	}

	audit.EnrichUpdatedByDirect(ctx, &doc.UpdatedBy)

	if err := doc.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, doc, audit.ActionUpdate, map[string]any{"lines": len(doc.Lines)})
	return nil
}

// Delete soft-deletes a draft movement.
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

// Submit moves a draft movement to submitted and notifies approvers.
func (s *Service) Submit(ctx context.Context, docID id.ID) error {
	var doc *Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.getForUpdateWithLines(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.Submit(ctx); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}

		s.publish(ctx, notify.Event{
			Topic:         notify.TopicMovementSubmitted,
			RecipientRole: notify.RoleApprover,
			Payload: map[string]any{
				"movement_id": doc.ID,
				"number":      doc.Number,
				"type":        doc.Type,
			},
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, doc, audit.ActionSubmit, nil)
	logger.Info(ctx, "movement submitted", "id", doc.ID, "number", doc.Number)
	return nil
}

// Approve moves a submitted movement to approved, recording the approver.
func (s *Service) Approve(ctx context.Context, docID id.ID) error {
	approver := appctx.GetUserID(ctx)

	var doc *Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.getForUpdateWithLines(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.Approve(approver); err != nil {
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

	s.recordAudit(ctx, doc, audit.ActionApprove, map[string]any{"approved_by": approver})
	return nil
}

// Reject moves a submitted movement to rejected.
func (s *Service) Reject(ctx context.Context, docID id.ID, reason string) error {
	var doc *Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.getForUpdateWithLines(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.Reject(reason); err != nil {
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

	s.recordAudit(ctx, doc, audit.ActionReject, map[string]any{"reason": reason})
	return nil
}

// Cancel moves a non-posted movement to cancelled.
func (s *Service) Cancel(ctx context.Context, docID id.ID, reason string) error {
	var doc *Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.getForUpdateWithLines(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.Cancel(reason); err != nil {
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

	s.recordAudit(ctx, doc, audit.ActionCancel, map[string]any{"reason": reason})
	return nil
}

// Post applies the movement's stock effect and marks it posted.
// The ledger deltas and the status update commit or roll back together.
func (s *Service) Post(ctx context.Context, docID id.ID) error {
	var doc *Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.getForUpdateWithLines(ctx, docID)
		if err != nil {
			return err
		}

		if err := s.guard.Check(s.guardFacts(doc)); err != nil {
			return err
		}

		if err := doc.MarkPostedNow(); err != nil {
			return err
		}

		rec := ledger.RecorderRef{
			ID:      doc.ID,
			Type:    doc.GetDocumentType(),
			Version: doc.PostedVersion,
			Period:  doc.Date,
		}
		if err := s.executor.Apply(ctx, rec, doc.Deltas()); err != nil {
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

	s.recordAudit(ctx, doc, audit.ActionPost, map[string]any{"lines": len(doc.Lines)})
	logger.Info(ctx, "movement posted", "id", doc.ID, "number", doc.Number)
	return nil
}

// CreatePosted persists an internally generated, pre-approved movement
// and applies its stock effect in one step. Must run inside the caller's
// transaction (stock-take approval uses this to synthesize adjustments).
func (s *Service) CreatePosted(ctx context.Context, doc *Movement) error {
	audit.EnrichCreatedByDirect(ctx, &doc.CreatedBy, &doc.UpdatedBy)

	if err := doc.Validate(ctx); err != nil {
		return err
	}

	if doc.Number == "" {
		number, err := s.allocateNumber(ctx, AdjustmentNumberPrefix)
		if err != nil {
			return err
		}
		doc.Number = number
	}

	if err := s.guard.Check(s.guardFacts(doc)); err != nil {
		return err
	}

	// Internally generated documents skip the review states.
	approver := appctx.GetUserID(ctx)
	now := time.Now().UTC()
	doc.Status = StatusPosted
	doc.ApprovedBy = &approver
	doc.ApprovedAt = &now
	doc.PostedAt = &now
	doc.MarkPosted()

	if err := s.repo.Create(ctx, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
		return fmt.Errorf("save lines: %w", err)
	}

	rec := ledger.RecorderRef{
		ID:      doc.ID,
		Type:    doc.GetDocumentType(),
		Version: doc.PostedVersion,
		Period:  doc.Date,
	}
	if err := s.executor.Apply(ctx, rec, doc.Deltas()); err != nil {
		return err
	}

	s.recordAudit(ctx, doc, audit.ActionPost, map[string]any{
		"number":   doc.Number,
		"ref_type": doc.RefType,
		"ref_id":   doc.RefID,
	})
	return nil
}

// List retrieves movements with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Movement], error) {
	return s.repo.List(ctx, filter)
}

// --- helpers ---

func (s *Service) getForUpdateWithLines(ctx context.Context, docID id.ID) (*Movement, error) {
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

func (s *Service) allocateNumber(ctx context.Context, prefix string) (string, error) {
	cfg := numerator.DefaultConfig(prefix)
	number, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: NumeratorStrategy}, time.Now())
	if err != nil {
		return "", fmt.Errorf("generate number: %w", err)
	}
	return number, nil
}

func (s *Service) guardFacts(doc *Movement) rules.Facts {
	total := 0.0
	for _, line := range doc.Lines {
		total += line.Quantity.Abs().Float64()
	}
	return rules.Facts{
		DocType:       doc.GetDocumentType(),
		LineCount:     len(doc.Lines),
		TotalQuantity: total,
		Backdated:     doc.IsBackdated(),
		AutoGenerated: doc.RefID != nil,
	}
}

func (s *Service) recordAudit(ctx context.Context, doc *Movement, action audit.Action, payload map[string]any) {
	if err := s.auditSink.Record(ctx, doc.GetDocumentType(), doc.ID, action, payload); err != nil {
		logger.Warn(ctx, "audit record failed", "action", action, "id", doc.ID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, event notify.Event) {
	if err := s.notifier.Publish(ctx, event); err != nil {
		logger.Warn(ctx, "notification publish failed", "topic", event.Topic, "error", err)
	}
}
