// Package movement provides the stock Movement document.
package movement

import (
	"context"
	"time"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/entity"
	"stockpost/internal/core/id"
	"stockpost/internal/core/types"
	"stockpost/internal/domain/ledger"
)

// Type defines the stock effect of a movement document.
type Type string

const (
	TypeReceive  Type = "receive"
	TypeIssue    Type = "issue"
	TypeTransfer Type = "transfer"
	TypeAdjust   Type = "adjust"
	TypeReturn   Type = "return"
)

// Valid reports whether t is a known movement type.
func (t Type) Valid() bool {
	switch t {
	case TypeReceive, TypeIssue, TypeTransfer, TypeAdjust, TypeReturn:
		return true
	}
	return false
}

// Status represents the lifecycle state of a movement document.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusPosted    Status = "posted"
	StatusCancelled Status = "cancelled"
)

// transitions encodes the legal state machine as an explicit table.
// POSTED, REJECTED and CANCELLED are terminal.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusSubmitted, StatusCancelled},
	StatusSubmitted: {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:  {StatusPosted, StatusCancelled},
	StatusRejected:  {StatusCancelled},
	StatusPosted:    {},
	StatusCancelled: {},
}

// CanTransitionTo reports whether the state machine permits s -> next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Movement represents a stock movement document.
// Lines are replaceable only in draft; once posted the document is
// immutable history.
type Movement struct {
	entity.Document

	Type   Type   `db:"type" json:"type"`
	Status Status `db:"status" json:"status"`

	// Back-link when auto-generated (e.g. from a stock-take)
	RefType *string `db:"ref_type" json:"refType,omitempty"`
	RefID   *id.ID  `db:"ref_id" json:"refId,omitempty"`

	ApprovedBy *string    `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	PostedAt   *time.Time `db:"posted_at" json:"postedAt,omitempty"`

	Lines []Line `db:"-" json:"lines"`
}

// Line represents one movement line.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID id.ID  `db:"product_id" json:"productId"`
	VariantID *id.ID `db:"variant_id" json:"variantId,omitempty"`

	FromLocationID *id.ID `db:"from_location_id" json:"fromLocationId,omitempty"`
	ToLocationID   *id.ID `db:"to_location_id" json:"toLocationId,omitempty"`

	// Quantity is signed for adjust movements, positive otherwise
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	UnitCost *types.Money `db:"unit_cost" json:"unitCost,omitempty"`
	Note     string       `db:"note" json:"note,omitempty"`
}

// New creates a new movement document in draft.
func New(movementType Type, createdBy string) *Movement {
	doc := entity.NewDocument()
	doc.CreatedBy = createdBy
	return &Movement{
		Document: doc,
		Type:     movementType,
		Status:   StatusDraft,
		Lines:    make([]Line, 0),
	}
}

// ReplaceLines replaces all lines wholesale. Line numbers and line IDs
// are reassigned; repeated calls with the same set are equivalent.
func (m *Movement) ReplaceLines(lines []Line) {
	replaced := make([]Line, len(lines))
	for i, line := range lines {
		line.LineID = id.New()
		line.LineNo = i + 1
		replaced[i] = line
	}
	m.Lines = replaced
}

// AppendNote concatenates free text onto the document note.
func (m *Movement) AppendNote(text string) {
	if text == "" {
		return
	}
	if m.Note == "" {
		m.Note = text
		return
	}
	m.Note = m.Note + "; " + text
}

// Validate checks invariants that need no database access.
func (m *Movement) Validate(ctx context.Context) error {
	if err := m.Document.Validate(ctx); err != nil {
		return err
	}

	if !m.Type.Valid() {
		return apperror.NewValidation("unknown movement type").
			WithDetail("field", "type").
			WithDetail("value", string(m.Type))
	}

	if len(m.Lines) == 0 {
		return apperror.NewValidation("movement requires at least one line").
			WithDetail("field", "lines")
	}

	for i, line := range m.Lines {
		if err := m.validateLine(line); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("lineNo", i+1)
			}
			return err
		}
	}

	return nil
}

// validateLine checks line shape against the document type.
func (m *Movement) validateLine(line Line) error {
	if id.IsNil(line.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("field", "productId")
	}

	switch m.Type {
	case TypeReceive, TypeReturn:
		if line.ToLocationID == nil {
			return apperror.NewValidation("destination location is required").
				WithDetail("field", "toLocationId")
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "quantity")
		}
	case TypeIssue:
		if line.FromLocationID == nil {
			return apperror.NewValidation("source location is required").
				WithDetail("field", "fromLocationId")
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "quantity")
		}
	case TypeTransfer:
		if line.FromLocationID == nil {
			return apperror.NewValidation("source location is required").
				WithDetail("field", "fromLocationId")
		}
		if line.ToLocationID == nil {
			return apperror.NewValidation("destination location is required").
				WithDetail("field", "toLocationId")
		}
		if *line.FromLocationID == *line.ToLocationID {
			return apperror.NewValidation("source and destination must differ").
				WithDetail("field", "toLocationId")
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "quantity")
		}
	case TypeAdjust:
		// Signed quantity, zero is a valid no-op.
		if line.ToLocationID == nil {
			return apperror.NewValidation("adjustment location is required").
				WithDetail("field", "toLocationId")
		}
	}

	return nil
}

// --- State transitions ---

func (m *Movement) transition(next Status, action string) error {
	if !m.Status.CanTransitionTo(next) {
		return apperror.NewInvalidState(m.GetDocumentType(), string(m.Status), action)
	}
	m.Status = next
	m.Touch()
	return nil
}

// Submit moves draft to submitted.
func (m *Movement) Submit(ctx context.Context) error {
	if m.Status != StatusDraft {
		return apperror.NewInvalidState(m.GetDocumentType(), string(m.Status), "submit")
	}
	if err := m.Validate(ctx); err != nil {
		return err
	}
	return m.transition(StatusSubmitted, "submit")
}

// Approve records the approver and moves submitted to approved.
// Approval has no balance effect; posting is a separate step.
func (m *Movement) Approve(approver string) error {
	if m.Status != StatusSubmitted {
		return apperror.NewInvalidState(m.GetDocumentType(), string(m.Status), "approve")
	}
	now := time.Now().UTC()
	m.ApprovedBy = &approver
	m.ApprovedAt = &now
	return m.transition(StatusApproved, "approve")
}

// Reject moves submitted to rejected, appending the reason to the note.
func (m *Movement) Reject(reason string) error {
	if m.Status != StatusSubmitted {
		return apperror.NewInvalidState(m.GetDocumentType(), string(m.Status), "reject")
	}
	m.AppendNote(reason)
	return m.transition(StatusRejected, "reject")
}

// MarkPostedNow stamps posting time and moves approved to posted.
// The balance effect itself is applied by the service within the same
// transaction.
func (m *Movement) MarkPostedNow() error {
	if m.Status != StatusApproved {
		return apperror.NewInvalidState(m.GetDocumentType(), string(m.Status), "post")
	}
	now := time.Now().UTC()
	m.PostedAt = &now
	m.MarkPosted()
	return m.transition(StatusPosted, "post")
}

// Cancel moves any non-posted, non-cancelled document to cancelled.
func (m *Movement) Cancel(reason string) error {
	if m.Status == StatusPosted || m.Status == StatusCancelled {
		return apperror.NewInvalidState(m.GetDocumentType(), string(m.Status), "cancel")
	}
	m.AppendNote(reason)
	m.Status = StatusCancelled
	m.Touch()
	return nil
}

// CanModify restricts line edits to draft documents.
func (m *Movement) CanModify() error {
	if m.Status != StatusDraft {
		return apperror.NewInvalidState(m.GetDocumentType(), string(m.Status), "update")
	}
	return nil
}

func (m *Movement) GetDocumentType() string { return "Movement" }

// Deltas translates document lines into signed ledger deltas,
// dispatched by movement type.
func (m *Movement) Deltas() []ledger.Delta {
	deltas := make([]ledger.Delta, 0, len(m.Lines))

	for _, line := range m.Lines {
		variant := id.Nil()
		if line.VariantID != nil {
			variant = *line.VariantID
		}

		switch m.Type {
		case TypeReceive, TypeReturn:
			deltas = append(deltas, ledger.Delta{
				Key:      ledger.Key{LocationID: *line.ToLocationID, ProductID: line.ProductID, VariantID: variant},
				Quantity: line.Quantity,
			})
		case TypeIssue:
			deltas = append(deltas, ledger.Delta{
				Key:      ledger.Key{LocationID: *line.FromLocationID, ProductID: line.ProductID, VariantID: variant},
				Quantity: line.Quantity.Neg(),
			})
		case TypeTransfer:
			deltas = append(deltas,
				ledger.Delta{
					Key:      ledger.Key{LocationID: *line.FromLocationID, ProductID: line.ProductID, VariantID: variant},
					Quantity: line.Quantity.Neg(),
				},
				ledger.Delta{
					Key:      ledger.Key{LocationID: *line.ToLocationID, ProductID: line.ProductID, VariantID: variant},
					Quantity: line.Quantity,
				},
			)
		case TypeAdjust:
			deltas = append(deltas, ledger.Delta{
				Key:      ledger.Key{LocationID: *line.ToLocationID, ProductID: line.ProductID, VariantID: variant},
				Quantity: line.Quantity,
			})
		}
	}

	return deltas
}
