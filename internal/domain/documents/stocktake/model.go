// Package stocktake provides the StockTake document (physical recount).
package stocktake

import (
	"context"
	"time"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/entity"
	"stockpost/internal/core/id"
	"stockpost/internal/core/types"
)

// Status represents the lifecycle state of a stock-take document.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusApproved   Status = "approved"
	StatusCancelled  Status = "cancelled"
)

// transitions encodes the legal state machine as an explicit table.
// CANCELLED is reachable from every state except APPROVED.
var transitions = map[Status][]Status{
	StatusDraft:      {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {StatusApproved, StatusCancelled},
	StatusApproved:   {},
	StatusCancelled:  {},
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

// StockTake represents a physical recount of one warehouse.
// Lines snapshot the system quantity at creation; counted quantities are
// recorded incrementally while IN_PROGRESS.
type StockTake struct {
	entity.Document

	WarehouseID id.ID  `db:"warehouse_id" json:"warehouseId"`
	Status      Status `db:"status" json:"status"`

	CountedBy   *string    `db:"counted_by" json:"countedBy,omitempty"`
	StartedAt   *time.Time `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	ApprovedBy  *string    `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt  *time.Time `db:"approved_at" json:"approvedAt,omitempty"`

	Lines []Line `db:"-" json:"lines"`
}

// Line represents one counted balance key.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID  id.ID  `db:"product_id" json:"productId"`
	VariantID  *id.ID `db:"variant_id" json:"variantId,omitempty"`
	LocationID id.ID  `db:"location_id" json:"locationId"`

	// SystemQty is the on-hand snapshot at creation, immutable
	SystemQty types.Quantity `db:"system_qty" json:"systemQty"`

	// CountedQty stays nil until the line is counted
	CountedQty *types.Quantity `db:"counted_qty" json:"countedQty,omitempty"`

	// Variance = CountedQty - SystemQty, computed on completion
	Variance *types.Quantity `db:"variance" json:"variance,omitempty"`

	Note string `db:"note" json:"note,omitempty"`
}

// New creates a stock-take document in draft.
func New(warehouseID id.ID, createdBy string) *StockTake {
	doc := entity.NewDocument()
	doc.CreatedBy = createdBy
	return &StockTake{
		Document:    doc,
		WarehouseID: warehouseID,
		Status:      StatusDraft,
		Lines:       make([]Line, 0),
	}
}

// AddLine snapshots one balance key into the count sheet.
func (st *StockTake) AddLine(productID id.ID, variantID *id.ID, locationID id.ID, systemQty types.Quantity) {
	st.Lines = append(st.Lines, Line{
		LineID:     id.New(),
		LineNo:     len(st.Lines) + 1,
		ProductID:  productID,
		VariantID:  variantID,
		LocationID: locationID,
		SystemQty:  systemQty,
	})
}

// Validate checks invariants that need no database access.
func (st *StockTake) Validate(ctx context.Context) error {
	if err := st.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(st.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}

	return nil
}

func (st *StockTake) GetDocumentType() string { return "StockTake" }

func (st *StockTake) transition(next Status, action string) error {
	if !st.Status.CanTransitionTo(next) {
		return apperror.NewInvalidState(st.GetDocumentType(), string(st.Status), action)
	}
	st.Status = next
	st.Touch()
	return nil
}

// Start moves draft to in_progress, recording who counts.
func (st *StockTake) Start(countedBy string) error {
	if st.Status != StatusDraft {
		return apperror.NewInvalidState(st.GetDocumentType(), string(st.Status), "start")
	}
	now := time.Now().UTC()
	st.CountedBy = &countedBy
	st.StartedAt = &now
	return st.transition(StatusInProgress, "start")
}

// SetCount records the counted quantity for one line.
// Repeated calls overwrite the previous count (upsert semantics).
func (st *StockTake) SetCount(lineID id.ID, counted types.Quantity, note string) error {
	if st.Status != StatusInProgress {
		return apperror.NewInvalidState(st.GetDocumentType(), string(st.Status), "count")
	}
	if counted.IsNegative() {
		return apperror.NewValidation("counted quantity cannot be negative").
			WithDetail("field", "countedQty")
	}

	for i := range st.Lines {
		if st.Lines[i].LineID == lineID {
			qty := counted
			st.Lines[i].CountedQty = &qty
			if note != "" {
				st.Lines[i].Note = note
			}
			return nil
		}
	}

	return apperror.NewNotFound("StockTakeLine", lineID.String())
}

// UncountedLines returns how many lines still lack a counted quantity.
func (st *StockTake) UncountedLines() int {
	n := 0
	for _, line := range st.Lines {
		if line.CountedQty == nil {
			n++
		}
	}
	return n
}

// Complete computes variances and moves in_progress to completed.
// Every line must be counted first.
func (st *StockTake) Complete() error {
	if st.Status != StatusInProgress {
		return apperror.NewInvalidState(st.GetDocumentType(), string(st.Status), "complete")
	}

	if uncounted := st.UncountedLines(); uncounted > 0 {
		return apperror.NewValidation("all lines must be counted before completion").
			WithDetail("uncounted_lines", uncounted)
	}

	for i := range st.Lines {
		variance := *st.Lines[i].CountedQty - st.Lines[i].SystemQty
		st.Lines[i].Variance = &variance
	}

	now := time.Now().UTC()
	st.CompletedAt = &now
	return st.transition(StatusCompleted, "complete")
}

// VarianceLines returns the lines whose counted quantity differs from
// the snapshot. Only valid after completion.
func (st *StockTake) VarianceLines() []Line {
	var out []Line
	for _, line := range st.Lines {
		if line.Variance != nil && !line.Variance.IsZero() {
			out = append(out, line)
		}
	}
	return out
}

// MarkApproved moves completed to approved, recording the approver.
// The reconciliation movement is synthesized by the service.
func (st *StockTake) MarkApproved(approver string) error {
	if st.Status != StatusCompleted {
		return apperror.NewInvalidState(st.GetDocumentType(), string(st.Status), "approve")
	}
	now := time.Now().UTC()
	st.ApprovedBy = &approver
	st.ApprovedAt = &now
	return st.transition(StatusApproved, "approve")
}

// Cancel moves any non-approved stock-take to cancelled.
func (st *StockTake) Cancel() error {
	if st.Status == StatusApproved || st.Status == StatusCancelled {
		return apperror.NewInvalidState(st.GetDocumentType(), string(st.Status), "cancel")
	}
	st.Status = StatusCancelled
	st.Touch()
	return nil
}
