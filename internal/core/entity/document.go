package entity

import (
	"context"
	"time"

	"stockpost/internal/core/apperror"
)

// Document is the base shape of business transactions such as movements
// and stock takes.
type Document struct {
	BaseDocument

	// Number is auto-generated and unique within type and period.
	Number string `db:"number" json:"number"`

	// Date is the business date the document takes effect on.
	Date time.Time `db:"date" json:"date"`

	// Posted reports whether the document's effects are in the ledger.
	Posted bool `db:"posted" json:"posted"`

	// PostedVersion increments on every posting. Ledger entries carry
	// it so entries from a superseded posting can be told apart.
	PostedVersion int `db:"posted_version" json:"postedVersion"`

	// Note is a free-text user comment.
	Note string `db:"note" json:"note,omitempty"`
}

// NewDocument creates a document with a generated ID dated now.
func NewDocument() Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Date:         time.Now().UTC(),
	}
}

// Validate checks invariants that need no database access.
func (d *Document) Validate(ctx context.Context) error {
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	return nil
}

// CanModify rejects edits to posted documents.
func (d *Document) CanModify() error {
	if d.Posted {
		return apperror.NewBusinessRule(
			apperror.CodeDocumentPosted,
			"Cannot modify posted document.",
		).WithDetail("document_id", d.ID.String())
	}
	return nil
}

// MarkPosted flips the posted flag and advances the posting version.
func (d *Document) MarkPosted() {
	d.Posted = true
	d.PostedVersion++
	d.Touch()
}

// IsBackdated reports whether the business date lies before today.
func (d *Document) IsBackdated() bool {
	return d.Date.Before(time.Now().UTC().Truncate(24 * time.Hour))
}
