package dto

import (
	"time"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/core/types"
	"stockpost/internal/domain/documents/movement"
)

// --- Request DTOs ---

// CreateMovementRequest represents a request to create a movement document.
type CreateMovementRequest struct {
	Type  string                `json:"type" binding:"required"`
	Date  *time.Time            `json:"date,omitempty"`
	Note  string                `json:"note,omitempty"`
	Lines []MovementLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// MovementLineRequest represents a line in create/update requests.
type MovementLineRequest struct {
	ProductID      string          `json:"productId" binding:"required"`
	VariantID      *string         `json:"variantId,omitempty"`
	FromLocationID *string         `json:"fromLocationId,omitempty"`
	ToLocationID   *string         `json:"toLocationId,omitempty"`
	Quantity       types.Quantity  `json:"quantity"`
	UnitCost       *types.Money    `json:"unitCost,omitempty"`
	Note           string          `json:"note,omitempty"`
}

// ToEntity converts request to domain entity. Referential validation
// happens in the domain; only parse failures are surfaced here.
func (r *CreateMovementRequest) ToEntity() (*movement.Movement, error) {
	doc := movement.New(movement.Type(r.Type), "")
	if r.Date != nil {
		doc.Date = *r.Date
	} else {
		doc.Date = time.Now().UTC()
	}
	doc.Note = r.Note

	lines, err := mapMovementLines(r.Lines)
	if err != nil {
		return nil, err
	}
	doc.ReplaceLines(lines)

	return doc, nil
}

// UpdateMovementRequest represents a request to update a draft movement.
// Lines are replaced wholesale when provided.
type UpdateMovementRequest struct {
	Date  *time.Time            `json:"date,omitempty"`
	Note  *string               `json:"note,omitempty"`
	Lines []MovementLineRequest `json:"lines,omitempty"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdateMovementRequest) ApplyTo(doc *movement.Movement) error {
	if r.Date != nil {
		doc.Date = *r.Date
	}
	if r.Note != nil {
		doc.Note = *r.Note
	}
	if r.Lines != nil {
		lines, err := mapMovementLines(r.Lines)
		if err != nil {
			return err
		}
		doc.ReplaceLines(lines)
	}
	return nil
}

func mapMovementLines(reqs []MovementLineRequest) ([]movement.Line, error) {
	lines := make([]movement.Line, 0, len(reqs))
	for i, lr := range reqs {
		productID, err := id.Parse(lr.ProductID)
		if err != nil {
			return nil, apperror.NewValidation("invalid productId").WithDetail("lineNo", i+1)
		}

		line := movement.Line{
			ProductID: productID,
			Quantity:  lr.Quantity,
			UnitCost:  lr.UnitCost,
			Note:      lr.Note,
		}

		if lr.VariantID != nil {
			variantID, err := id.Parse(*lr.VariantID)
			if err != nil {
				return nil, apperror.NewValidation("invalid variantId").WithDetail("lineNo", i+1)
			}
			line.VariantID = &variantID
		}
		if lr.FromLocationID != nil {
			locID, err := id.Parse(*lr.FromLocationID)
			if err != nil {
				return nil, apperror.NewValidation("invalid fromLocationId").WithDetail("lineNo", i+1)
			}
			line.FromLocationID = &locID
		}
		if lr.ToLocationID != nil {
			locID, err := id.Parse(*lr.ToLocationID)
			if err != nil {
				return nil, apperror.NewValidation("invalid toLocationId").WithDetail("lineNo", i+1)
			}
			line.ToLocationID = &locID
		}

		lines = append(lines, line)
	}
	return lines, nil
}

// --- Response DTOs ---

// MovementResponse represents a movement document in API responses.
type MovementResponse struct {
	DocumentResponse
	Type       string                 `json:"type"`
	Status     string                 `json:"status"`
	RefType    *string                `json:"refType,omitempty"`
	RefID      *string                `json:"refId,omitempty"`
	ApprovedBy *string                `json:"approvedBy,omitempty"`
	ApprovedAt *time.Time             `json:"approvedAt,omitempty"`
	PostedAt   *time.Time             `json:"postedAt,omitempty"`
	Lines      []MovementLineResponse `json:"lines,omitempty"`
}

// MovementLineResponse represents a line in API responses.
type MovementLineResponse struct {
	LineID         string         `json:"lineId"`
	LineNo         int            `json:"lineNo"`
	ProductID      string         `json:"productId"`
	VariantID      *string        `json:"variantId,omitempty"`
	FromLocationID *string        `json:"fromLocationId,omitempty"`
	ToLocationID   *string        `json:"toLocationId,omitempty"`
	Quantity       types.Quantity `json:"quantity"`
	UnitCost       *types.Money   `json:"unitCost,omitempty"`
	Note           string         `json:"note,omitempty"`
}

// FromMovement converts domain entity to response DTO.
func FromMovement(doc *movement.Movement) *MovementResponse {
	resp := &MovementResponse{
		DocumentResponse: FromDocument(doc.Document),
		Type:             string(doc.Type),
		Status:           string(doc.Status),
		RefType:          doc.RefType,
		ApprovedBy:       doc.ApprovedBy,
		ApprovedAt:       doc.ApprovedAt,
		PostedAt:         doc.PostedAt,
	}

	if doc.RefID != nil {
		refID := doc.RefID.String()
		resp.RefID = &refID
	}

	resp.Lines = make([]MovementLineResponse, len(doc.Lines))
	for i, line := range doc.Lines {
		lr := MovementLineResponse{
			LineID:    line.LineID.String(),
			LineNo:    line.LineNo,
			ProductID: line.ProductID.String(),
			Quantity:  line.Quantity,
			UnitCost:  line.UnitCost,
			Note:      line.Note,
		}
		if line.VariantID != nil {
			v := line.VariantID.String()
			lr.VariantID = &v
		}
		if line.FromLocationID != nil {
			v := line.FromLocationID.String()
			lr.FromLocationID = &v
		}
		if line.ToLocationID != nil {
			v := line.ToLocationID.String()
			lr.ToLocationID = &v
		}
		resp.Lines[i] = lr
	}

	return resp
}

// MovementListResponse represents a list of movements.
type MovementListResponse struct {
	Items      []*MovementResponse `json:"items"`
	TotalCount int                 `json:"totalCount"`
	Limit      int                 `json:"limit"`
	Offset     int                 `json:"offset"`
}
