package dto

import (
	"time"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/core/types"
	"stockpost/internal/domain/documents/stocktake"
)

// --- Request DTOs ---

// CreateStockTakeRequest represents a request to start a new stock take.
// Lines are snapshotted server-side from current balances.
type CreateStockTakeRequest struct {
	WarehouseID string `json:"warehouseId" binding:"required"`
	Note        string `json:"note,omitempty"`
}

// SaveCountsRequest carries a batch of counted quantities.
type SaveCountsRequest struct {
	Counts []CountRequest `json:"counts" binding:"required,min=1,dive"`
}

// CountRequest is one counted line.
type CountRequest struct {
	LineID     string         `json:"lineId" binding:"required"`
	CountedQty types.Quantity `json:"countedQty"`
	Note       string         `json:"note,omitempty"`
}

// ToUpdates converts the request to domain count updates.
func (r *SaveCountsRequest) ToUpdates() ([]stocktake.CountUpdate, error) {
	updates := make([]stocktake.CountUpdate, 0, len(r.Counts))
	for i, c := range r.Counts {
		lineID, err := id.Parse(c.LineID)
		if err != nil {
			return nil, apperror.NewValidation("invalid lineId").WithDetail("index", i)
		}
		updates = append(updates, stocktake.CountUpdate{
			LineID:     lineID,
			CountedQty: c.CountedQty,
			Note:       c.Note,
		})
	}
	return updates, nil
}

// --- Response DTOs ---

// StockTakeResponse represents a stock take in API responses.
type StockTakeResponse struct {
	DocumentResponse
	WarehouseID string                  `json:"warehouseId"`
	Status      string                  `json:"status"`
	CountedBy   *string                 `json:"countedBy,omitempty"`
	StartedAt   *time.Time              `json:"startedAt,omitempty"`
	CompletedAt *time.Time              `json:"completedAt,omitempty"`
	ApprovedBy  *string                 `json:"approvedBy,omitempty"`
	ApprovedAt  *time.Time              `json:"approvedAt,omitempty"`
	Lines       []StockTakeLineResponse `json:"lines,omitempty"`
}

// StockTakeLineResponse represents a line in API responses.
type StockTakeLineResponse struct {
	LineID     string          `json:"lineId"`
	LineNo     int             `json:"lineNo"`
	ProductID  string          `json:"productId"`
	VariantID  *string         `json:"variantId,omitempty"`
	LocationID string          `json:"locationId"`
	SystemQty  types.Quantity  `json:"systemQty"`
	CountedQty *types.Quantity `json:"countedQty,omitempty"`
	Variance   *types.Quantity `json:"variance,omitempty"`
	Note       string          `json:"note,omitempty"`
}

// FromStockTake converts domain entity to response DTO.
func FromStockTake(doc *stocktake.StockTake) *StockTakeResponse {
	resp := &StockTakeResponse{
		DocumentResponse: FromDocument(doc.Document),
		WarehouseID:      doc.WarehouseID.String(),
		Status:           string(doc.Status),
		CountedBy:        doc.CountedBy,
		StartedAt:        doc.StartedAt,
		CompletedAt:      doc.CompletedAt,
		ApprovedBy:       doc.ApprovedBy,
		ApprovedAt:       doc.ApprovedAt,
	}

	resp.Lines = make([]StockTakeLineResponse, len(doc.Lines))
	for i, line := range doc.Lines {
		lr := StockTakeLineResponse{
			LineID:     line.LineID.String(),
			LineNo:     line.LineNo,
			ProductID:  line.ProductID.String(),
			LocationID: line.LocationID.String(),
			SystemQty:  line.SystemQty,
			CountedQty: line.CountedQty,
			Variance:   line.Variance,
			Note:       line.Note,
		}
		if line.VariantID != nil {
			v := line.VariantID.String()
			lr.VariantID = &v
		}
		resp.Lines[i] = lr
	}

	return resp
}

// StockTakeListResponse represents a list of stock takes.
type StockTakeListResponse struct {
	Items      []*StockTakeResponse `json:"items"`
	TotalCount int                  `json:"totalCount"`
	Limit      int                  `json:"limit"`
	Offset     int                  `json:"offset"`
}
