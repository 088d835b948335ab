package dto

import (
	"time"

	"stockpost/internal/core/entity"
	"stockpost/internal/core/types"
)

// --- Stock register DTOs ---

// StockBalanceResponse represents a stock balance row.
type StockBalanceResponse struct {
	LocationID  string         `json:"locationId"`
	ProductID   string         `json:"productId"`
	VariantID   *string        `json:"variantId,omitempty"`
	Quantity    types.Quantity `json:"quantity"`
	LastEntryAt time.Time      `json:"lastEntryAt"`
}

// FromStockBalance converts a balance row to response DTO.
func FromStockBalance(b entity.StockBalance) StockBalanceResponse {
	resp := StockBalanceResponse{
		LocationID:  b.LocationID.String(),
		ProductID:   b.ProductID.String(),
		Quantity:    b.Quantity,
		LastEntryAt: b.LastEntryAt,
	}
	if b.VariantID != nil {
		v := b.VariantID.String()
		resp.VariantID = &v
	}
	return resp
}

// StockBalanceListResponse wraps balance rows.
type StockBalanceListResponse struct {
	Items []StockBalanceResponse `json:"items"`
	Count int                    `json:"count"`
}

// LedgerEntryResponse represents one immutable ledger entry.
type LedgerEntryResponse struct {
	LineID       string         `json:"lineId"`
	RecorderID   string         `json:"recorderId"`
	RecorderType string         `json:"recorderType"`
	Period       time.Time      `json:"period"`
	RecordType   string         `json:"recordType"`
	LocationID   string         `json:"locationId"`
	ProductID    string         `json:"productId"`
	VariantID    *string        `json:"variantId,omitempty"`
	Quantity     types.Quantity `json:"quantity"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// FromLedgerEntry converts a ledger entry to response DTO.
func FromLedgerEntry(e entity.LedgerEntry) LedgerEntryResponse {
	resp := LedgerEntryResponse{
		LineID:       e.LineID.String(),
		RecorderID:   e.RecorderID.String(),
		RecorderType: e.RecorderType,
		Period:       e.Period,
		RecordType:   string(e.RecordType),
		LocationID:   e.LocationID.String(),
		ProductID:    e.ProductID.String(),
		Quantity:     e.Quantity,
		CreatedAt:    e.CreatedAt,
	}
	if e.VariantID != nil {
		v := e.VariantID.String()
		resp.VariantID = &v
	}
	return resp
}

// LedgerEntryListResponse wraps ledger entries.
type LedgerEntryListResponse struct {
	Items []LedgerEntryResponse `json:"items"`
	Count int                   `json:"count"`
}

// BalanceAtDateResponse is a point-in-time balance answer.
type BalanceAtDateResponse struct {
	LocationID string         `json:"locationId"`
	ProductID  string         `json:"productId"`
	VariantID  *string        `json:"variantId,omitempty"`
	Date       time.Time      `json:"date"`
	Quantity   types.Quantity `json:"quantity"`
}
