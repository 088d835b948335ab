package entity

import (
	"time"

	"stockpost/internal/core/id"
	"stockpost/internal/core/types"
)

// RecordType defines entry direction for the stock ledger.
type RecordType string

const (
	// RecordTypeReceipt increases balance
	RecordTypeReceipt RecordType = "receipt"
	// RecordTypeExpense decreases balance
	RecordTypeExpense RecordType = "expense"
)

// EntryBase contains common fields for all stock ledger entries.
// Entries are immutable - they are never updated, only deleted and recreated.
type EntryBase struct {
	// LineID is unique identifier for this ledger line (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	// RecorderID is the document that created this entry
	RecorderID id.ID `db:"recorder_id" json:"recorderId"`

	// RecorderType is the document type (e.g., "Movement", "StockTake")
	RecorderType string `db:"recorder_type" json:"recorderType"`

	// RecorderVersion tracks which posting iteration created this entry
	// Allows efficient cleanup: DELETE WHERE recorder_id = X AND recorder_version < Y
	RecorderVersion int `db:"recorder_version" json:"recorderVersion"`

	// Period is the business date for the entry (for period-based queries)
	Period time.Time `db:"period" json:"period"`

	// RecordType: receipt or expense
	RecordType RecordType `db:"record_type" json:"recordType"`

	// CreatedAt is when the entry was recorded
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewEntryBase creates a new entry base with generated LineID.
func NewEntryBase(recorderID id.ID, recorderType string, recorderVersion int, period time.Time, recordType RecordType) EntryBase {
	return EntryBase{
		LineID:          id.New(),
		RecorderID:      recorderID,
		RecorderType:    recorderType,
		RecorderVersion: recorderVersion,
		Period:          period,
		RecordType:      recordType,
		CreatedAt:       time.Now().UTC(),
	}
}

// LedgerEntry represents an immutable row in the stock ledger.
// Tracks quantity changes for product variants in locations.
type LedgerEntry struct {
	EntryBase

	// Dimensions
	LocationID id.ID  `db:"location_id" json:"locationId"`
	ProductID  id.ID  `db:"product_id" json:"productId"`
	VariantID  *id.ID `db:"variant_id" json:"variantId,omitempty"`

	// Resources
	Quantity types.Quantity `db:"quantity" json:"quantity"`
}

// NewLedgerEntry creates a new stock ledger entry.
func NewLedgerEntry(
	recorderID id.ID,
	recorderType string,
	recorderVersion int,
	period time.Time,
	recordType RecordType,
	locationID, productID id.ID,
	variantID *id.ID,
	quantity types.Quantity,
) LedgerEntry {
	return LedgerEntry{
		EntryBase:  NewEntryBase(recorderID, recorderType, recorderVersion, period, recordType),
		LocationID: locationID,
		ProductID:  productID,
		VariantID:  variantID,
		Quantity:   quantity,
	}
}

// SignedQuantity returns quantity with sign based on record type.
// Receipt = positive, Expense = negative.
func (e *LedgerEntry) SignedQuantity() types.Quantity {
	if e.RecordType == RecordTypeExpense {
		return e.Quantity.Neg()
	}
	return e.Quantity
}

// StockBalance represents the current balance for one ledger key.
// This is a materialized view maintained in the same transaction as entries.
type StockBalance struct {
	// Dimensions
	LocationID id.ID  `db:"location_id" json:"locationId"`
	ProductID  id.ID  `db:"product_id" json:"productId"`
	VariantID  *id.ID `db:"variant_id" json:"variantId,omitempty"`

	// Balances
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// Metadata
	LastEntryAt time.Time `db:"last_entry_at" json:"lastEntryAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}
