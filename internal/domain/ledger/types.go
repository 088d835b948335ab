// Package ledger implements the stock ledger posting executor.
// It is the single write path for quantity-on-hand balances: document
// services hand it signed deltas inside their own transaction and it
// records immutable entries, enforces non-negative stock and updates
// the materialized balance rows.
package ledger

import (
	"time"

	"stockpost/internal/core/id"
	"stockpost/internal/core/types"
)

// Key identifies one balance row.
// VariantID is id.Nil when the product has no variants.
type Key struct {
	LocationID id.ID
	ProductID  id.ID
	VariantID  id.ID
}

// Variant returns the variant as a nullable pointer for persistence.
func (k Key) Variant() *id.ID {
	if id.IsNil(k.VariantID) {
		return nil
	}
	v := k.VariantID
	return &v
}

// Delta is one signed quantity change against a balance key.
type Delta struct {
	Key      Key
	Quantity types.Quantity
}

// RecorderRef identifies the document a set of deltas originates from.
type RecorderRef struct {
	ID      id.ID
	Type    string
	Version int
	Period  time.Time
}
