package ledger

import (
	"context"
	"time"

	"stockpost/internal/core/entity"
	"stockpost/internal/core/id"
	"stockpost/internal/core/types"
)

// Repository defines storage operations for the stock ledger.
// All mutating methods must be called inside a transaction managed by
// the caller; LockBalances acquires row locks held until commit.
type Repository interface {
	// LockBalances reads current balances for keys under FOR UPDATE.
	// Missing rows are absent from the result (treated as zero).
	// Keys must be passed in a deterministic order to avoid deadlocks
	// between concurrent posting transactions.
	LockBalances(ctx context.Context, keys []Key) (map[Key]types.Quantity, error)

	// ApplyDeltas upserts balance rows by adding each delta's quantity.
	// Rows are created on first increment.
	ApplyDeltas(ctx context.Context, deltas []Delta, now time.Time) error

	// InsertEntries bulk-inserts immutable ledger entry rows.
	InsertEntries(ctx context.Context, entries []entity.LedgerEntry) error

	// DeleteEntries removes entries of older posting iterations of a recorder.
	DeleteEntries(ctx context.Context, recorderID id.ID, beforeVersion int) error

	// GetBalance returns the current balance for one key (zero if absent).
	GetBalance(ctx context.Context, key Key) (types.Quantity, error)

	// ListPositiveByLocations returns all balance rows with quantity > 0
	// in the given locations, ordered by location, product, variant.
	ListPositiveByLocations(ctx context.Context, locationIDs []id.ID) ([]entity.StockBalance, error)

	// ListEntriesByRecorder returns entries created by a document, in line order.
	ListEntriesByRecorder(ctx context.Context, recorderID id.ID) ([]entity.LedgerEntry, error)
}
