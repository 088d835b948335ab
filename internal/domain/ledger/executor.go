package ledger

import (
	"bytes"
	"context"
	"sort"
	"time"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/entity"
	"stockpost/internal/core/id"
	"stockpost/internal/core/types"
	"stockpost/pkg/logger"
)

// Executor applies sets of signed deltas to the balance store atomically.
// It must run inside the caller's transaction: the state update of the
// recording document and the balance mutation commit or roll back together.
type Executor struct {
	repo Repository
}

// NewExecutor creates a posting executor over the given repository.
func NewExecutor(repo Repository) *Executor {
	return &Executor{repo: repo}
}

// Apply records deltas for a document and updates balances.
//
// Behavior:
//   - zero deltas are dropped (a zero adjustment is a valid no-op)
//   - deltas are aggregated per key; balance rows are locked in a
//     deterministic key order before the sufficiency check
//   - any decrement that would drive a balance negative aborts the whole
//     set with InsufficientStock
//   - entries of older posting iterations of the same recorder are removed
//     first, so re-running a posting iteration is safe
func (e *Executor) Apply(ctx context.Context, rec RecorderRef, deltas []Delta) error {
	effective := make([]Delta, 0, len(deltas))
	for _, d := range deltas {
		if !d.Quantity.IsZero() {
			effective = append(effective, d)
		}
	}
	if len(effective) == 0 {
		logger.Debug(ctx, "posting with no effective deltas",
			"recorder_id", rec.ID, "recorder_type", rec.Type)
		return nil
	}

	// Aggregate per key. Two lines of the same document may touch the same
	// key; plain addition keeps the result order-independent.
	sums := make(map[Key]types.Quantity, len(effective))
	for _, d := range effective {
		sums[d.Key] += d.Quantity
	}

	keys := sortedKeys(sums)

	locked, err := e.repo.LockBalances(ctx, keys)
	if err != nil {
		return apperror.NewInternal(err)
	}

	for _, key := range keys {
		available := locked[key]
		if next := available + sums[key]; next.IsNegative() {
			return insufficientStock(key, sums[key].Neg(), available)
		}
	}

	if err := e.repo.DeleteEntries(ctx, rec.ID, rec.Version); err != nil {
		return apperror.NewInternal(err)
	}

	entries := make([]entity.LedgerEntry, 0, len(effective))
	for _, d := range effective {
		recordType := entity.RecordTypeReceipt
		qty := d.Quantity
		if qty.IsNegative() {
			recordType = entity.RecordTypeExpense
			qty = qty.Abs()
		}
		entries = append(entries, entity.NewLedgerEntry(
			rec.ID, rec.Type, rec.Version, rec.Period, recordType,
			d.Key.LocationID, d.Key.ProductID, d.Key.Variant(), qty,
		))
	}
	if err := e.repo.InsertEntries(ctx, entries); err != nil {
		return apperror.NewInternal(err)
	}

	aggregated := make([]Delta, 0, len(keys))
	for _, key := range keys {
		if sums[key].IsZero() {
			continue
		}
		aggregated = append(aggregated, Delta{Key: key, Quantity: sums[key]})
	}
	if err := e.repo.ApplyDeltas(ctx, aggregated, time.Now().UTC()); err != nil {
		return apperror.NewInternal(err)
	}

	logger.Info(ctx, "ledger deltas applied",
		"recorder_id", rec.ID,
		"recorder_type", rec.Type,
		"entries", len(entries),
		"keys", len(aggregated),
	)
	return nil
}

// Balance returns the current on-hand quantity for a key.
func (e *Executor) Balance(ctx context.Context, key Key) (types.Quantity, error) {
	return e.repo.GetBalance(ctx, key)
}

func insufficientStock(key Key, requested, available types.Quantity) error {
	variant := ""
	if !id.IsNil(key.VariantID) {
		variant = key.VariantID.String()
	}
	return apperror.NewInsufficientStock(
		key.ProductID.String(),
		variant,
		requested.Float64(),
		available.Float64(),
	).WithDetail("location_id", key.LocationID.String())
}

// sortedKeys orders keys by (location, product, variant) byte order.
// Deterministic lock order prevents deadlocks between concurrent posts.
func sortedKeys(sums map[Key]types.Quantity) []Key {
	keys := make([]Key, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if c := bytes.Compare(a.LocationID[:], b.LocationID[:]); c != 0 {
			return c < 0
		}
		if c := bytes.Compare(a.ProductID[:], b.ProductID[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(a.VariantID[:], b.VariantID[:]) < 0
	})
	return keys
}
