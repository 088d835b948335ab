package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/entity"
	"stockpost/internal/core/id"
	"stockpost/internal/core/types"
)

// memRepo is an in-memory Repository for executor tests.
type memRepo struct {
	mu       sync.Mutex
	balances map[Key]types.Quantity
	entries  []entity.LedgerEntry
}

func newMemRepo() *memRepo {
	return &memRepo{balances: make(map[Key]types.Quantity)}
}

func (r *memRepo) LockBalances(ctx context.Context, keys []Key) (map[Key]types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Key]types.Quantity, len(keys))
	for _, k := range keys {
		if q, ok := r.balances[k]; ok {
			out[k] = q
		}
	}
	return out, nil
}

func (r *memRepo) ApplyDeltas(ctx context.Context, deltas []Delta, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range deltas {
		r.balances[d.Key] += d.Quantity
	}
	return nil
}

func (r *memRepo) InsertEntries(ctx context.Context, entries []entity.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *memRepo) DeleteEntries(ctx context.Context, recorderID id.ID, beforeVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.RecorderID == recorderID && e.RecorderVersion < beforeVersion {
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return nil
}

func (r *memRepo) GetBalance(ctx context.Context, key Key) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[key], nil
}

func (r *memRepo) ListPositiveByLocations(ctx context.Context, locationIDs []id.ID) ([]entity.StockBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.StockBalance
	for k, q := range r.balances {
		if !q.IsPositive() {
			continue
		}
		for _, loc := range locationIDs {
			if k.LocationID == loc {
				out = append(out, entity.StockBalance{
					LocationID: k.LocationID,
					ProductID:  k.ProductID,
					VariantID:  k.Variant(),
					Quantity:   q,
				})
			}
		}
	}
	return out, nil
}

func (r *memRepo) ListEntriesByRecorder(ctx context.Context, recorderID id.ID) ([]entity.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.LedgerEntry
	for _, e := range r.entries {
		if e.RecorderID == recorderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }

func recorder() RecorderRef {
	return RecorderRef{ID: id.New(), Type: "Movement", Version: 1, Period: time.Now().UTC()}
}

func TestExecutor_ReceiveCreatesBalance(t *testing.T) {
	repo := newMemRepo()
	ex := NewExecutor(repo)
	key := Key{LocationID: id.New(), ProductID: id.New()}

	err := ex.Apply(context.Background(), recorder(), []Delta{{Key: key, Quantity: qty(10)}})
	require.NoError(t, err)

	bal, err := ex.Balance(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, qty(10), bal)
	assert.Len(t, repo.entries, 1)
	assert.Equal(t, entity.RecordTypeReceipt, repo.entries[0].RecordType)
}

func TestExecutor_InsufficientStockAbortsAll(t *testing.T) {
	repo := newMemRepo()
	ex := NewExecutor(repo)
	loc := id.New()
	keyA := Key{LocationID: loc, ProductID: id.New()}
	keyB := Key{LocationID: loc, ProductID: id.New()}
	repo.balances[keyA] = qty(10)
	repo.balances[keyB] = qty(100)

	err := ex.Apply(context.Background(), recorder(), []Delta{
		{Key: keyB, Quantity: qty(-5)},
		{Key: keyA, Quantity: qty(-15)},
	})
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, keyA.ProductID.String(), appErr.Details["product_id"])
	assert.Equal(t, 15.0, appErr.Details["requested"])
	assert.Equal(t, 10.0, appErr.Details["available"])

	// Nothing changed, including the key that had enough stock.
	assert.Equal(t, qty(10), repo.balances[keyA])
	assert.Equal(t, qty(100), repo.balances[keyB])
	assert.Empty(t, repo.entries)
}

func TestExecutor_Transfer(t *testing.T) {
	repo := newMemRepo()
	ex := NewExecutor(repo)
	product := id.New()
	from := Key{LocationID: id.New(), ProductID: product}
	to := Key{LocationID: id.New(), ProductID: product}
	repo.balances[from] = qty(10)

	err := ex.Apply(context.Background(), recorder(), []Delta{
		{Key: from, Quantity: qty(-4)},
		{Key: to, Quantity: qty(4)},
	})
	require.NoError(t, err)
	assert.Equal(t, qty(6), repo.balances[from])
	assert.Equal(t, qty(4), repo.balances[to])
}

func TestExecutor_SignedAdjust(t *testing.T) {
	repo := newMemRepo()
	ex := NewExecutor(repo)
	key := Key{LocationID: id.New(), ProductID: id.New()}
	repo.balances[key] = qty(5)

	require.NoError(t, ex.Apply(context.Background(), recorder(), []Delta{{Key: key, Quantity: qty(-3)}}))
	assert.Equal(t, qty(2), repo.balances[key])

	fresh := Key{LocationID: id.New(), ProductID: id.New()}
	require.NoError(t, ex.Apply(context.Background(), recorder(), []Delta{{Key: fresh, Quantity: qty(3)}}))
	assert.Equal(t, qty(3), repo.balances[fresh])
}

func TestExecutor_ZeroDeltaIsNoOp(t *testing.T) {
	repo := newMemRepo()
	ex := NewExecutor(repo)
	key := Key{LocationID: id.New(), ProductID: id.New()}

	err := ex.Apply(context.Background(), recorder(), []Delta{{Key: key, Quantity: qty(0)}})
	require.NoError(t, err)
	assert.Empty(t, repo.entries)
	assert.Empty(t, repo.balances)
}

func TestExecutor_AggregatesSameKey(t *testing.T) {
	repo := newMemRepo()
	ex := NewExecutor(repo)
	key := Key{LocationID: id.New(), ProductID: id.New()}
	repo.balances[key] = qty(10)

	// Net effect -2, even though one delta alone exceeds nothing.
	err := ex.Apply(context.Background(), recorder(), []Delta{
		{Key: key, Quantity: qty(-7)},
		{Key: key, Quantity: qty(5)},
	})
	require.NoError(t, err)
	assert.Equal(t, qty(8), repo.balances[key])
	assert.Len(t, repo.entries, 2)
}

func TestExecutor_RoundTrip(t *testing.T) {
	repo := newMemRepo()
	ex := NewExecutor(repo)
	key := Key{LocationID: id.New(), ProductID: id.New()}
	repo.balances[key] = qty(2)

	require.NoError(t, ex.Apply(context.Background(), recorder(), []Delta{{Key: key, Quantity: qty(9)}}))
	require.NoError(t, ex.Apply(context.Background(), recorder(), []Delta{{Key: key, Quantity: qty(-9)}}))
	assert.Equal(t, qty(2), repo.balances[key])
}

func TestExecutor_RepostReplacesOldEntries(t *testing.T) {
	repo := newMemRepo()
	ex := NewExecutor(repo)
	key := Key{LocationID: id.New(), ProductID: id.New()}
	rec := recorder()

	require.NoError(t, ex.Apply(context.Background(), rec, []Delta{{Key: key, Quantity: qty(5)}}))

	rec.Version = 2
	require.NoError(t, ex.Apply(context.Background(), rec, []Delta{{Key: key, Quantity: qty(5)}}))

	entries, err := repo.ListEntriesByRecorder(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].RecorderVersion)
}

func TestExecutor_VariantKeysAreDistinct(t *testing.T) {
	repo := newMemRepo()
	ex := NewExecutor(repo)
	loc, product := id.New(), id.New()
	plain := Key{LocationID: loc, ProductID: product}
	variant := Key{LocationID: loc, ProductID: product, VariantID: id.New()}
	repo.balances[plain] = qty(10)

	err := ex.Apply(context.Background(), recorder(), []Delta{{Key: variant, Quantity: qty(-1)}})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, variant.VariantID.String(), appErr.Details["variant_id"])
}
