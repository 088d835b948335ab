package stocktake

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpost/internal/core/apperror"
	appctx "stockpost/internal/core/context"
	"stockpost/internal/core/entity"
	"stockpost/internal/core/id"
	"stockpost/internal/core/numerator"
	"stockpost/internal/core/types"
	"stockpost/internal/domain"
	"stockpost/internal/domain/audit"
	"stockpost/internal/domain/documents/movement"
	"stockpost/internal/domain/ledger"
	"stockpost/internal/domain/notify"
	"stockpost/internal/domain/rules"
)

// --- in-memory fakes ---

type serialTxManager struct {
	mu sync.Mutex
}

func (m *serialTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

type memStockTakeRepo struct {
	mu    sync.Mutex
	docs  map[id.ID]StockTake
	lines map[id.ID][]Line
}

func newMemStockTakeRepo() *memStockTakeRepo {
	return &memStockTakeRepo{
		docs:  make(map[id.ID]StockTake),
		lines: make(map[id.ID][]Line),
	}
}

func (r *memStockTakeRepo) Create(ctx context.Context, doc *StockTake) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = *doc
	return nil
}

func (r *memStockTakeRepo) GetByID(ctx context.Context, docID id.ID) (*StockTake, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("StockTake", docID.String())
	}
	copied := doc
	return &copied, nil
}

func (r *memStockTakeRepo) GetForUpdate(ctx context.Context, docID id.ID) (*StockTake, error) {
	return r.GetByID(ctx, docID)
}

func (r *memStockTakeRepo) Update(ctx context.Context, doc *StockTake) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; !ok {
		return apperror.NewNotFound("StockTake", doc.ID.String())
	}
	r.docs[doc.ID] = *doc
	return nil
}

func (r *memStockTakeRepo) Delete(ctx context.Context, docID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, docID)
	delete(r.lines, docID)
	return nil
}

func (r *memStockTakeRepo) GetLines(ctx context.Context, docID id.ID) ([]Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Line(nil), r.lines[docID]...), nil
}

func (r *memStockTakeRepo) SaveLines(ctx context.Context, docID id.ID, lines []Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[docID] = append([]Line(nil), lines...)
	return nil
}

func (r *memStockTakeRepo) List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockTake], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := domain.ListResult[*StockTake]{}
	for docID := range r.docs {
		doc := r.docs[docID]
		result.Items = append(result.Items, &doc)
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

type memMovementRepo struct {
	mu    sync.Mutex
	docs  map[id.ID]movement.Movement
	lines map[id.ID][]movement.Line
}

func newMemMovementRepo() *memMovementRepo {
	return &memMovementRepo{
		docs:  make(map[id.ID]movement.Movement),
		lines: make(map[id.ID][]movement.Line),
	}
}

func (r *memMovementRepo) Create(ctx context.Context, doc *movement.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = *doc
	return nil
}

func (r *memMovementRepo) GetByID(ctx context.Context, docID id.ID) (*movement.Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("Movement", docID.String())
	}
	copied := doc
	return &copied, nil
}

func (r *memMovementRepo) GetForUpdate(ctx context.Context, docID id.ID) (*movement.Movement, error) {
	return r.GetByID(ctx, docID)
}

func (r *memMovementRepo) Update(ctx context.Context, doc *movement.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = *doc
	return nil
}

func (r *memMovementRepo) Delete(ctx context.Context, docID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, docID)
	delete(r.lines, docID)
	return nil
}

func (r *memMovementRepo) GetLines(ctx context.Context, docID id.ID) ([]movement.Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]movement.Line(nil), r.lines[docID]...), nil
}

func (r *memMovementRepo) SaveLines(ctx context.Context, docID id.ID, lines []movement.Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[docID] = append([]movement.Line(nil), lines...)
	return nil
}

func (r *memMovementRepo) List(ctx context.Context, filter movement.ListFilter) (domain.ListResult[*movement.Movement], error) {
	return domain.ListResult[*movement.Movement]{}, nil
}

func (r *memMovementRepo) all() []movement.Movement {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]movement.Movement, 0, len(r.docs))
	for docID := range r.docs {
		doc := r.docs[docID]
		doc.Lines = append([]movement.Line(nil), r.lines[docID]...)
		out = append(out, doc)
	}
	return out
}

type memLedgerRepo struct {
	mu       sync.Mutex
	balances map[ledger.Key]types.Quantity
	entries  []entity.LedgerEntry
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{balances: make(map[ledger.Key]types.Quantity)}
}

func (r *memLedgerRepo) LockBalances(ctx context.Context, keys []ledger.Key) (map[ledger.Key]types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[ledger.Key]types.Quantity, len(keys))
	for _, k := range keys {
		if q, ok := r.balances[k]; ok {
			out[k] = q
		}
	}
	return out, nil
}

func (r *memLedgerRepo) ApplyDeltas(ctx context.Context, deltas []ledger.Delta, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range deltas {
		r.balances[d.Key] += d.Quantity
	}
	return nil
}

func (r *memLedgerRepo) InsertEntries(ctx context.Context, entries []entity.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *memLedgerRepo) DeleteEntries(ctx context.Context, recorderID id.ID, beforeVersion int) error {
	return nil
}

func (r *memLedgerRepo) GetBalance(ctx context.Context, key ledger.Key) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[key], nil
}

func (r *memLedgerRepo) ListPositiveByLocations(ctx context.Context, locationIDs []id.ID) ([]entity.StockBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[id.ID]bool, len(locationIDs))
	for _, locID := range locationIDs {
		wanted[locID] = true
	}

	var out []entity.StockBalance
	for key, quantity := range r.balances {
		if !wanted[key.LocationID] || !quantity.IsPositive() {
			continue
		}
		out = append(out, entity.StockBalance{
			LocationID: key.LocationID,
			ProductID:  key.ProductID,
			VariantID:  key.Variant(),
			Quantity:   quantity,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProductID.String() < out[j].ProductID.String()
	})
	return out, nil
}

func (r *memLedgerRepo) ListEntriesByRecorder(ctx context.Context, recorderID id.ID) ([]entity.LedgerEntry, error) {
	return nil, nil
}

type stubLocations struct {
	locations []id.ID
}

func (s *stubLocations) ResolveWarehouse(ctx context.Context, warehouseID id.ID) ([]id.ID, error) {
	return s.locations, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Publish(ctx context.Context, event notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

// --- fixtures ---

type fixture struct {
	svc          *Service
	ledgerRepo   *memLedgerRepo
	movementRepo *memMovementRepo
	notifier     *recordingNotifier
	warehouse    id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	guard, err := rules.NewPostingGuard("")
	require.NoError(t, err)

	warehouse := id.New()
	ledgerRepo := newMemLedgerRepo()
	movementRepo := newMemMovementRepo()
	notifier := &recordingNotifier{}
	txManager := &serialTxManager{}

	poster := movement.NewService(
		movementRepo,
		ledger.NewExecutor(ledgerRepo),
		&numerator.MockGenerator{},
		txManager,
		guard,
		audit.NopSink{},
		notify.NopSink{},
	)

	svc := NewService(
		newMemStockTakeRepo(),
		ledgerRepo,
		&stubLocations{locations: []id.ID{warehouse}},
		poster,
		&numerator.MockGenerator{},
		txManager,
		audit.NopSink{},
		notifier,
	)

	return &fixture{
		svc:          svc,
		ledgerRepo:   ledgerRepo,
		movementRepo: movementRepo,
		notifier:     notifier,
		warehouse:    warehouse,
	}
}

func userCtx(userID string) context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{UserID: userID})
}

func (f *fixture) setBalance(product id.ID, quantity types.Quantity) ledger.Key {
	key := ledger.Key{LocationID: f.warehouse, ProductID: product}
	f.ledgerRepo.mu.Lock()
	defer f.ledgerRepo.mu.Unlock()
	f.ledgerRepo.balances[key] = quantity
	return key
}

func (f *fixture) balance(key ledger.Key) types.Quantity {
	f.ledgerRepo.mu.Lock()
	defer f.ledgerRepo.mu.Unlock()
	return f.ledgerRepo.balances[key]
}

// --- tests ---

func TestService_CreateSnapshotsPositiveBalances(t *testing.T) {
	f := newFixture(t)
	f.setBalance(id.New(), qty(8))
	f.setBalance(id.New(), qty(5))
	f.setBalance(id.New(), qty(0)) // zero stays off the count sheet

	otherLoc := id.New()
	f.ledgerRepo.balances[ledger.Key{LocationID: otherLoc, ProductID: id.New()}] = qty(3)

	doc, err := f.svc.Create(userCtx("planner"), f.warehouse, "quarterly count")
	require.NoError(t, err)

	assert.Equal(t, "MOCK-2026-00001", doc.Number)
	assert.Equal(t, StatusDraft, doc.Status)
	require.Len(t, doc.Lines, 2)
	for _, line := range doc.Lines {
		assert.Equal(t, f.warehouse, line.LocationID)
		assert.Nil(t, line.CountedQty)
		assert.Nil(t, line.Variance)
	}
}

func TestService_ApproveSynthesizesAdjustment(t *testing.T) {
	f := newFixture(t)
	product := id.New()
	key := f.setBalance(product, qty(8))

	ctx := userCtx("boss")
	doc, err := f.svc.Create(ctx, f.warehouse, "")
	require.NoError(t, err)
	require.Len(t, doc.Lines, 1)

	require.NoError(t, f.svc.Start(ctx, doc.ID))
	require.NoError(t, f.svc.SaveCounts(ctx, doc.ID, []CountUpdate{
		{LineID: doc.Lines[0].LineID, CountedQty: qty(6)},
	}))
	require.NoError(t, f.svc.Complete(ctx, doc.ID))
	require.NoError(t, f.svc.Approve(ctx, doc.ID))

	stored, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, stored.Status)
	require.NotNil(t, stored.Lines[0].Variance)
	assert.Equal(t, qty(-2), *stored.Lines[0].Variance)

	// ledger now matches the count
	assert.Equal(t, qty(6), f.balance(key))

	adjustments := f.movementRepo.all()
	require.Len(t, adjustments, 1)
	adj := adjustments[0]
	assert.Equal(t, movement.TypeAdjust, adj.Type)
	assert.Equal(t, movement.StatusPosted, adj.Status)
	assert.True(t, adj.Posted)
	require.NotNil(t, adj.RefType)
	assert.Equal(t, "StockTake", *adj.RefType)
	require.NotNil(t, adj.RefID)
	assert.Equal(t, doc.ID, *adj.RefID)
	require.Len(t, adj.Lines, 1)
	assert.Equal(t, product, adj.Lines[0].ProductID)
	assert.Equal(t, qty(-2), adj.Lines[0].Quantity)
	require.NotNil(t, adj.Lines[0].ToLocationID)
	assert.Equal(t, f.warehouse, *adj.Lines[0].ToLocationID)
}

func TestService_ApproveZeroVarianceSkipsAdjustment(t *testing.T) {
	f := newFixture(t)
	key := f.setBalance(id.New(), qty(8))

	ctx := userCtx("boss")
	doc, err := f.svc.Create(ctx, f.warehouse, "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Start(ctx, doc.ID))
	require.NoError(t, f.svc.SaveCounts(ctx, doc.ID, []CountUpdate{
		{LineID: doc.Lines[0].LineID, CountedQty: qty(8)},
	}))
	require.NoError(t, f.svc.Complete(ctx, doc.ID))
	require.NoError(t, f.svc.Approve(ctx, doc.ID))

	stored, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, stored.Status)
	assert.Equal(t, qty(8), f.balance(key))
	assert.Empty(t, f.movementRepo.all())
}

func TestService_CompleteRequiresAllCounted(t *testing.T) {
	f := newFixture(t)
	f.setBalance(id.New(), qty(8))
	f.setBalance(id.New(), qty(5))

	ctx := userCtx("counter")
	doc, err := f.svc.Create(ctx, f.warehouse, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.Start(ctx, doc.ID))

	require.NoError(t, f.svc.SaveCounts(ctx, doc.ID, []CountUpdate{
		{LineID: doc.Lines[0].LineID, CountedQty: qty(8)},
	}))

	err = f.svc.Complete(ctx, doc.ID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Equal(t, 1, appErr.Details["uncounted_lines"])
	assert.Empty(t, f.notifier.events)
}

func TestService_CompleteNotifiesApprovers(t *testing.T) {
	f := newFixture(t)
	f.setBalance(id.New(), qty(8))

	ctx := userCtx("counter")
	doc, err := f.svc.Create(ctx, f.warehouse, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.Start(ctx, doc.ID))
	require.NoError(t, f.svc.SaveCounts(ctx, doc.ID, []CountUpdate{
		{LineID: doc.Lines[0].LineID, CountedQty: qty(5)},
	}))
	require.NoError(t, f.svc.Complete(ctx, doc.ID))

	require.Len(t, f.notifier.events, 1)
	event := f.notifier.events[0]
	assert.Equal(t, notify.TopicStockTakeCompleted, event.Topic)
	assert.Equal(t, notify.RoleApprover, event.RecipientRole)
	assert.Equal(t, doc.ID, event.Payload["stock_take_id"])
	assert.Equal(t, 1, event.Payload["variance_lines"])
}

func TestService_SaveCountsOverwrites(t *testing.T) {
	f := newFixture(t)
	f.setBalance(id.New(), qty(10))

	ctx := userCtx("counter")
	doc, err := f.svc.Create(ctx, f.warehouse, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.Start(ctx, doc.ID))

	lineID := doc.Lines[0].LineID
	require.NoError(t, f.svc.SaveCounts(ctx, doc.ID, []CountUpdate{
		{LineID: lineID, CountedQty: qty(7)},
	}))
	require.NoError(t, f.svc.SaveCounts(ctx, doc.ID, []CountUpdate{
		{LineID: lineID, CountedQty: qty(9), Note: "recount"},
	}))

	stored, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Lines[0].CountedQty)
	assert.Equal(t, qty(9), *stored.Lines[0].CountedQty)
	assert.Equal(t, "recount", stored.Lines[0].Note)
}

func TestService_SaveCountsRejectsEmptyBatch(t *testing.T) {
	f := newFixture(t)
	err := f.svc.SaveCounts(userCtx("counter"), id.New(), nil)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestService_ApproveRequiresCompleted(t *testing.T) {
	f := newFixture(t)
	f.setBalance(id.New(), qty(8))

	ctx := userCtx("boss")
	doc, err := f.svc.Create(ctx, f.warehouse, "")
	require.NoError(t, err)

	err = f.svc.Approve(ctx, doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
	assert.Empty(t, f.movementRepo.all())
}

func TestService_CancelAfterStart(t *testing.T) {
	f := newFixture(t)
	f.setBalance(id.New(), qty(8))

	ctx := userCtx("counter")
	doc, err := f.svc.Create(ctx, f.warehouse, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.Start(ctx, doc.ID))
	require.NoError(t, f.svc.Cancel(ctx, doc.ID))

	stored, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)
}
