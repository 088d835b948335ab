package movement

import (
	"context"
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
	"stockpost/internal/domain/ledger"
	"stockpost/internal/domain/notify"
	"stockpost/internal/domain/rules"
)

// --- in-memory fakes ---

// serialTxManager serializes transactions with a mutex, mimicking the
// row-lock serialization concurrent posts get from the database.
type serialTxManager struct {
	mu sync.Mutex
}

func (m *serialTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

type memMovementRepo struct {
	mu    sync.Mutex
	docs  map[id.ID]Movement
	lines map[id.ID][]Line
}

func newMemMovementRepo() *memMovementRepo {
	return &memMovementRepo{
		docs:  make(map[id.ID]Movement),
		lines: make(map[id.ID][]Line),
	}
}

func (r *memMovementRepo) Create(ctx context.Context, doc *Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = *doc
	return nil
}

func (r *memMovementRepo) GetByID(ctx context.Context, docID id.ID) (*Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("Movement", docID.String())
	}
	copied := doc
	return &copied, nil
}

func (r *memMovementRepo) GetForUpdate(ctx context.Context, docID id.ID) (*Movement, error) {
	return r.GetByID(ctx, docID)
}

func (r *memMovementRepo) Update(ctx context.Context, doc *Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; !ok {
		return apperror.NewNotFound("Movement", doc.ID.String())
	}
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

func (r *memMovementRepo) GetLines(ctx context.Context, docID id.ID) ([]Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Line(nil), r.lines[docID]...), nil
}

func (r *memMovementRepo) SaveLines(ctx context.Context, docID id.ID, lines []Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[docID] = append([]Line(nil), lines...)
	return nil
}

func (r *memMovementRepo) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Movement], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := domain.ListResult[*Movement]{}
	for docID := range r.docs {
		doc := r.docs[docID]
		result.Items = append(result.Items, &doc)
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
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
	return nil, nil
}

func (r *memLedgerRepo) ListEntriesByRecorder(ctx context.Context, recorderID id.ID) ([]entity.LedgerEntry, error) {
	return nil, nil
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
	svc        *Service
	ledgerRepo *memLedgerRepo
	notifier   *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	guard, err := rules.NewPostingGuard("")
	require.NoError(t, err)

	ledgerRepo := newMemLedgerRepo()
	notifier := &recordingNotifier{}
	svc := NewService(
		newMemMovementRepo(),
		ledger.NewExecutor(ledgerRepo),
		&numerator.MockGenerator{},
		&serialTxManager{},
		guard,
		audit.NopSink{},
		notifier,
	)
	return &fixture{svc: svc, ledgerRepo: ledgerRepo, notifier: notifier}
}

func userCtx(userID string) context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{UserID: userID})
}

func (f *fixture) mustCreate(t *testing.T, mtype Type, lines []Line) *Movement {
	t.Helper()
	doc := New(mtype, "tester")
	doc.ReplaceLines(lines)
	require.NoError(t, f.svc.Create(context.Background(), doc))
	return doc
}

func (f *fixture) mustPost(t *testing.T, docID id.ID) {
	t.Helper()
	ctx := userCtx("approver-1")
	require.NoError(t, f.svc.Submit(ctx, docID))
	require.NoError(t, f.svc.Approve(ctx, docID))
	require.NoError(t, f.svc.Post(ctx, docID))
}

func (f *fixture) balance(key ledger.Key) types.Quantity {
	f.ledgerRepo.mu.Lock()
	defer f.ledgerRepo.mu.Unlock()
	return f.ledgerRepo.balances[key]
}

// --- tests ---

func TestService_CreateAllocatesNumber(t *testing.T) {
	f := newFixture(t)
	doc := f.mustCreate(t, TypeReceive, []Line{{
		ProductID: id.New(), ToLocationID: ptr(id.New()), Quantity: qty(10),
	}})
	assert.Equal(t, "MOCK-2026-00001", doc.Number)
	assert.Equal(t, StatusDraft, doc.Status)
}

func TestService_PostReceive(t *testing.T) {
	f := newFixture(t)
	product, loc := id.New(), id.New()
	doc := f.mustCreate(t, TypeReceive, []Line{{
		ProductID: product, ToLocationID: ptr(loc), Quantity: qty(10),
	}})

	f.mustPost(t, doc.ID)

	key := ledger.Key{LocationID: loc, ProductID: product}
	assert.Equal(t, qty(10), f.balance(key))

	stored, err := f.svc.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPosted, stored.Status)
	assert.True(t, stored.Posted)
}

func TestService_PostIssueInsufficient(t *testing.T) {
	f := newFixture(t)
	product, loc := id.New(), id.New()
	key := ledger.Key{LocationID: loc, ProductID: product}
	f.ledgerRepo.balances[key] = qty(10)

	doc := f.mustCreate(t, TypeIssue, []Line{{
		ProductID: product, FromLocationID: ptr(loc), Quantity: qty(15),
	}})

	ctx := userCtx("approver-1")
	require.NoError(t, f.svc.Submit(ctx, doc.ID))
	require.NoError(t, f.svc.Approve(ctx, doc.ID))

	err := f.svc.Post(ctx, doc.ID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)

	// balance and status both unchanged
	assert.Equal(t, qty(10), f.balance(key))
	stored, err := f.svc.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, stored.Status)
	assert.False(t, stored.Posted)
}

func TestService_PostTransfer(t *testing.T) {
	f := newFixture(t)
	product, locX, locY := id.New(), id.New(), id.New()
	keyX := ledger.Key{LocationID: locX, ProductID: product}
	keyY := ledger.Key{LocationID: locY, ProductID: product}
	f.ledgerRepo.balances[keyX] = qty(10)

	doc := f.mustCreate(t, TypeTransfer, []Line{{
		ProductID: product, FromLocationID: ptr(locX), ToLocationID: ptr(locY), Quantity: qty(4),
	}})
	f.mustPost(t, doc.ID)

	assert.Equal(t, qty(6), f.balance(keyX))
	assert.Equal(t, qty(4), f.balance(keyY))
}

func TestService_PostAdjust(t *testing.T) {
	f := newFixture(t)
	product, loc := id.New(), id.New()
	key := ledger.Key{LocationID: loc, ProductID: product}
	f.ledgerRepo.balances[key] = qty(5)

	doc := f.mustCreate(t, TypeAdjust, []Line{{
		ProductID: product, ToLocationID: ptr(loc), Quantity: qty(-3),
	}})
	f.mustPost(t, doc.ID)
	assert.Equal(t, qty(2), f.balance(key))

	// positive adjust against a fresh key creates the balance
	freshProduct := id.New()
	doc2 := f.mustCreate(t, TypeAdjust, []Line{{
		ProductID: freshProduct, ToLocationID: ptr(loc), Quantity: qty(3),
	}})
	f.mustPost(t, doc2.ID)
	assert.Equal(t, qty(3), f.balance(ledger.Key{LocationID: loc, ProductID: freshProduct}))
}

func TestService_PostRoundTrip(t *testing.T) {
	f := newFixture(t)
	product, loc := id.New(), id.New()
	key := ledger.Key{LocationID: loc, ProductID: product}

	receive := f.mustCreate(t, TypeReceive, []Line{{
		ProductID: product, ToLocationID: ptr(loc), Quantity: qty(7),
	}})
	f.mustPost(t, receive.ID)

	issue := f.mustCreate(t, TypeIssue, []Line{{
		ProductID: product, FromLocationID: ptr(loc), Quantity: qty(7),
	}})
	f.mustPost(t, issue.ID)

	assert.Equal(t, qty(0), f.balance(key))
}

func TestService_PostRequiresApproved(t *testing.T) {
	f := newFixture(t)
	doc := f.mustCreate(t, TypeReceive, []Line{{
		ProductID: id.New(), ToLocationID: ptr(id.New()), Quantity: qty(1),
	}})

	err := f.svc.Post(userCtx("u"), doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestService_UpdateReplacesLines(t *testing.T) {
	f := newFixture(t)
	doc := f.mustCreate(t, TypeReceive, []Line{{
		ProductID: id.New(), ToLocationID: ptr(id.New()), Quantity: qty(1),
	}})

	replacement := []Line{
		{ProductID: id.New(), ToLocationID: ptr(id.New()), Quantity: qty(2)},
		{ProductID: id.New(), ToLocationID: ptr(id.New()), Quantity: qty(3)},
	}

	for i := 0; i < 3; i++ {
		doc.ReplaceLines(replacement)
		require.NoError(t, f.svc.Update(context.Background(), doc))
	}

	stored, err := f.svc.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 2)
}

func TestService_SubmitNotifiesApprovers(t *testing.T) {
	f := newFixture(t)
	doc := f.mustCreate(t, TypeReceive, []Line{{
		ProductID: id.New(), ToLocationID: ptr(id.New()), Quantity: qty(1),
	}})

	require.NoError(t, f.svc.Submit(userCtx("u"), doc.ID))

	require.Len(t, f.notifier.events, 1)
	event := f.notifier.events[0]
	assert.Equal(t, notify.TopicMovementSubmitted, event.Topic)
	assert.Equal(t, notify.RoleApprover, event.RecipientRole)
	assert.Equal(t, doc.ID, event.Payload["movement_id"])
}

func TestService_ApproveRecordsContextUser(t *testing.T) {
	f := newFixture(t)
	doc := f.mustCreate(t, TypeReceive, []Line{{
		ProductID: id.New(), ToLocationID: ptr(id.New()), Quantity: qty(1),
	}})

	ctx := userCtx("boss")
	require.NoError(t, f.svc.Submit(ctx, doc.ID))
	require.NoError(t, f.svc.Approve(ctx, doc.ID))

	stored, err := f.svc.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ApprovedBy)
	assert.Equal(t, "boss", *stored.ApprovedBy)
}

func TestService_GuardBlocksPosting(t *testing.T) {
	guard, err := rules.NewPostingGuard(`line_count <= 1`)
	require.NoError(t, err)

	ledgerRepo := newMemLedgerRepo()
	svc := NewService(
		newMemMovementRepo(),
		ledger.NewExecutor(ledgerRepo),
		&numerator.MockGenerator{},
		&serialTxManager{},
		guard,
		audit.NopSink{},
		notify.NopSink{},
	)

	doc := New(TypeReceive, "tester")
	doc.ReplaceLines([]Line{
		{ProductID: id.New(), ToLocationID: ptr(id.New()), Quantity: qty(1)},
		{ProductID: id.New(), ToLocationID: ptr(id.New()), Quantity: qty(1)},
	})
	require.NoError(t, svc.Create(context.Background(), doc))

	ctx := userCtx("u")
	require.NoError(t, svc.Submit(ctx, doc.ID))
	require.NoError(t, svc.Approve(ctx, doc.ID))

	err = svc.Post(ctx, doc.ID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "POSTING_RULE_VIOLATION", appErr.Code)
}

func TestService_ConcurrentIssues(t *testing.T) {
	f := newFixture(t)
	product, loc := id.New(), id.New()
	key := ledger.Key{LocationID: loc, ProductID: product}
	f.ledgerRepo.balances[key] = qty(10)

	ctx := userCtx("approver-1")
	docs := make([]*Movement, 2)
	for i := range docs {
		docs[i] = f.mustCreate(t, TypeIssue, []Line{{
			ProductID: product, FromLocationID: ptr(loc), Quantity: qty(6),
		}})
		require.NoError(t, f.svc.Submit(ctx, docs[i].ID))
		require.NoError(t, f.svc.Approve(ctx, docs[i].ID))
	}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range docs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.svc.Post(ctx, docs[i].ID)
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
		}
	}
	assert.Equal(t, 1, failures, "exactly one of two overlapping issues must fail")
	assert.Equal(t, qty(4), f.balance(key))
}
