package location

import (
	"context"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/domain"
	"stockpost/pkg/numerator"
)

// --- in-memory fakes ---

type passthroughTxManager struct{}

func (passthroughTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memLocationRepo struct {
	mu   sync.Mutex
	locs map[id.ID]Location
}

func newMemLocationRepo() *memLocationRepo {
	return &memLocationRepo{locs: make(map[id.ID]Location)}
}

func (r *memLocationRepo) Create(ctx context.Context, loc *Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locs[loc.ID] = *loc
	return nil
}

func (r *memLocationRepo) GetByID(ctx context.Context, locID id.ID) (*Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.locs[locID]
	if !ok {
		return nil, apperror.NewNotFound("row", locID.String())
	}
	copied := loc
	return &copied, nil
}

func (r *memLocationRepo) Update(ctx context.Context, loc *Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.locs[loc.ID]; !ok {
		return apperror.NewNotFound("row", loc.ID.String())
	}
	r.locs[loc.ID] = *loc
	return nil
}

func (r *memLocationRepo) SetDeletionMark(ctx context.Context, locID id.ID, marked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.locs[locID]
	if !ok {
		return apperror.NewNotFound("row", locID.String())
	}
	loc.DeletionMark = marked
	r.locs[locID] = loc
	return nil
}

func (r *memLocationRepo) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Location], error) {
	return domain.ListResult[*Location]{}, nil
}

func (r *memLocationRepo) GetTree(ctx context.Context, rootID *id.ID) ([]*Location, error) {
	return nil, nil
}

func (r *memLocationRepo) ListByWarehouse(ctx context.Context, warehouseID id.ID) ([]*Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Location
	for _, loc := range r.locs {
		if loc.ID == warehouseID || (loc.WarehouseID != nil && *loc.WarehouseID == warehouseID) {
			copied := loc
			out = append(out, &copied)
		}
	}
	return out, nil
}

// fixedRow feeds one int64 into the numerator's RETURNING scan.
type fixedRow struct {
	val int64
}

func (r fixedRow) Scan(dest ...any) error {
	*(dest[0].(*int64)) = r.val
	return nil
}

type fixedQuerier struct {
	next int64
}

func (q *fixedQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.next++
	return fixedRow{val: q.next}
}

func newTestService(repo Repository) *Service {
	return NewService(repo, numerator.New(&fixedQuerier{}), passthroughTxManager{})
}

// --- tests ---

func TestCreate_GeneratesCodeWhenMissing(t *testing.T) {
	repo := newMemLocationRepo()
	svc := newTestService(repo)

	wh := NewLocation("", "Main warehouse", KindWarehouse)
	require.NoError(t, svc.Create(context.Background(), wh))

	assert.Contains(t, wh.Code, "LOC-")
	stored, err := repo.GetByID(context.Background(), wh.ID)
	require.NoError(t, err)
	assert.Equal(t, wh.Code, stored.Code)
}

func TestCreate_KeepsProvidedCode(t *testing.T) {
	repo := newMemLocationRepo()
	svc := newTestService(repo)

	wh := NewLocation("WH-MAIN", "Main warehouse", KindWarehouse)
	require.NoError(t, svc.Create(context.Background(), wh))
	assert.Equal(t, "WH-MAIN", wh.Code)
}

func TestCreate_InheritsWarehouseFromWarehouseParent(t *testing.T) {
	repo := newMemLocationRepo()
	svc := newTestService(repo)

	wh := NewLocation("WH", "Warehouse", KindWarehouse)
	require.NoError(t, svc.Create(context.Background(), wh))

	parentID := wh.ID.String()
	zone := NewLocation("ZONE-A", "Zone A", KindZone)
	zone.ParentID = &parentID

	require.NoError(t, svc.Create(context.Background(), zone))
	require.NotNil(t, zone.WarehouseID)
	assert.Equal(t, wh.ID, *zone.WarehouseID)
}

func TestCreate_InheritsWarehouseThroughZoneParent(t *testing.T) {
	repo := newMemLocationRepo()
	svc := newTestService(repo)

	wh := NewLocation("WH", "Warehouse", KindWarehouse)
	require.NoError(t, svc.Create(context.Background(), wh))

	whID := wh.ID.String()
	zone := NewLocation("ZONE-A", "Zone A", KindZone)
	zone.ParentID = &whID
	require.NoError(t, svc.Create(context.Background(), zone))

	zoneID := zone.ID.String()
	bin := NewLocation("BIN-1", "Bin 1", KindBin)
	bin.ParentID = &zoneID

	require.NoError(t, svc.Create(context.Background(), bin))
	require.NotNil(t, bin.WarehouseID)
	assert.Equal(t, wh.ID, *bin.WarehouseID)
}

func TestCreate_RejectsNestedWithoutWarehouse(t *testing.T) {
	svc := newTestService(newMemLocationRepo())

	zone := NewLocation("ZONE-A", "Zone A", KindZone)
	err := svc.Create(context.Background(), zone)

	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestGetByID_MapsNotFound(t *testing.T) {
	svc := newTestService(newMemLocationRepo())

	_, err := svc.GetByID(context.Background(), id.New())

	require.Error(t, err)
	require.True(t, apperror.IsNotFound(err))
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "location", appErr.Details["entity"])
}

func TestResolveWarehouse_RejectsNonWarehouse(t *testing.T) {
	repo := newMemLocationRepo()
	svc := newTestService(repo)

	wh := NewLocation("WH", "Warehouse", KindWarehouse)
	require.NoError(t, svc.Create(context.Background(), wh))

	whID := wh.ID.String()
	zone := NewLocation("ZONE-A", "Zone A", KindZone)
	zone.ParentID = &whID
	require.NoError(t, svc.Create(context.Background(), zone))

	_, err := svc.ResolveWarehouse(context.Background(), zone.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestResolveWarehouse_CollectsLeaves(t *testing.T) {
	repo := newMemLocationRepo()
	svc := newTestService(repo)

	wh := NewLocation("WH", "Warehouse", KindWarehouse)
	require.NoError(t, svc.Create(context.Background(), wh))

	whID := wh.ID.String()
	zone := NewLocation("ZONE-A", "Zone A", KindZone)
	zone.ParentID = &whID
	require.NoError(t, svc.Create(context.Background(), zone))

	zoneID := zone.ID.String()
	bin := NewLocation("BIN-1", "Bin 1", KindBin)
	bin.ParentID = &zoneID
	require.NoError(t, svc.Create(context.Background(), bin))

	ids, err := svc.ResolveWarehouse(context.Background(), wh.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []id.ID{wh.ID, zone.ID, bin.ID}, ids)
}

func TestDelete_SetsDeletionMark(t *testing.T) {
	repo := newMemLocationRepo()
	svc := newTestService(repo)

	wh := NewLocation("WH", "Warehouse", KindWarehouse)
	require.NoError(t, svc.Create(context.Background(), wh))

	require.NoError(t, svc.Delete(context.Background(), wh.ID))

	stored, err := repo.GetByID(context.Background(), wh.ID)
	require.NoError(t, err)
	assert.True(t, stored.DeletionMark)
}
