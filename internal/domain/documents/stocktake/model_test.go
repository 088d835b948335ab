package stocktake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/core/types"
)

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }

func draftWithLines(t *testing.T, systemQtys ...float64) *StockTake {
	t.Helper()
	st := New(id.New(), "tester")
	for _, q := range systemQtys {
		st.AddLine(id.New(), nil, id.New(), qty(q))
	}
	return st
}

func countAll(t *testing.T, st *StockTake, counted ...float64) {
	t.Helper()
	require.Len(t, st.Lines, len(counted))
	for i, c := range counted {
		require.NoError(t, st.SetCount(st.Lines[i].LineID, qty(c), ""))
	}
}

func TestStatus_TransitionTable(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusDraft, StatusInProgress, true},
		{StatusDraft, StatusCompleted, false},
		{StatusDraft, StatusCancelled, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusApproved, false},
		{StatusInProgress, StatusCancelled, true},
		{StatusCompleted, StatusApproved, true},
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusCancelled, true},
		{StatusApproved, StatusCancelled, false},
		{StatusCancelled, StatusDraft, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestStockTake_HappyPath(t *testing.T) {
	st := draftWithLines(t, 8, 5)
	require.NoError(t, st.Validate(context.Background()))

	require.NoError(t, st.Start("counter"))
	assert.Equal(t, StatusInProgress, st.Status)
	require.NotNil(t, st.CountedBy)
	assert.Equal(t, "counter", *st.CountedBy)
	assert.NotNil(t, st.StartedAt)

	countAll(t, st, 6, 5)

	require.NoError(t, st.Complete())
	assert.Equal(t, StatusCompleted, st.Status)
	assert.NotNil(t, st.CompletedAt)

	require.NotNil(t, st.Lines[0].Variance)
	assert.Equal(t, qty(-2), *st.Lines[0].Variance)
	require.NotNil(t, st.Lines[1].Variance)
	assert.True(t, st.Lines[1].Variance.IsZero())

	require.NoError(t, st.MarkApproved("boss"))
	assert.Equal(t, StatusApproved, st.Status)
	require.NotNil(t, st.ApprovedBy)
	assert.Equal(t, "boss", *st.ApprovedBy)
}

func TestStockTake_CompleteRequiresAllCounted(t *testing.T) {
	st := draftWithLines(t, 8, 5, 3)
	require.NoError(t, st.Start("counter"))

	require.NoError(t, st.SetCount(st.Lines[0].LineID, qty(8), ""))

	err := st.Complete()
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Equal(t, 2, appErr.Details["uncounted_lines"])
	assert.Equal(t, StatusInProgress, st.Status)
}

func TestStockTake_SetCountIsIdempotent(t *testing.T) {
	st := draftWithLines(t, 10)
	require.NoError(t, st.Start("counter"))

	lineID := st.Lines[0].LineID
	require.NoError(t, st.SetCount(lineID, qty(7), "first pass"))
	require.NoError(t, st.SetCount(lineID, qty(9), "recount"))

	require.NotNil(t, st.Lines[0].CountedQty)
	assert.Equal(t, qty(9), *st.Lines[0].CountedQty)
	assert.Equal(t, "recount", st.Lines[0].Note)
	assert.Equal(t, 0, st.UncountedLines())
}

func TestStockTake_SetCountRejectsNegative(t *testing.T) {
	st := draftWithLines(t, 10)
	require.NoError(t, st.Start("counter"))

	err := st.SetCount(st.Lines[0].LineID, qty(-1), "")
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestStockTake_SetCountUnknownLine(t *testing.T) {
	st := draftWithLines(t, 10)
	require.NoError(t, st.Start("counter"))

	err := st.SetCount(id.New(), qty(5), "")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestStockTake_CountRequiresInProgress(t *testing.T) {
	st := draftWithLines(t, 10)

	err := st.SetCount(st.Lines[0].LineID, qty(5), "")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestStockTake_CancelRules(t *testing.T) {
	st := draftWithLines(t, 10)
	require.NoError(t, st.Cancel())
	assert.Equal(t, StatusCancelled, st.Status)
	assert.True(t, apperror.IsInvalidState(st.Cancel()))

	st = draftWithLines(t, 10)
	require.NoError(t, st.Start("counter"))
	countAll(t, st, 10)
	require.NoError(t, st.Complete())
	require.NoError(t, st.Cancel())
	assert.Equal(t, StatusCancelled, st.Status)

	st = draftWithLines(t, 10)
	require.NoError(t, st.Start("counter"))
	countAll(t, st, 10)
	require.NoError(t, st.Complete())
	require.NoError(t, st.MarkApproved("boss"))
	assert.True(t, apperror.IsInvalidState(st.Cancel()))
}

func TestStockTake_VarianceLines(t *testing.T) {
	st := draftWithLines(t, 8, 5, 3)
	require.NoError(t, st.Start("counter"))
	countAll(t, st, 6, 5, 4)
	require.NoError(t, st.Complete())

	variances := st.VarianceLines()
	require.Len(t, variances, 2)
	assert.Equal(t, qty(-2), *variances[0].Variance)
	assert.Equal(t, qty(1), *variances[1].Variance)
}

func TestStockTake_ValidateRequiresWarehouse(t *testing.T) {
	st := New(id.Nil(), "tester")
	err := st.Validate(context.Background())
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}
