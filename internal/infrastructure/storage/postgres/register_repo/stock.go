// Package register_repo provides PostgreSQL implementations for register repositories.
package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockpost/internal/core/entity"
	"stockpost/internal/core/id"
	"stockpost/internal/core/types"
	"stockpost/internal/domain/ledger"
	"stockpost/internal/infrastructure/storage/postgres"
)

const (
	ledgerEntriesTable = "reg_ledger_entries"
	stockBalancesTable = "reg_stock_balances"
)

// LedgerRepo implements ledger.Repository on PostgreSQL.
// Balance rows carry a UNIQUE NULLS NOT DISTINCT constraint on
// (location_id, product_id, variant_id) so variantless products upsert
// into a single row.
type LedgerRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewLedgerRepo creates a new stock ledger repository.
func NewLedgerRepo(txManager *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Ensure interface compliance.
var _ ledger.Repository = (*LedgerRepo)(nil)

func keyCondition(key ledger.Key) squirrel.Sqlizer {
	return squirrel.Eq{
		"location_id": key.LocationID,
		"product_id":  key.ProductID,
		"variant_id":  key.Variant(), // nil renders as IS NULL
	}
}

// LockBalances reads balances for keys under FOR UPDATE.
// Callers pass keys pre-sorted, so lock acquisition order is stable
// across concurrent posting transactions.
func (r *LedgerRepo) LockBalances(ctx context.Context, keys []ledger.Key) (map[ledger.Key]types.Quantity, error) {
	out := make(map[ledger.Key]types.Quantity, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	querier := r.txManager.GetQuerier(ctx)

	// One row per key, locked in the given order.
	for _, key := range keys {
		cond, args, err := keyCondition(key).ToSql()
		if err != nil {
			return nil, fmt.Errorf("build lock condition: %w", err)
		}

		sql := fmt.Sprintf(
			"SELECT quantity FROM %s WHERE %s FOR UPDATE", stockBalancesTable, cond)

		var scaled int64
		err = querier.QueryRow(ctx, sql, args...).Scan(&scaled)
		if err != nil {
			if err == pgx.ErrNoRows {
				continue // missing row reads as zero
			}
			return nil, fmt.Errorf("lock balance: %w", err)
		}
		out[key] = types.NewQuantityFromInt64Scaled(scaled)
	}

	return out, nil
}

// ApplyDeltas upserts balance rows, adding each delta's quantity.
func (r *LedgerRepo) ApplyDeltas(ctx context.Context, deltas []ledger.Delta, now time.Time) error {
	if len(deltas) == 0 {
		return nil
	}

	querier := r.txManager.GetQuerier(ctx)

	sql := fmt.Sprintf(`
		INSERT INTO %s (location_id, product_id, variant_id, quantity, last_entry_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (location_id, product_id, variant_id) DO UPDATE
		SET quantity = %s.quantity + EXCLUDED.quantity,
		    last_entry_at = EXCLUDED.last_entry_at,
		    updated_at = EXCLUDED.updated_at
	`, stockBalancesTable, stockBalancesTable)

	for _, d := range deltas {
		_, err := querier.Exec(ctx, sql,
			d.Key.LocationID, d.Key.ProductID, d.Key.Variant(),
			d.Quantity.Int64Scaled(), now,
		)
		if err != nil {
			return fmt.Errorf("apply delta: %w", err)
		}
	}

	return nil
}

// InsertEntries bulk inserts ledger entries.
func (r *LedgerRepo) InsertEntries(ctx context.Context, entries []entity.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	columns := []string{
		"line_id", "recorder_id", "recorder_type", "recorder_version",
		"period", "record_type",
		"location_id", "product_id", "variant_id", "quantity", "created_at",
	}

	// Fast path: COPY when inside a transaction.
	if tx := r.txManager.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		rows := make([][]any, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []any{
				e.LineID, e.RecorderID, e.RecorderType, e.RecorderVersion,
				e.Period, e.RecordType,
				e.LocationID, e.ProductID, e.VariantID, e.Quantity.Int64Scaled(), e.CreatedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, ledgerEntriesTable, columns, rows); err != nil {
			return fmt.Errorf("copy entries: %w", err)
		}
		return nil
	}

	// Fallback: non-transactional insert. Prefer calling InsertEntries within tx.
	q := r.builder.Insert(ledgerEntriesTable).Columns(columns...)
	for _, e := range entries {
		q = q.Values(
			e.LineID, e.RecorderID, e.RecorderType, e.RecorderVersion,
			e.Period, e.RecordType,
			e.LocationID, e.ProductID, e.VariantID, e.Quantity.Int64Scaled(), e.CreatedAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert entries: %w", err)
	}

	return nil
}

// DeleteEntries removes entries of older posting iterations of a recorder.
func (r *LedgerRepo) DeleteEntries(ctx context.Context, recorderID id.ID, beforeVersion int) error {
	q := r.builder.Delete(ledgerEntriesTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		Where(squirrel.Lt{"recorder_version": beforeVersion})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}

	return nil
}

// GetBalance returns the current balance for one key (zero if absent).
func (r *LedgerRepo) GetBalance(ctx context.Context, key ledger.Key) (types.Quantity, error) {
	q := r.builder.Select("quantity").
		From(stockBalancesTable).
		Where(keyCondition(key)).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var scaled int64
	querier := r.txManager.GetQuerier(ctx)
	err = querier.QueryRow(ctx, sql, args...).Scan(&scaled)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}

	return types.NewQuantityFromInt64Scaled(scaled), nil
}

// ListPositiveByLocations returns positive balance rows in the locations.
func (r *LedgerRepo) ListPositiveByLocations(ctx context.Context, locationIDs []id.ID) ([]entity.StockBalance, error) {
	if len(locationIDs) == 0 {
		return nil, nil
	}

	q := r.builder.Select(
		"location_id", "product_id", "variant_id",
		"quantity", "last_entry_at", "updated_at",
	).From(stockBalancesTable).
		Where(squirrel.Eq{"location_id": locationIDs}).
		Where(squirrel.Gt{"quantity": int64(0)}).
		OrderBy("location_id", "product_id", "variant_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var balances []entity.StockBalance
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &balances, sql, args...); err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}

	return balances, nil
}

// ListEntriesByRecorder returns entries created by a document.
func (r *LedgerRepo) ListEntriesByRecorder(ctx context.Context, recorderID id.ID) ([]entity.LedgerEntry, error) {
	q := r.builder.Select(
		"line_id", "recorder_id", "recorder_type", "recorder_version",
		"period", "record_type",
		"location_id", "product_id", "variant_id", "quantity", "created_at",
	).From(ledgerEntriesTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		OrderBy("created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []entity.LedgerEntry
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}

	return entries, nil
}

// --- read API beyond the posting contract ---

// BalanceFilter narrows balance listings.
type BalanceFilter struct {
	ProductIDs  []id.ID
	ExcludeZero bool
	MinQuantity *types.Quantity
	MaxQuantity *types.Quantity
}

// ListByLocation returns balances for one location.
func (r *LedgerRepo) ListByLocation(ctx context.Context, locationID id.ID, filter BalanceFilter) ([]entity.StockBalance, error) {
	q := r.builder.Select(
		"location_id", "product_id", "variant_id",
		"quantity", "last_entry_at", "updated_at",
	).From(stockBalancesTable).
		Where(squirrel.Eq{"location_id": locationID})

	if filter.ExcludeZero {
		q = q.Where(squirrel.NotEq{"quantity": int64(0)})
	}
	if len(filter.ProductIDs) > 0 {
		q = q.Where(squirrel.Eq{"product_id": filter.ProductIDs})
	}
	if filter.MinQuantity != nil {
		q = q.Where(squirrel.GtOrEq{"quantity": filter.MinQuantity.Int64Scaled()})
	}
	if filter.MaxQuantity != nil {
		q = q.Where(squirrel.LtOrEq{"quantity": filter.MaxQuantity.Int64Scaled()})
	}

	q = q.OrderBy("product_id", "variant_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var balances []entity.StockBalance
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &balances, sql, args...); err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}

	return balances, nil
}

// ListByProduct returns non-zero balances for a product across locations.
func (r *LedgerRepo) ListByProduct(ctx context.Context, productID id.ID) ([]entity.StockBalance, error) {
	q := r.builder.Select(
		"location_id", "product_id", "variant_id",
		"quantity", "last_entry_at", "updated_at",
	).From(stockBalancesTable).
		Where(squirrel.Eq{"product_id": productID}).
		Where(squirrel.NotEq{"quantity": int64(0)}).
		OrderBy("location_id", "variant_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var balances []entity.StockBalance
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &balances, sql, args...); err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}

	return balances, nil
}

// BalanceAtDate computes the balance of a key as of a business date
// from the entries, bypassing the materialized row.
func (r *LedgerRepo) BalanceAtDate(ctx context.Context, key ledger.Key, date time.Time) (types.Quantity, error) {
	cond, args, err := keyCondition(key).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build condition: %w", err)
	}

	sql := fmt.Sprintf(`
		SELECT COALESCE(
			SUM(CASE WHEN record_type = 'receipt' THEN quantity ELSE -quantity END),
			0
		)
		FROM %s
		WHERE %s AND period <= $%d
	`, ledgerEntriesTable, cond, len(args)+1)
	args = append(args, date)

	var scaled int64
	querier := r.txManager.GetQuerier(ctx)
	err = querier.QueryRow(ctx, sql, args...).Scan(&scaled)
	if err != nil && err != pgx.ErrNoRows {
		return 0, fmt.Errorf("calculate balance at date: %w", err)
	}

	return types.NewQuantityFromInt64Scaled(scaled), nil
}

// EntryFilter narrows entry history queries.
type EntryFilter struct {
	LocationID *id.ID
	RecordType *entity.RecordType
	FromDate   *time.Time
	ToDate     *time.Time
	Limit      int
	Offset     int
}

// EntryHistory returns the ledger history for a product.
func (r *LedgerRepo) EntryHistory(ctx context.Context, productID id.ID, filter EntryFilter) ([]entity.LedgerEntry, error) {
	q := r.builder.Select(
		"line_id", "recorder_id", "recorder_type", "recorder_version",
		"period", "record_type",
		"location_id", "product_id", "variant_id", "quantity", "created_at",
	).From(ledgerEntriesTable).
		Where(squirrel.Eq{"product_id": productID})

	if filter.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *filter.LocationID})
	}
	if filter.RecordType != nil {
		q = q.Where(squirrel.Eq{"record_type": *filter.RecordType})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"period": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"period": *filter.ToDate})
	}

	q = q.OrderBy("period DESC", "created_at DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []entity.LedgerEntry
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}

	return entries, nil
}
