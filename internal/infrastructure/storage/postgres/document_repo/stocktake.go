package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockpost/internal/core/id"
	"stockpost/internal/domain"
	"stockpost/internal/domain/documents/stocktake"
	"stockpost/internal/infrastructure/storage/postgres"
)

const (
	stockTakesTable     = "doc_stock_takes"
	stockTakeLinesTable = "doc_stock_take_lines"
)

// StockTakeRepo implements stocktake.Repository.
type StockTakeRepo struct {
	*BaseDocumentRepo[*stocktake.StockTake]
}

// NewStockTakeRepo creates a new stock take repository.
func NewStockTakeRepo(txManager *postgres.TxManager) *StockTakeRepo {
	return &StockTakeRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*stocktake.StockTake](
			txManager,
			stockTakesTable,
			postgres.ExtractDBColumns[stocktake.StockTake](),
			func() *stocktake.StockTake { return &stocktake.StockTake{} },
		),
	}
}

func (r *StockTakeRepo) GetLines(ctx context.Context, docID id.ID) ([]stocktake.Line, error) {
	q := r.Builder().
		Select(
			"line_id", "line_no", "product_id", "variant_id", "location_id",
			"system_qty", "counted_qty", "variance", "note",
		).
		From(stockTakeLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []stocktake.Line
	if err := pgxscan.Select(ctx, r.querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return lines, nil
}

func (r *StockTakeRepo) SaveLines(ctx context.Context, docID id.ID, lines []stocktake.Line) error {
	querier := r.querier(ctx)

	deleteSQL := "DELETE FROM " + stockTakeLinesTable + " WHERE document_id = $1"
	if _, err := querier.Exec(ctx, deleteSQL, docID); err != nil {
		return fmt.Errorf("delete existing lines: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(stockTakeLinesTable).
		Columns(
			"line_id", "document_id", "line_no", "product_id", "variant_id",
			"location_id", "system_qty", "counted_qty", "variance", "note",
		)

	for _, line := range lines {
		q = q.Values(
			line.LineID, docID, line.LineNo, line.ProductID, line.VariantID,
			line.LocationID, line.SystemQty, line.CountedQty, line.Variance, line.Note,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}

	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}

	return nil
}

func (r *StockTakeRepo) List(ctx context.Context, filter stocktake.ListFilter) (domain.ListResult[*stocktake.StockTake], error) {
	result := domain.ListResult[*stocktake.StockTake]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}

	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}

	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}

	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
	}

	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
	}

	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + filter.Search + "%"})
	}

	countQ := r.Builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("select: %w", err)
	}

	return result, nil
}

var _ stocktake.Repository = (*StockTakeRepo)(nil)
