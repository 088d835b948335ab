package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockpost/internal/core/id"
	"stockpost/internal/domain"
	"stockpost/internal/domain/documents/movement"
	"stockpost/internal/infrastructure/storage/postgres"
)

const (
	movementsTable     = "doc_movements"
	movementLinesTable = "doc_movement_lines"
)

// MovementRepo implements movement.Repository.
type MovementRepo struct {
	*BaseDocumentRepo[*movement.Movement]
}

// NewMovementRepo creates a new movement repository.
func NewMovementRepo(txManager *postgres.TxManager) *MovementRepo {
	return &MovementRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*movement.Movement](
			txManager,
			movementsTable,
			postgres.ExtractDBColumns[movement.Movement](),
			func() *movement.Movement { return &movement.Movement{} },
		),
	}
}

func (r *MovementRepo) GetLines(ctx context.Context, docID id.ID) ([]movement.Line, error) {
	q := r.Builder().
		Select(
			"line_id", "line_no", "product_id", "variant_id",
			"from_location_id", "to_location_id",
			"quantity", "unit_cost", "note",
		).
		From(movementLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []movement.Line
	if err := pgxscan.Select(ctx, r.querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return lines, nil
}

func (r *MovementRepo) SaveLines(ctx context.Context, docID id.ID, lines []movement.Line) error {
	querier := r.querier(ctx)

	deleteSQL := "DELETE FROM " + movementLinesTable + " WHERE document_id = $1"
	if _, err := querier.Exec(ctx, deleteSQL, docID); err != nil {
		return fmt.Errorf("delete existing lines: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(movementLinesTable).
		Columns(
			"line_id", "document_id", "line_no", "product_id", "variant_id",
			"from_location_id", "to_location_id",
			"quantity", "unit_cost", "note",
		)

	for _, line := range lines {
		q = q.Values(
			line.LineID, docID, line.LineNo, line.ProductID, line.VariantID,
			line.FromLocationID, line.ToLocationID,
			line.Quantity, line.UnitCost, line.Note,
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

func (r *MovementRepo) List(ctx context.Context, filter movement.ListFilter) (domain.ListResult[*movement.Movement], error) {
	result := domain.ListResult[*movement.Movement]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}

	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"type": *filter.Type})
	}

	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}

	if filter.RefID != nil {
		q = q.Where(squirrel.Eq{"ref_id": *filter.RefID})
	}

	if filter.Posted != nil {
		q = q.Where(squirrel.Eq{"posted": *filter.Posted})
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

var _ movement.Repository = (*MovementRepo)(nil)
