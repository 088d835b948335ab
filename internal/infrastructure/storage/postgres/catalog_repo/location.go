// Package catalog_repo provides the PostgreSQL implementation of the
// location catalog repository.
package catalog_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/domain"
	"stockpost/internal/domain/catalogs/location"
	"stockpost/internal/domain/filter"
	"stockpost/internal/infrastructure/storage/postgres"
)

const locationTable = "cat_locations"

// locationColumns lists every column of cat_locations in select order.
var locationColumns = []string{
	"id", "code", "name", "parent_id", "is_folder",
	"kind", "warehouse_id", "is_active", "address", "description",
	"deletion_mark", "version",
}

// LocationRepo implements location.Repository.
type LocationRepo struct {
	txManager *postgres.TxManager
}

// NewLocationRepo creates a new location repository.
func NewLocationRepo(txManager *postgres.TxManager) *LocationRepo {
	return &LocationRepo{txManager: txManager}
}

var _ location.Repository = (*LocationRepo)(nil)

func (r *LocationRepo) db(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

func qb() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func locationSelect() squirrel.SelectBuilder {
	return qb().Select(locationColumns...).From(locationTable)
}

// locationRow maps a Location onto its table columns.
func locationRow(loc *location.Location) map[string]any {
	return map[string]any{
		"id":            loc.ID,
		"code":          loc.Code,
		"name":          loc.Name,
		"parent_id":     loc.ParentID,
		"is_folder":     loc.IsFolder,
		"kind":          loc.Kind,
		"warehouse_id":  loc.WarehouseID,
		"is_active":     loc.IsActive,
		"address":       loc.Address,
		"description":   loc.Description,
		"deletion_mark": loc.DeletionMark,
		"version":       loc.Version,
	}
}

// Create inserts a new location row.
func (r *LocationRepo) Create(ctx context.Context, loc *location.Location) error {
	sql, args, err := qb().
		Insert(locationTable).
		SetMap(locationRow(loc)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

// GetByID retrieves a location by ID.
func (r *LocationRepo) GetByID(ctx context.Context, locID id.ID) (*location.Location, error) {
	sql, args, err := locationSelect().
		Where(squirrel.Eq{"id": locID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	loc := &location.Location{}
	if err := pgxscan.Get(ctx, r.db(ctx), loc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("location", locID.String())
		}
		return nil, fmt.Errorf("get location: %w", err)
	}
	return loc, nil
}

// Update persists all mutable columns, bumping the version. The row must
// still carry the version the caller loaded, otherwise the update is a
// concurrent-modification conflict.
func (r *LocationRepo) Update(ctx context.Context, loc *location.Location) error {
	row := locationRow(loc)
	delete(row, "id")
	delete(row, "version")

	sql, args, err := qb().
		Update(locationTable).
		SetMap(row).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": loc.ID}).
		Where(squirrel.Eq{"version": loc.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.db(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("location", loc.ID)
	}
	return nil
}

// SetDeletionMark sets or clears the deletion mark.
func (r *LocationRepo) SetDeletionMark(ctx context.Context, locID id.ID, marked bool) error {
	sql, args, err := qb().
		Update(locationTable).
		Set("deletion_mark", marked).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": locID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set deletion mark: %w", err)
	}

	result, err := r.db(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set deletion mark: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("location", locID.String())
	}
	return nil
}

// List retrieves locations with filtering and pagination.
func (r *LocationRepo) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*location.Location], error) {
	result := domain.ListResult[*location.Location]{
		Limit:  f.Limit,
		Offset: f.Offset,
	}

	q, err := buildLocationList(f)
	if err != nil {
		return result, err
	}

	// Total count before paging.
	countSQL, countArgs, err := qb().
		Select("COUNT(*)").
		FromSelect(q, "sub").
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.db(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count locations: %w", err)
	}

	orderBy, err := locationOrderClause(f.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list locations: %w", err)
	}
	return result, nil
}

// buildLocationList assembles the filtered SELECT without ordering or paging.
func buildLocationList(f domain.ListFilter) (squirrel.SelectBuilder, error) {
	q := locationSelect()

	if !f.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"code": pattern},
		})
	}
	if len(f.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": f.IDs})
	}
	if f.ParentID != nil {
		q = q.Where(squirrel.Eq{"parent_id": *f.ParentID})
	}
	if f.IsFolder != nil {
		q = q.Where(squirrel.Eq{"is_folder": *f.IsFolder})
	}

	return applyLocationConditions(q, f.Conditions)
}

// locationHierarchySQL matches rows inside (or outside) the subtree rooted
// at one location.
const locationHierarchySQL = `id %s (
	WITH RECURSIVE subtree AS (
		SELECT id FROM cat_locations WHERE id = ?
		UNION ALL
		SELECT c.id FROM cat_locations c JOIN subtree s ON c.parent_id = s.id
	)
	SELECT id FROM subtree
)`

// applyLocationConditions translates client conditions into WHERE clauses.
// Field names are validated against the table columns.
func applyLocationConditions(q squirrel.SelectBuilder, conditions []filter.Item) (squirrel.SelectBuilder, error) {
	if len(conditions) == 0 {
		return q, nil
	}

	valid := make(map[string]bool, len(locationColumns))
	for _, col := range locationColumns {
		valid[col] = true
	}

	for _, item := range conditions {
		if !valid[item.Field] {
			return q, apperror.NewValidation("unknown filter field").
				WithDetail("field", item.Field)
		}

		switch item.Operator {
		case filter.Equal:
			q = q.Where(squirrel.Eq{item.Field: item.Value})
		case filter.NotEqual:
			q = q.Where(squirrel.NotEq{item.Field: item.Value})
		case filter.LessOrEqual:
			q = q.Where(squirrel.LtOrEq{item.Field: item.Value})
		case filter.GreaterOrEqual:
			q = q.Where(squirrel.GtOrEq{item.Field: item.Value})
		case filter.InList:
			q = q.Where(squirrel.Eq{item.Field: item.Value})
		case filter.NotInList:
			q = q.Where(squirrel.NotEq{item.Field: item.Value})
		case filter.IsNull:
			q = q.Where(squirrel.Eq{item.Field: nil})
		case filter.IsNotNull:
			q = q.Where(squirrel.NotEq{item.Field: nil})
		case filter.Contains:
			q = q.Where(squirrel.ILike{item.Field: fmt.Sprintf("%%%v%%", item.Value)})
		case filter.NotContains:
			q = q.Where(squirrel.NotILike{item.Field: fmt.Sprintf("%%%v%%", item.Value)})
		case filter.InHierarchy:
			q = q.Where(squirrel.Expr(fmt.Sprintf(locationHierarchySQL, "IN"), item.Value))
		case filter.NotInHierarchy:
			q = q.Where(squirrel.Expr(fmt.Sprintf(locationHierarchySQL, "NOT IN"), item.Value))
		default:
			return q, apperror.NewValidation("unknown filter operator").
				WithDetail("operator", string(item.Operator))
		}
	}

	return q, nil
}

// locationOrderClause validates the requested sort column and direction.
func locationOrderClause(orderBy string) (string, error) {
	if strings.TrimSpace(orderBy) == "" {
		return "name ASC", nil
	}

	direction := "ASC"
	field := orderBy
	switch {
	case strings.HasPrefix(orderBy, "-"):
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	case strings.HasPrefix(orderBy, "+"):
		field = strings.TrimPrefix(orderBy, "+")
	}
	field = strings.TrimSpace(field)

	for _, col := range locationColumns {
		if col == field {
			return field + " " + direction, nil
		}
	}
	return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
}

// GetTree retrieves the hierarchy below rootID using a recursive CTE.
// A nil rootID returns the whole forest starting from root locations.
func (r *LocationRepo) GetTree(ctx context.Context, rootID *id.ID) ([]*location.Location, error) {
	rootCond := "parent_id IS NULL"
	var args []any
	if rootID != nil {
		rootCond = "parent_id = $1"
		args = []any{*rootID}
	}

	prefixed := make([]string, len(locationColumns))
	for i, col := range locationColumns {
		prefixed[i] = "tree." + col
	}

	cteSQL := fmt.Sprintf(`
		WITH RECURSIVE tree AS (
			SELECT *, 0 AS depth
			FROM %[1]s
			WHERE %[2]s AND deletion_mark = false

			UNION ALL

			SELECT c.*, tree.depth + 1
			FROM %[1]s c
			JOIN tree ON c.parent_id = tree.id
			WHERE c.deletion_mark = false
		)
		SELECT %[3]s FROM tree
		ORDER BY depth, name
	`, locationTable, rootCond, strings.Join(prefixed, ", "))

	var items []*location.Location
	if err := pgxscan.Select(ctx, r.db(ctx), &items, cteSQL, args...); err != nil {
		return nil, fmt.Errorf("location tree: %w", err)
	}
	return items, nil
}

// ListByWarehouse retrieves the warehouse row and every location that
// belongs to it.
func (r *LocationRepo) ListByWarehouse(ctx context.Context, warehouseID id.ID) ([]*location.Location, error) {
	sql, args, err := locationSelect().
		Where(squirrel.Or{
			squirrel.Eq{"id": warehouseID},
			squirrel.Eq{"warehouse_id": warehouseID},
		}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("code").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var locations []*location.Location
	if err := pgxscan.Select(ctx, r.db(ctx), &locations, sql, args...); err != nil {
		return nil, fmt.Errorf("list by warehouse: %w", err)
	}
	return locations, nil
}
