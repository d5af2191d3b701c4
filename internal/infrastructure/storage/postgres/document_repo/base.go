// Package document_repo provides PostgreSQL implementations for document repositories.
package document_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockkeeper/internal/core/apperror"
	"stockkeeper/internal/core/id"
	"stockkeeper/internal/domain"
	"stockkeeper/internal/infrastructure/storage/postgres"
)

// versioned is implemented by every document through entity.BaseEntity.
type versioned interface {
	SetVersion(v int)
}

// immutableCols are never written by Update.
var immutableCols = map[string]struct{}{
	"id":         {},
	"code":       {},
	"created_at": {},
	"created_by": {},
	"version":    {},
}

// DocumentTable describes how a document type is stored.
type DocumentTable struct {
	Name string
	// DateColumn is the business date used by From/To filters.
	DateColumn string
	// SearchColumns are matched by ListFilter.Search in addition to code.
	SearchColumns []string
}

// BaseDocumentRepo provides common CRUD operations for document headers.
type BaseDocumentRepo[T versioned] struct {
	txManager  *postgres.TxManager
	table      DocumentTable
	selectCols []string
	newFn      func() T
}

// NewBaseDocumentRepo creates a new base document repository.
func NewBaseDocumentRepo[T versioned](
	txManager *postgres.TxManager,
	table DocumentTable,
	selectCols []string,
	newFn func() T,
) *BaseDocumentRepo[T] {
	return &BaseDocumentRepo[T]{
		txManager:  txManager,
		table:      table,
		selectCols: selectCols,
		newFn:      newFn,
	}
}

// Builder returns a new squirrel builder.
func (r *BaseDocumentRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Querier returns the transaction in ctx or the pool.
func (r *BaseDocumentRepo[T]) Querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// TxManager returns the transaction manager.
func (r *BaseDocumentRepo[T]) TxManager() *postgres.TxManager {
	return r.txManager
}

func (r *BaseDocumentRepo[T]) insertQuery(entity T) (squirrel.InsertBuilder, error) {
	data := postgres.StructToMap(entity)
	if len(data) == 0 {
		return squirrel.InsertBuilder{}, fmt.Errorf("no db tags found in entity")
	}

	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}
	return r.Builder().Insert(r.table.Name).SetMap(filtered), nil
}

// Create inserts a new document header.
func (r *BaseDocumentRepo[T]) Create(ctx context.Context, entity T) error {
	q, err := r.insertQuery(entity)
	if err != nil {
		return err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(fmt.Errorf("insert %s: %w", r.table.Name, err))
	}
	return nil
}

func (r *BaseDocumentRepo[T]) updateQuery(entity T) (squirrel.UpdateBuilder, int, error) {
	data := postgres.StructToMap(entity)
	entityID, ok := data["id"]
	if !ok {
		return squirrel.UpdateBuilder{}, 0, fmt.Errorf("entity has no 'id' field")
	}
	version, ok := data["version"].(int)
	if !ok {
		return squirrel.UpdateBuilder{}, 0, fmt.Errorf("entity has no 'version' field or it is not an int")
	}

	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if _, skip := immutableCols[col]; skip {
			continue
		}
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	q := r.Builder().
		Update(r.table.Name).
		SetMap(filtered).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": entityID}).
		Where(squirrel.Eq{"version": version})
	return q, version, nil
}

// Update saves the header with optimistic locking and bumps the in-memory
// version to the stored one.
func (r *BaseDocumentRepo[T]) Update(ctx context.Context, entity T) error {
	q, version, err := r.updateQuery(entity)
	if err != nil {
		return err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(fmt.Errorf("update %s: %w", r.table.Name, err))
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(r.table.Name, postgres.StructToMap(entity)["id"])
	}

	entity.SetVersion(version + 1)
	return nil
}

// Delete removes a document. Lines go with it through ON DELETE CASCADE.
func (r *BaseDocumentRepo[T]) Delete(ctx context.Context, entityID id.ID) error {
	sql, args, err := r.Builder().
		Delete(r.table.Name).
		Where(squirrel.Eq{"id": entityID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(fmt.Errorf("delete %s: %w", r.table.Name, err))
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(r.table.Name, entityID.String())
	}
	return nil
}

func (r *BaseDocumentRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().Select(r.selectCols...).From(r.table.Name)
}

// GetByID retrieves a document header by ID.
func (r *BaseDocumentRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": entityID}), entityID)
}

// GetForUpdate retrieves a document header and locks its row until the
// transaction ends.
func (r *BaseDocumentRepo[T]) GetForUpdate(ctx context.Context, entityID id.ID) (T, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": entityID}).Suffix("FOR UPDATE"), entityID)
}

func (r *BaseDocumentRepo[T]) getOne(ctx context.Context, q squirrel.SelectBuilder, entityID id.ID) (T, error) {
	entity := r.newFn()
	sql, args, err := q.ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.Querier(ctx), entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.table.Name, entityID.String())
		}
		return entity, postgres.TranslateError(fmt.Errorf("get %s: %w", r.table.Name, err))
	}
	return entity, nil
}

// listQuery applies ListFilter without paging.
func (r *BaseDocumentRepo[T]) listQuery(filter domain.ListFilter) squirrel.SelectBuilder {
	q := r.baseSelect()

	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + s + "%"
		or := squirrel.Or{squirrel.ILike{"code": pattern}}
		for _, col := range r.table.SearchColumns {
			or = append(or, squirrel.ILike{col: pattern})
		}
		q = q.Where(or)
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{r.table.DateColumn: *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{r.table.DateColumn: *filter.To})
	}
	return q
}

// List retrieves document headers, newest code first.
func (r *BaseDocumentRepo[T]) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{
		Items:  []T{},
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	q := r.listQuery(filter)
	querier := r.Querier(ctx)

	countSQL, countArgs, err := r.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count %s: %w", r.table.Name, err)
	}

	q = q.OrderBy("code DESC")
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
		return result, fmt.Errorf("list %s: %w", r.table.Name, err)
	}
	return result, nil
}
