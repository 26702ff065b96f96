package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm/clause"
)

// Entity gateway errors. Backend errors from gorm are propagated unchanged;
// these two cover the uniqueness contract Get enforces on top of it.
var (
	ErrNotFound  = errors.New("record not found")
	ErrNotUnique = errors.New("multiple records match")
)

// The generic entity gateway. One set of parameterized CRUD functions covers
// every plain entity; the composite entities (paper templates, generated
// papers) layer their multi-table writes on top in template.go and paper.go.
// The gateway holds no cache and sets no timeouts of its own: every read hits
// the database and cancellation is the caller's context.

// List returns all rows of T's table ordered by sortKey.
func List[T any](ctx context.Context, r *Repository, sortKey string, asc bool, preloads ...string) ([]T, error) {
	var rows []T
	q := r.db.WithContext(ctx).Order(orderClause(sortKey, asc))
	for _, p := range preloads {
		q = q.Preload(p)
	}
	if err := q.Find(&rows).Error; err != nil {
		slog.Error("Failed to list records", "error", err, "sort", sortKey)
		return nil, err
	}
	return rows, nil
}

// Filter returns rows matching an exact-match AND conjunction over criteria.
// Keys with a nil value are skipped entirely, not treated as IS NULL.
func Filter[T any](ctx context.Context, r *Repository, criteria map[string]any, sortKey string, asc bool, preloads ...string) ([]T, error) {
	var rows []T
	q := r.db.WithContext(ctx).Order(orderClause(sortKey, asc))
	for column, value := range criteria {
		if value == nil {
			continue
		}
		q = q.Where(clause.Eq{Column: clause.Column{Name: column}, Value: value})
	}
	for _, p := range preloads {
		q = q.Preload(p)
	}
	if err := q.Find(&rows).Error; err != nil {
		slog.Error("Failed to filter records", "error", err, "criteria", criteria)
		return nil, err
	}
	return rows, nil
}

// Get returns the single row with the given id. Zero matches is ErrNotFound,
// more than one is ErrNotUnique.
func Get[T any](ctx context.Context, r *Repository, id string, preloads ...string) (*T, error) {
	var rows []T
	q := r.db.WithContext(ctx).Where("id = ?", id).Limit(2)
	for _, p := range preloads {
		q = q.Preload(p)
	}
	if err := q.Find(&rows).Error; err != nil {
		slog.Error("Failed to get record", "error", err, "id", id)
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
	case 1:
		return &rows[0], nil
	default:
		return nil, fmt.Errorf("%w: id %s", ErrNotUnique, id)
	}
}

// Create inserts one row and returns it with generated fields populated.
func Create[T any](ctx context.Context, r *Repository, record *T) (*T, error) {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		slog.Error("Failed to create record", "error", err)
		return nil, err
	}
	return record, nil
}

// Update applies a partial column update to the row with the given id and
// returns the updated row.
func Update[T any](ctx context.Context, r *Repository, id string, changes map[string]any) (*T, error) {
	res := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		slog.Error("Failed to update record", "error", res.Error, "id", id)
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	return Get[T](ctx, r, id)
}

// Delete removes the row with the given id. Deleting zero rows is not an
// error; the acknowledgement relies on the backend's delete semantics.
func Delete[T any](ctx context.Context, r *Repository, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(new(T)).Error; err != nil {
		slog.Error("Failed to delete record", "error", err, "id", id)
		return err
	}
	return nil
}

func orderClause(sortKey string, asc bool) clause.OrderByColumn {
	return clause.OrderByColumn{
		Column: clause.Column{Name: sortKey},
		Desc:   !asc,
	}
}
