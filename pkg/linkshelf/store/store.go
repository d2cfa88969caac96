// Package store provides typed CRUD access to persisted entities on top of
// gorm. Every call is atomic on its own; callers compose several calls into
// one transaction with WithTx.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikepea/linkshelf/pkg/linkshelf/errx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scope narrows a query. Scopes are shared by the count and fetch halves of
// List, so they must not add ordering or pagination.
type Scope = func(*gorm.DB) *gorm.DB

// Page selects a 1-based page of Size items. The zero Page disables
// pagination.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// ListOptions controls List.
type ListOptions struct {
	Scopes   []Scope
	Preloads []string
	Order    string
	Page     Page
}

// Store gives typed access to one entity type. Name is used in error
// messages ("Topic not found").
type Store[T any] struct {
	db   *gorm.DB
	name string
}

// New creates a store for entities of type T.
func New[T any](db *gorm.DB, name string) *Store[T] {
	return &Store[T]{db: db, name: name}
}

// WithTx returns a copy of the store bound to an open transaction.
func (s *Store[T]) WithTx(tx *gorm.DB) *Store[T] {
	return &Store[T]{db: tx, name: s.name}
}

// DB returns the underlying handle bound to ctx.
func (s *Store[T]) DB(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func idEq(id any) clause.Expression {
	return clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "id"}, Value: id}
}

// Get loads one entity by primary key.
func (s *Store[T]) Get(ctx context.Context, id any, preloads ...string) (*T, error) {
	q := s.db.WithContext(ctx)
	for _, p := range preloads {
		q = q.Preload(p)
	}

	var entity T
	if err := q.Where(idEq(id)).First(&entity).Error; err != nil {
		return nil, Translate("store.Get", s.name, err)
	}
	return &entity, nil
}

// Find loads the first entity matching the scopes.
func (s *Store[T]) Find(ctx context.Context, scopes ...Scope) (*T, error) {
	var entity T
	if err := s.db.WithContext(ctx).Scopes(scopes...).First(&entity).Error; err != nil {
		return nil, Translate("store.Find", s.name, err)
	}
	return &entity, nil
}

// List returns one page of entities and the total number matching the
// scopes. A page past the end yields no items and the real total.
func (s *Store[T]) List(ctx context.Context, opts ListOptions) ([]T, int64, error) {
	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(new(T)).Scopes(opts.Scopes...)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, Translate("store.List", s.name, err)
	}

	items := []T{}
	if total == 0 || (opts.Page.Size > 0 && int64(opts.Page.Offset()) >= total) {
		return items, total, nil
	}

	q := base()
	for _, p := range opts.Preloads {
		q = q.Preload(p)
	}
	if opts.Order != "" {
		q = q.Order(opts.Order)
	}
	if opts.Page.Size > 0 {
		q = q.Offset(opts.Page.Offset()).Limit(opts.Page.Size)
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, 0, Translate("store.List", s.name, err)
	}
	return items, total, nil
}

// Count returns the number of entities matching the scopes.
func (s *Store[T]) Count(ctx context.Context, scopes ...Scope) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(new(T)).Scopes(scopes...).Count(&n).Error; err != nil {
		return 0, Translate("store.Count", s.name, err)
	}
	return n, nil
}

// Create inserts entity and fills its generated fields.
func (s *Store[T]) Create(ctx context.Context, entity *T) error {
	return Translate("store.Create", s.name, s.db.WithContext(ctx).Create(entity).Error)
}

// Update applies patch (column -> value) to the entity with the given id
// and returns the updated row.
func (s *Store[T]) Update(ctx context.Context, id any, patch map[string]any) (*T, error) {
	var entity T
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(idEq(id)).First(&entity).Error; err != nil {
			return err
		}
		if len(patch) == 0 {
			return nil
		}
		if err := tx.Model(&entity).Updates(patch).Error; err != nil {
			return err
		}
		return tx.Where(idEq(id)).First(&entity).Error
	})
	if err != nil {
		return nil, Translate("store.Update", s.name, err)
	}
	return &entity, nil
}

// Delete removes the entity with the given id.
func (s *Store[T]) Delete(ctx context.Context, id any) error {
	res := s.db.WithContext(ctx).Where(idEq(id)).Delete(new(T))
	if res.Error != nil {
		return Translate("store.Delete", s.name, res.Error)
	}
	if res.RowsAffected == 0 {
		return Translate("store.Delete", s.name, gorm.ErrRecordNotFound)
	}
	return nil
}

// Translate maps gorm errors onto errx kinds.
func Translate(op, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case errx.KindOf(err) != errx.Unknown:
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errx.E(op, errx.NotFound, fmt.Errorf("%s not found", name))
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errx.E(op, errx.Conflict, fmt.Errorf("%s already exists", name))
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return errx.E(op, errx.Conflict, fmt.Errorf("%s is still referenced", name))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errx.E(op, errx.Timeout, err)
	default:
		return errx.E(op, errx.Internal, err)
	}
}
