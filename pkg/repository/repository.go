// Package repository provides a generic gorm-backed store for simple records.
package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is a typed CRUD store. Filters are model structs; zero-valued
// fields are ignored, following gorm's struct condition semantics.
type Repository[T any] interface {
	WithTx(tx *gorm.DB) Repository[T]
	Create(ctx context.Context, record *T) error
	Save(ctx context.Context, record *T) error
	Delete(ctx context.Context, filter *T) error
	FindOne(ctx context.Context, filter *T, opts ...Option) (*T, error)
	Find(ctx context.Context, filter *T, opts ...Option) ([]*T, error)
	Count(ctx context.Context, filter *T) (int64, error)
}

// Option customizes a query.
type Option func(*gorm.DB) *gorm.DB

func WithLimit(limit int) Option {
	return func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	}
}

func WithOrder(order string) Option {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(order)
	}
}

func WithWhere(query any, args ...any) Option {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	}
}

// ForUpdate locks matched rows until the surrounding transaction ends. Drivers
// without row locks (SQLite) ignore the clause.
func ForUpdate() Option {
	return func(db *gorm.DB) *gorm.DB {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
}

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (s *store[T]) WithTx(tx *gorm.DB) Repository[T] {
	if tx == nil {
		return s
	}
	return &store[T]{db: tx}
}

func (s *store[T]) Create(ctx context.Context, record *T) error {
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *store[T]) Save(ctx context.Context, record *T) error {
	return s.db.WithContext(ctx).Save(record).Error
}

func (s *store[T]) Delete(ctx context.Context, filter *T) error {
	return s.db.WithContext(ctx).Where(filter).Delete(new(T)).Error
}

func (s *store[T]) FindOne(ctx context.Context, filter *T, opts ...Option) (*T, error) {
	var records []*T
	q := apply(s.db.WithContext(ctx).Where(filter), opts)
	if err := q.Limit(1).Find(&records).Error; err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (s *store[T]) Find(ctx context.Context, filter *T, opts ...Option) ([]*T, error) {
	var records []*T
	q := apply(s.db.WithContext(ctx).Where(filter), opts)
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *store[T]) Count(ctx context.Context, filter *T) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(new(T)).Where(filter).Count(&count).Error
	return count, err
}

func apply(db *gorm.DB, opts []Option) *gorm.DB {
	for _, opt := range opts {
		if opt != nil {
			db = opt(db)
		}
	}
	return db
}
