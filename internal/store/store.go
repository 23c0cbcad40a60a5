// Package store is the table-oriented CRUD surface the controllers persist
// through. Tables are addressed by name; rows are gorm models.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInvalidColumn = errors.New("invalid column name")

var columnPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Eq matches rows whose Column equals Value.
type Eq struct {
	Column string
	Value  any
}

type Order struct {
	Column string
	Desc   bool
}

type Query struct {
	Where []Eq
	Order []Order
	Limit int
}

type Store interface {
	Select(ctx context.Context, table string, q Query, dest any) error
	Insert(ctx context.Context, table string, row any) error
	Update(ctx context.Context, table string, where Eq, values map[string]any) error
	Delete(ctx context.Context, table string, where Eq) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Select(ctx context.Context, table string, q Query, dest any) error {
	tx := s.db.WithContext(ctx).Table(table)
	for _, w := range q.Where {
		if !columnPattern.MatchString(w.Column) {
			return fmt.Errorf("select %s failed: %w: %q", table, ErrInvalidColumn, w.Column)
		}
		tx = tx.Where(clause.Eq{Column: clause.Column{Name: w.Column}, Value: w.Value})
	}
	for _, o := range q.Order {
		if !columnPattern.MatchString(o.Column) {
			return fmt.Errorf("select %s failed: %w: %q", table, ErrInvalidColumn, o.Column)
		}
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: o.Desc})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if err := tx.Find(dest).Error; err != nil {
		return fmt.Errorf("select %s failed: %w", table, err)
	}
	return nil
}

func (s *GormStore) Insert(ctx context.Context, table string, row any) error {
	if err := s.db.WithContext(ctx).Table(table).Create(row).Error; err != nil {
		return fmt.Errorf("insert %s failed: %w", table, err)
	}
	return nil
}

func (s *GormStore) Update(ctx context.Context, table string, where Eq, values map[string]any) error {
	if !columnPattern.MatchString(where.Column) {
		return fmt.Errorf("update %s failed: %w: %q", table, ErrInvalidColumn, where.Column)
	}
	err := s.db.WithContext(ctx).
		Table(table).
		Where(clause.Eq{Column: clause.Column{Name: where.Column}, Value: where.Value}).
		Updates(values).Error
	if err != nil {
		return fmt.Errorf("update %s failed: %w", table, err)
	}
	return nil
}

// Delete removes every row matching where. Deleting nothing is not an error.
func (s *GormStore) Delete(ctx context.Context, table string, where Eq) error {
	if !columnPattern.MatchString(where.Column) {
		return fmt.Errorf("delete %s failed: %w: %q", table, ErrInvalidColumn, where.Column)
	}
	err := s.db.WithContext(ctx).
		Table(table).
		Where(clause.Eq{Column: clause.Column{Name: where.Column}, Value: where.Value}).
		Delete(map[string]any{}).Error
	if err != nil {
		return fmt.Errorf("delete %s failed: %w", table, err)
	}
	return nil
}
