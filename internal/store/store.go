// Package store is the relational record store: one generic table per entity
// kind, built with squirrel on top of database/sql.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"catalog-service/internal/query"
)

// Predefined errors for store operations
var (
	ErrNotFound        = errors.New("store: record not found")
	ErrUniqueViolation = errors.New("store: unique constraint violation")
)

// UniqueViolationError reports which column rejected a write. It matches ErrUniqueViolation.
type UniqueViolationError struct {
	Table  string
	Column string
	Err    error
}

func (e *UniqueViolationError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("store: unique constraint violation on %s", e.Table)
	}
	return fmt.Sprintf("store: unique constraint violation on %s.%s", e.Table, e.Column)
}

func (e *UniqueViolationError) Is(target error) bool { return target == ErrUniqueViolation }

func (e *UniqueViolationError) Unwrap() error { return e.Err }

// RecordStore is the set of operations available on one entity kind.
//
// FindUnique returns (nil, nil) when nothing matches. Update and Delete return
// ErrNotFound instead. Create and Update return a *UniqueViolationError when a
// unique column rejects the write.
type RecordStore[T any] interface {
	FindUnique(ctx context.Context, args query.FindUniqueArgs) (*T, error)
	FindMany(ctx context.Context, args query.FindArgs) ([]T, error)
	Count(ctx context.Context, where query.Where) (int64, error)
	Aggregate(ctx context.Context, where query.Where, spec query.AggregateSpec) (query.AggregateResult, error)
	GroupBy(ctx context.Context, args query.GroupByArgs) ([]query.Group, error)
	Create(ctx context.Context, data *T) (*T, error)
	Update(ctx context.Context, where query.Unique, patch query.Patch) (*T, error)
	UpdateMany(ctx context.Context, where query.Where, patch query.Patch) (int64, error)
	Delete(ctx context.Context, where query.Unique) (*T, error)
	DeleteMany(ctx context.Context, where query.Where) (int64, error)
}

// DBTX is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
