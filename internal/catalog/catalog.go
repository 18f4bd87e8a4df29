// Package catalog implements the storefront use cases on top of the
// soft-delete mediators: categories, products and guest orders.
package catalog

import (
	"errors"
	"fmt"

	"catalog-service/internal/query"
	"catalog-service/internal/schema"
	"catalog-service/internal/softdelete"
	"catalog-service/internal/store"
)

var (
	// ErrNotDeleted is returned when restoring a live record.
	ErrNotDeleted = softdelete.ErrNotDeleted
	// ErrInvalidToken is returned when an order is read with a wrong confirmation token.
	ErrInvalidToken = errors.New("catalog: invalid confirmation token")
	// ErrInvalidInput is returned for requests that fail business validation.
	ErrInvalidInput = errors.New("catalog: invalid input")
	// ErrInsufficientStock is returned when a stock adjustment would go below zero.
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
)

// DefaultPageSize is used when a list request does not set a limit.
const DefaultPageSize = 10

// MaxPageSize caps list requests.
const MaxPageSize = 100

// ReadOptions control a single-record read.
type ReadOptions struct {
	Include        query.Include
	Counts         query.Include
	IncludeDeleted bool
}

// Page selects a window of a list.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func notFound(model schema.Model, key query.Unique) error {
	if key.Slug != "" {
		return fmt.Errorf("catalog: %s slug=%q: %w", model, key.Slug, store.ErrNotFound)
	}
	return fmt.Errorf("catalog: %s id=%d: %w", model, key.ID, store.ErrNotFound)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// live narrows a selector to records that are not soft-deleted.
func live(key query.Unique) query.Unique {
	return key.With(query.IsNull(schema.ColumnDeletedAt))
}
