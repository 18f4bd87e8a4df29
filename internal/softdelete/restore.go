package softdelete

import (
	"context"
	"errors"
	"fmt"

	"catalog-service/internal/domain"
	"catalog-service/internal/query"
	"catalog-service/internal/schema"
	"catalog-service/internal/store"
)

// ErrNotDeleted is returned when restoring a record that is live.
var ErrNotDeleted = errors.New("softdelete: record is not deleted")

// Restorer brings soft-deleted records back. Restoring is an explicit call;
// the Mediator never does it on its own.
type Restorer[T any] struct {
	m        *Mediator[T]
	resolver *Resolver
}

// NewRestorer builds a Restorer over m. m must wrap a soft-deletable model.
func NewRestorer[T any](m *Mediator[T]) (*Restorer[T], error) {
	if !m.soft {
		return nil, fmt.Errorf("softdelete: model %q is not soft-deletable", m.model)
	}
	o := m.opts
	o.log = m.base.WithComponent("slug-resolver").With("model", string(m.model))
	return &Restorer[T]{m: m, resolver: newResolver(m.store, m.model, o)}, nil
}

// Resolver returns the slug resolver used for restores.
func (r *Restorer[T]) Resolver() *Resolver { return r.resolver }

// Restore clears the deletion marker of record id and gives it back its
// original slug, or the first free numbered variant of it.
func (r *Restorer[T]) Restore(ctx context.Context, id int64) (*T, error) {
	rec, err := r.m.FindUnique(ctx, query.FindUniqueArgs{Where: query.ByID(id)}, ReadOptions{IncludeDeleted: true})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("softdelete: restore %s id=%d: %w", r.m.model, id, store.ErrNotFound)
	}
	current := any(rec).(domain.SoftDeletable)
	if !current.IsDeleted() {
		return nil, fmt.Errorf("softdelete: restore %s id=%d: %w", r.m.model, id, ErrNotDeleted)
	}

	slug, err := r.resolver.ResolveUniqueSlug(ctx, current.GetSlug(), id)
	if err != nil {
		return nil, err
	}
	// Only a still-deleted record is restored; a concurrent restore turns into NotFound.
	restored, err := r.m.Update(ctx,
		query.ByID(id).With(query.NotNull(schema.ColumnDeletedAt)),
		RestorePatch(slug))
	if err != nil {
		return nil, err
	}
	r.m.opts.observer.Restored(string(r.m.model))
	r.m.opts.log.Infow("restored record", "id", id, "slug", slug, "previous_slug", current.GetSlug())
	return restored, nil
}
