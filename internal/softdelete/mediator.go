// Package softdelete sits between the service layer and the record store. For
// soft-deletable models it turns deletes into updates that hide the record,
// and keeps hidden records out of reads, including expanded relations.
package softdelete

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog-service/internal/domain"
	"catalog-service/internal/logger"
	"catalog-service/internal/query"
	"catalog-service/internal/schema"
	"catalog-service/internal/store"
)

// deletedSlugAttempts bounds how many later timestamps Delete tries when the
// suffixed slug is already taken.
const deletedSlugAttempts = 5

// ReadOptions modify a single read.
type ReadOptions struct {
	// IncludeDeleted returns soft-deleted records at the top level of the read.
	// Expanded relations are still filtered unless their node sets IncludeDeleted.
	IncludeDeleted bool
}

// Observer is notified of soft-delete activity. *metrics.Recorder implements it.
type Observer interface {
	SoftDeleted(model string, bulk bool, n int64)
	Restored(model string)
	SlugCollision(model string)
}

type nopObserver struct{}

func (nopObserver) SoftDeleted(string, bool, int64) {}
func (nopObserver) Restored(string)                 {}
func (nopObserver) SlugCollision(string)            {}

type options struct {
	now      func() time.Time
	log      *logger.Logger
	observer Observer
}

// Option configures a Mediator or a Resolver.
type Option func(*options)

// WithClock overrides the time source used for deletion timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithObserver sets the activity observer.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

func buildOptions(opts []Option) options {
	o := options{
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.Nop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Mediator wraps the record store of one model.
type Mediator[T any] struct {
	store store.RecordStore[T]
	model schema.Model
	reg   *schema.Registry
	soft  bool
	opts  options
	// base is the logger before New scoped it to this component.
	base *logger.Logger
}

// New wraps s, the store of model. It fails when model is unknown to reg or
// when T's SoftDeletable marker disagrees with the registry.
func New[T any](s store.RecordStore[T], model schema.Model, reg *schema.Registry, opts ...Option) (*Mediator[T], error) {
	desc, ok := reg.Descriptor(model)
	if !ok {
		return nil, fmt.Errorf("softdelete: model %q is not registered", model)
	}
	if marked := domain.IsSoftDeletable[T](); marked != desc.SoftDeletable {
		return nil, fmt.Errorf("softdelete: model %q: type %T soft-deletable=%t but registry says %t",
			model, *new(T), marked, desc.SoftDeletable)
	}
	o := buildOptions(opts)
	base := o.log
	o.log = base.WithComponent("softdelete").With("model", string(model))
	return &Mediator[T]{store: s, model: model, reg: reg, soft: desc.SoftDeletable, opts: o, base: base}, nil
}

// Model returns the wrapped model.
func (m *Mediator[T]) Model() schema.Model { return m.model }

// SoftDeletable reports whether deletes of this model are soft.
func (m *Mediator[T]) SoftDeletable() bool { return m.soft }

// Unscoped returns the underlying store. Reads through it see soft-deleted
// records and deletes through it are physical.
func (m *Mediator[T]) Unscoped() store.RecordStore[T] { return m.store }

func (m *Mediator[T]) scope(where query.Where, opts ReadOptions) query.Where {
	if !m.soft || opts.IncludeDeleted {
		return where
	}
	return where.Set(query.IsNull(schema.ColumnDeletedAt))
}

// FindUnique returns the matching record or (nil, nil).
func (m *Mediator[T]) FindUnique(ctx context.Context, args query.FindUniqueArgs, opts ReadOptions) (*T, error) {
	var err error
	if args.Include, err = Propagate(m.reg, m.model, args.Include); err != nil {
		return nil, err
	}
	if args.Counts, err = Propagate(m.reg, m.model, args.Counts); err != nil {
		return nil, err
	}
	args.Where.Extra = m.scope(args.Where.Extra, opts)
	return m.store.FindUnique(ctx, args)
}

// FindMany returns the matching records.
func (m *Mediator[T]) FindMany(ctx context.Context, args query.FindArgs, opts ReadOptions) ([]T, error) {
	var err error
	if args.Include, err = Propagate(m.reg, m.model, args.Include); err != nil {
		return nil, err
	}
	if args.Counts, err = Propagate(m.reg, m.model, args.Counts); err != nil {
		return nil, err
	}
	args.Where = m.scope(args.Where, opts)
	return m.store.FindMany(ctx, args)
}

// Count counts the matching records.
func (m *Mediator[T]) Count(ctx context.Context, where query.Where, opts ReadOptions) (int64, error) {
	return m.store.Count(ctx, m.scope(where, opts))
}

// Aggregate computes aggregates over the matching records.
func (m *Mediator[T]) Aggregate(ctx context.Context, where query.Where, spec query.AggregateSpec, opts ReadOptions) (query.AggregateResult, error) {
	return m.store.Aggregate(ctx, m.scope(where, opts), spec)
}

// GroupBy computes grouped aggregates over the matching records.
func (m *Mediator[T]) GroupBy(ctx context.Context, args query.GroupByArgs, opts ReadOptions) ([]query.Group, error) {
	args.Where = m.scope(args.Where, opts)
	return m.store.GroupBy(ctx, args)
}

// Create inserts data unchanged.
func (m *Mediator[T]) Create(ctx context.Context, data *T) (*T, error) {
	return m.store.Create(ctx, data)
}

// Update applies patch to the record matching where, deleted or not.
func (m *Mediator[T]) Update(ctx context.Context, where query.Unique, patch query.Patch) (*T, error) {
	return m.store.Update(ctx, where, patch)
}

// UpdateMany applies patch to every record matching where, deleted or not.
func (m *Mediator[T]) UpdateMany(ctx context.Context, where query.Where, patch query.Patch) (int64, error) {
	return m.store.UpdateMany(ctx, where, patch)
}

// Delete removes the record matching where. For soft-deletable models the
// record is hidden instead: it gets a deletion time, loses its active flag and
// its slug is suffixed so the original value can be taken by another record.
// Deleting a missing or already deleted record fails with store.ErrNotFound.
func (m *Mediator[T]) Delete(ctx context.Context, where query.Unique) (*T, error) {
	if !m.soft {
		return m.store.Delete(ctx, where)
	}

	live := where.With(query.IsNull(schema.ColumnDeletedAt))
	found, err := m.store.FindUnique(ctx, query.FindUniqueArgs{
		Where:  live,
		Select: []string{schema.ColumnSlug},
	})
	if err != nil {
		return nil, err
	}

	now := m.opts.now()
	patch := query.NewPatch().
		Set(schema.ColumnDeletedAt, now).
		Set(schema.ColumnIsActive, false)
	if found == nil {
		// Let the store report the miss the same way a direct update would.
		return m.store.Update(ctx, live, patch)
	}

	slug := any(found).(domain.SoftDeletable).GetSlug()
	var deleted *T
	for attempt := 0; ; attempt++ {
		// A record deleted under the same slug earlier in this second already
		// holds the suffixed slug, so stamp the next second instead.
		stamp := now.Add(time.Duration(attempt) * time.Second)
		deleted, err = m.store.Update(ctx, live, patch.Set(schema.ColumnSlug, DeletedSlug(slug, stamp)))
		if err == nil || !errors.Is(err, store.ErrUniqueViolation) || attempt == deletedSlugAttempts-1 {
			break
		}
		m.opts.log.Debugw("deleted slug taken, retrying", "slug", slug, "attempt", attempt+1)
	}
	if err != nil {
		return nil, err
	}
	m.opts.observer.SoftDeleted(string(m.model), false, 1)
	m.opts.log.Infow("soft-deleted record", "slug", slug)
	return deleted, nil
}

// DeleteMany removes every record matching where. For soft-deletable models
// the live matches are hidden instead; their slugs are left as they are.
func (m *Mediator[T]) DeleteMany(ctx context.Context, where query.Where) (int64, error) {
	if !m.soft {
		return m.store.DeleteMany(ctx, where)
	}
	n, err := m.store.UpdateMany(ctx,
		where.Set(query.IsNull(schema.ColumnDeletedAt)),
		query.NewPatch().
			Set(schema.ColumnDeletedAt, m.opts.now()).
			Set(schema.ColumnIsActive, false))
	if err != nil {
		return 0, err
	}
	m.opts.observer.SoftDeleted(string(m.model), true, n)
	m.opts.log.Infow("bulk soft-deleted records", "count", n)
	return n, nil
}
