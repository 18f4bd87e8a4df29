package softdelete

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"catalog-service/internal/query"
	"catalog-service/internal/schema"
)

var deletedSuffix = regexp.MustCompile(`-deleted-\d+$`)

// DeletedSlug is the slug a record carries while soft-deleted.
func DeletedSlug(slug string, at time.Time) string {
	return fmt.Sprintf("%s-deleted-%d", slug, at.Unix())
}

// OriginalSlug strips the suffix added by DeletedSlug.
func OriginalSlug(slug string) string {
	return deletedSuffix.ReplaceAllString(slug, "")
}

// RestorePatch brings a soft-deleted record back under slug.
func RestorePatch(slug string) query.Patch {
	return query.NewPatch().
		Set(schema.ColumnDeletedAt, nil).
		Set(schema.ColumnIsActive, true).
		Set(schema.ColumnSlug, slug)
}

// ErrEmptySlug is returned when a candidate has nothing left once the deletion suffix is removed.
var ErrEmptySlug = errors.New("softdelete: empty slug")

// Counter is the part of a record store the Resolver probes.
type Counter interface {
	Count(ctx context.Context, where query.Where) (int64, error)
}

// Resolver finds a free slug for a record being restored.
type Resolver struct {
	counter Counter
	model   schema.Model
	opts    options
}

// NewResolver probes through counter, which must see soft-deleted rows too:
// they still hold their slug in the unique index.
func NewResolver(counter Counter, model schema.Model, opts ...Option) *Resolver {
	o := buildOptions(opts)
	o.log = o.log.WithComponent("slug-resolver").With("model", string(model))
	return newResolver(counter, model, o)
}

func newResolver(counter Counter, model schema.Model, o options) *Resolver {
	return &Resolver{counter: counter, model: model, opts: o}
}

// ResolveUniqueSlug strips any deletion suffix from candidate and returns the
// first of base, base-1, base-2, ... that no record other than excludeID holds.
// The answer is not reserved; the unique index rejects a concurrent taker.
func (r *Resolver) ResolveUniqueSlug(ctx context.Context, candidate string, excludeID int64) (string, error) {
	base := OriginalSlug(candidate)
	if base == "" {
		return "", fmt.Errorf("%w: %q", ErrEmptySlug, candidate)
	}

	slug := base
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		where := query.NewWhere(query.Eq(schema.ColumnSlug, slug))
		if excludeID != 0 {
			where = where.And(query.NotEq(schema.ColumnID, excludeID))
		}
		taken, err := r.counter.Count(ctx, where)
		if err != nil {
			return "", fmt.Errorf("softdelete: probe slug %q: %w", slug, err)
		}
		if taken == 0 {
			return slug, nil
		}
		r.opts.observer.SlugCollision(string(r.model))
		r.opts.log.Debugw("slug taken", "slug", slug)
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}
