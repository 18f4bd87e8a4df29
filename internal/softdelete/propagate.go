package softdelete

import (
	"fmt"

	"catalog-service/internal/query"
	"catalog-service/internal/schema"
)

// Propagate returns a copy of inc, an expansion of model's relations, in which
// every relation that targets a soft-deletable model only matches live records.
// A node marked IncludeDeleted keeps deleted records for that relation alone;
// its own nested relations are still filtered. Relation names unknown to reg
// and nil nodes fail with query.ErrMalformedInclude. inc is not modified.
func Propagate(reg *schema.Registry, model schema.Model, inc query.Include) (query.Include, error) {
	if inc == nil {
		return nil, nil
	}
	out := make(query.Include, len(inc))
	for _, name := range inc.Names() {
		node := inc[name]
		if node == nil {
			return nil, fmt.Errorf("%w: %s.%s has no expansion node", query.ErrMalformedInclude, model, name)
		}
		rel, ok := reg.Relation(model, name)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no relation %q", query.ErrMalformedInclude, model, name)
		}

		scoped := node.Clone()
		if reg.IsSoftDeletable(rel.Target) && !node.IncludeDeleted {
			scoped.Where = scoped.Where.Set(query.IsNull(schema.ColumnDeletedAt))
		}

		var err error
		if scoped.Include, err = Propagate(reg, rel.Target, node.Include); err != nil {
			return nil, err
		}
		if scoped.Counts, err = Propagate(reg, rel.Target, node.Counts); err != nil {
			return nil, err
		}
		out[name] = scoped
	}
	return out, nil
}
