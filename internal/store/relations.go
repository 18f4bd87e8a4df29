package store

import (
	"context"
	"strconv"

	"catalog-service/internal/query"
	"catalog-service/internal/schema"
)

func collectIDs[P any](parents []P, get func(*P) *int64) []int64 {
	seen := make(map[int64]bool, len(parents))
	ids := make([]int64, 0, len(parents))
	for i := range parents {
		ref := get(&parents[i])
		if ref == nil || seen[*ref] {
			continue
		}
		seen[*ref] = true
		ids = append(ids, *ref)
	}
	return ids
}

// belongsTo loads a relation whose foreign key lives on the parent. A parent
// whose target is filtered out by the node is left with a nil relation.
func belongsTo[P, C any](target *Table[C], fk func(*P) *int64, id func(*C) int64, assign func(*P, *C)) relationLoader[P] {
	return func(ctx context.Context, parents []P, node *query.Node) error {
		ids := collectIDs(parents, fk)
		if len(ids) == 0 {
			return nil
		}
		related, err := target.FindMany(ctx, query.FindArgs{
			Where:   node.Where.And(query.In(schema.ColumnID, ids)),
			Include: node.Include,
			Counts:  node.Counts,
		})
		if err != nil {
			return err
		}
		byID := make(map[int64]*C, len(related))
		for i := range related {
			byID[id(&related[i])] = &related[i]
		}
		for i := range parents {
			ref := fk(&parents[i])
			if ref == nil {
				continue
			}
			if c, ok := byID[*ref]; ok {
				assign(&parents[i], c)
			}
		}
		return nil
	}
}

// hasMany loads a relation whose foreign key lives on the related records,
// with the node's ordering and a per-parent limit.
func hasMany[P, C any](target *Table[C], fkColumn string, id func(*P) int64, fk func(*C) *int64, assign func(*P, []C)) relationLoader[P] {
	return func(ctx context.Context, parents []P, node *query.Node) error {
		ids := collectIDs(parents, func(p *P) *int64 { v := id(p); return &v })
		related, err := target.FindMany(ctx, query.FindArgs{
			Where:   node.Where.And(query.In(fkColumn, ids)),
			Include: node.Include,
			Counts:  node.Counts,
			OrderBy: node.OrderBy,
		})
		if err != nil {
			return err
		}
		grouped := make(map[int64][]C, len(ids))
		for i := range related {
			if ref := fk(&related[i]); ref != nil {
				grouped[*ref] = append(grouped[*ref], related[i])
			}
		}
		for i := range parents {
			group := grouped[id(&parents[i])]
			if node.Limit > 0 && len(group) > node.Limit {
				group = group[:node.Limit]
			}
			if group == nil {
				group = []C{}
			}
			assign(&parents[i], group)
		}
		return nil
	}
}

// countMany reports the size of a has-many relation, honouring the node's filter.
func countMany[P, C any](target *Table[C], fkColumn string, id func(*P) int64, assign func(*P, int64)) relationLoader[P] {
	return func(ctx context.Context, parents []P, node *query.Node) error {
		ids := collectIDs(parents, func(p *P) *int64 { v := id(p); return &v })
		groups, err := target.GroupBy(ctx, query.GroupByArgs{
			By:        []string{fkColumn},
			Where:     node.Where.And(query.In(fkColumn, ids)),
			Aggregate: query.AggregateSpec{Count: true},
		})
		if err != nil {
			return err
		}
		counts := make(map[int64]int64, len(groups))
		for _, g := range groups {
			if k, ok := toInt64(g.Keys[fkColumn]); ok {
				counts[k] = g.Result.Count
			}
		}
		for i := range parents {
			assign(&parents[i], counts[id(&parents[i])])
		}
		return nil
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}
