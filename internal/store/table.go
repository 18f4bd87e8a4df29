package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"catalog-service/internal/query"
	"catalog-service/internal/schema"
)

// relationLoader fills one relation (or relation count) of every item in place.
type relationLoader[T any] func(ctx context.Context, items []T, node *query.Node) error

// Table implements RecordStore for one entity kind.
type Table[T any] struct {
	db      DBTX
	dialect Dialect
	desc    *schema.Descriptor
	// fields maps every column to a pointer into the record, used for scanning and inserts.
	fields    func(*T) map[string]any
	relations map[string]relationLoader[T]
	counts    map[string]relationLoader[T]
	now       func() time.Time
}

func newTable[T any](db DBTX, dialect Dialect, desc *schema.Descriptor, fields func(*T) map[string]any) *Table[T] {
	return &Table[T]{
		db:        db,
		dialect:   dialect,
		desc:      desc,
		fields:    fields,
		relations: map[string]relationLoader[T]{},
		counts:    map[string]relationLoader[T]{},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Descriptor returns the schema of the table.
func (t *Table[T]) Descriptor() *schema.Descriptor { return t.desc }

func (t *Table[T]) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(t.dialect.Placeholder())
}

type whereable[B any] interface {
	Where(pred any, args ...any) B
}

func applyWhere[B whereable[B]](b B, preds []squirrel.Sqlizer) B {
	for _, p := range preds {
		b = b.Where(p)
	}
	return b
}

func (t *Table[T]) checkColumn(col string) error {
	if !t.desc.HasColumn(col) {
		return fmt.Errorf("%w: %s.%s", query.ErrUnknownField, t.desc.Table, col)
	}
	return nil
}

// predicates converts w into squirrel predicates, rejecting columns the table does not have.
func (t *Table[T]) predicates(w query.Where) ([]squirrel.Sqlizer, error) {
	conds := w.Conds()
	preds := make([]squirrel.Sqlizer, 0, len(conds))
	for _, c := range conds {
		if err := t.checkColumn(c.Field); err != nil {
			return nil, err
		}
		var p squirrel.Sqlizer
		switch c.Op {
		case query.OpEq:
			p = squirrel.Eq{c.Field: c.Value}
		case query.OpNotEq:
			p = squirrel.NotEq{c.Field: c.Value}
		case query.OpIn:
			if c.Value == nil || reflect.TypeOf(c.Value).Kind() != reflect.Slice {
				return nil, fmt.Errorf("store: %s.%s: IN expects a list, got %T", t.desc.Table, c.Field, c.Value)
			}
			p = squirrel.Eq{c.Field: c.Value}
		case query.OpIsNull:
			p = squirrel.Eq{c.Field: nil}
		case query.OpNotNull:
			p = squirrel.NotEq{c.Field: nil}
		case query.OpGt:
			p = squirrel.Gt{c.Field: c.Value}
		case query.OpGte:
			p = squirrel.GtOrEq{c.Field: c.Value}
		case query.OpLt:
			p = squirrel.Lt{c.Field: c.Value}
		case query.OpLte:
			p = squirrel.LtOrEq{c.Field: c.Value}
		case query.OpContains:
			// LOWER/LIKE rather than ILIKE so both dialects accept it.
			pattern := "%" + strings.ToLower(fmt.Sprint(c.Value)) + "%"
			p = squirrel.Expr("LOWER("+c.Field+") LIKE ?", pattern)
		default:
			return nil, fmt.Errorf("store: %s.%s: unsupported operator %q", t.desc.Table, c.Field, c.Op)
		}
		preds = append(preds, p)
	}
	return preds, nil
}

// columns resolves a projection. Relation expansion needs the primary key and
// the belongs-to foreign keys, so those are added when relations are requested.
func (t *Table[T]) columns(sel []string, include, counts query.Include) ([]string, error) {
	if len(sel) == 0 {
		return t.desc.Columns, nil
	}
	seen := make(map[string]bool, len(sel))
	cols := make([]string, 0, len(sel)+2)
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	for _, c := range sel {
		if err := t.checkColumn(c); err != nil {
			return nil, err
		}
		add(c)
	}
	if len(include) > 0 || len(counts) > 0 {
		add(schema.ColumnID)
		for _, name := range include.Names() {
			if rel, ok := t.desc.Relations[name]; ok && rel.Kind == schema.BelongsTo {
				add(rel.ForeignKey)
			}
		}
	}
	return cols, nil
}

// orderBy parses "name" / "-price" style fields. Rows are always tie-broken by id.
func (t *Table[T]) orderBy(fields []string) ([]string, error) {
	out := make([]string, 0, len(fields)+1)
	byID := false
	for _, f := range fields {
		dir := "ASC"
		if strings.HasPrefix(f, "-") {
			dir = "DESC"
			f = f[1:]
		}
		if err := t.checkColumn(f); err != nil {
			return nil, err
		}
		if f == schema.ColumnID {
			byID = true
		}
		out = append(out, f+" "+dir)
	}
	if !byID {
		out = append(out, schema.ColumnID+" ASC")
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (t *Table[T]) scan(row rowScanner, cols []string) (T, error) {
	var item T
	f := t.fields(&item)
	dest := make([]any, len(cols))
	for i, c := range cols {
		dest[i] = f[c]
	}
	err := row.Scan(dest...)
	return item, err
}

func (t *Table[T]) returning() string {
	return "RETURNING " + strings.Join(t.desc.Columns, ", ")
}

func (t *Table[T]) writeError(op string, err error) error {
	if col, ok := t.dialect.UniqueViolation(err); ok {
		return &UniqueViolationError{Table: t.desc.Table, Column: col, Err: err}
	}
	return fmt.Errorf("store: %s %s: %w", op, t.desc.Table, err)
}

func describe(u query.Unique) string {
	if u.ID != 0 {
		return fmt.Sprintf("id=%d", u.ID)
	}
	return fmt.Sprintf("slug=%q", u.Slug)
}

// FindUnique returns the record matching where, or (nil, nil) when there is none.
func (t *Table[T]) FindUnique(ctx context.Context, args query.FindUniqueArgs) (*T, error) {
	if !args.Where.Valid() {
		return nil, fmt.Errorf("store: find %s: selector needs exactly one of id or slug", t.desc.Table)
	}
	cols, err := t.columns(args.Select, args.Include, args.Counts)
	if err != nil {
		return nil, err
	}
	preds, err := t.predicates(args.Where.Where())
	if err != nil {
		return nil, err
	}

	q := applyWhere(t.builder().Select(cols...).From(t.desc.Table), preds).Limit(1)
	sqlStr, sqlArgs, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build find %s: %w", t.desc.Table, err)
	}

	item, err := t.scan(t.db.QueryRowContext(ctx, sqlStr, sqlArgs...), cols)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find %s %s: %w", t.desc.Table, describe(args.Where), err)
	}

	items := []T{item}
	if err := t.loadRelations(ctx, items, args.Include, args.Counts); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// FindMany returns every record matching args.Where with the requested relations loaded.
func (t *Table[T]) FindMany(ctx context.Context, args query.FindArgs) ([]T, error) {
	cols, err := t.columns(args.Select, args.Include, args.Counts)
	if err != nil {
		return nil, err
	}
	preds, err := t.predicates(args.Where)
	if err != nil {
		return nil, err
	}
	order, err := t.orderBy(args.OrderBy)
	if err != nil {
		return nil, err
	}

	q := applyWhere(t.builder().Select(cols...).From(t.desc.Table), preds).OrderBy(order...)
	if args.Limit > 0 {
		q = q.Limit(uint64(args.Limit))
	}
	if args.Offset > 0 {
		q = q.Offset(uint64(args.Offset))
	}
	sqlStr, sqlArgs, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build list %s: %w", t.desc.Table, err)
	}

	items, err := t.queryAll(ctx, cols, sqlStr, sqlArgs)
	if err != nil {
		return nil, err
	}
	if err := t.loadRelations(ctx, items, args.Include, args.Counts); err != nil {
		return nil, err
	}
	return items, nil
}

// queryAll drains the result set before returning so relation queries can reuse the connection.
func (t *Table[T]) queryAll(ctx context.Context, cols []string, sqlStr string, args []any) ([]T, error) {
	rows, err := t.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", t.desc.Table, err)
	}
	defer rows.Close()

	items := make([]T, 0)
	for rows.Next() {
		item, err := t.scan(rows, cols)
		if err != nil {
			return nil, fmt.Errorf("store: scan %s row: %w", t.desc.Table, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list %s iteration error: %w", t.desc.Table, err)
	}
	return items, nil
}

// Count returns the number of records matching where.
func (t *Table[T]) Count(ctx context.Context, where query.Where) (int64, error) {
	preds, err := t.predicates(where)
	if err != nil {
		return 0, err
	}
	sqlStr, args, err := applyWhere(t.builder().Select("COUNT(*)").From(t.desc.Table), preds).ToSql()
	if err != nil {
		return 0, fmt.Errorf("store: build count %s: %w", t.desc.Table, err)
	}
	var n int64
	if err := t.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count %s: %w", t.desc.Table, err)
	}
	return n, nil
}

type aggregateTarget struct {
	fn     string
	column string
}

func (t *Table[T]) aggregateExprs(spec query.AggregateSpec) ([]string, []aggregateTarget, error) {
	var exprs []string
	var targets []aggregateTarget
	if spec.Count {
		exprs = append(exprs, "COUNT(*)")
		targets = append(targets, aggregateTarget{fn: "COUNT"})
	}
	groups := []struct {
		fn   string
		cols []string
	}{{"SUM", spec.Sum}, {"AVG", spec.Avg}, {"MIN", spec.Min}, {"MAX", spec.Max}}
	for _, g := range groups {
		for _, c := range g.cols {
			if err := t.checkColumn(c); err != nil {
				return nil, nil, err
			}
			exprs = append(exprs, g.fn+"("+c+")")
			targets = append(targets, aggregateTarget{fn: g.fn, column: c})
		}
	}
	return exprs, targets, nil
}

func aggregateDest(targets []aggregateTarget) []any {
	dest := make([]any, len(targets))
	for i, tg := range targets {
		if tg.fn == "COUNT" {
			dest[i] = new(int64)
		} else {
			dest[i] = new(decimal.NullDecimal)
		}
	}
	return dest
}

func aggregateResult(targets []aggregateTarget, dest []any) query.AggregateResult {
	res := query.AggregateResult{
		Sum: map[string]decimal.Decimal{},
		Avg: map[string]decimal.Decimal{},
		Min: map[string]decimal.Decimal{},
		Max: map[string]decimal.Decimal{},
	}
	for i, tg := range targets {
		if tg.fn == "COUNT" {
			res.Count = *dest[i].(*int64)
			continue
		}
		v := dest[i].(*decimal.NullDecimal)
		if !v.Valid {
			continue
		}
		switch tg.fn {
		case "SUM":
			res.Sum[tg.column] = v.Decimal
		case "AVG":
			res.Avg[tg.column] = v.Decimal
		case "MIN":
			res.Min[tg.column] = v.Decimal
		case "MAX":
			res.Max[tg.column] = v.Decimal
		}
	}
	return res
}

// Aggregate computes the requested aggregates over the records matching where.
// SUM/AVG/MIN/MAX are meant for numeric columns.
func (t *Table[T]) Aggregate(ctx context.Context, where query.Where, spec query.AggregateSpec) (query.AggregateResult, error) {
	exprs, targets, err := t.aggregateExprs(spec)
	if err != nil {
		return query.AggregateResult{}, err
	}
	if len(exprs) == 0 {
		return query.AggregateResult{}, fmt.Errorf("store: aggregate %s: nothing to compute", t.desc.Table)
	}
	preds, err := t.predicates(where)
	if err != nil {
		return query.AggregateResult{}, err
	}
	sqlStr, args, err := applyWhere(t.builder().Select(exprs...).From(t.desc.Table), preds).ToSql()
	if err != nil {
		return query.AggregateResult{}, fmt.Errorf("store: build aggregate %s: %w", t.desc.Table, err)
	}
	dest := aggregateDest(targets)
	if err := t.db.QueryRowContext(ctx, sqlStr, args...).Scan(dest...); err != nil {
		return query.AggregateResult{}, fmt.Errorf("store: aggregate %s: %w", t.desc.Table, err)
	}
	return aggregateResult(targets, dest), nil
}

// GroupBy computes aggregates per distinct combination of args.By, ordered by the keys.
func (t *Table[T]) GroupBy(ctx context.Context, args query.GroupByArgs) ([]query.Group, error) {
	if len(args.By) == 0 {
		return nil, fmt.Errorf("store: group %s: no grouping columns", t.desc.Table)
	}
	for _, c := range args.By {
		if err := t.checkColumn(c); err != nil {
			return nil, err
		}
	}
	exprs, targets, err := t.aggregateExprs(args.Aggregate)
	if err != nil {
		return nil, err
	}
	preds, err := t.predicates(args.Where)
	if err != nil {
		return nil, err
	}

	selectCols := append(append([]string{}, args.By...), exprs...)
	q := applyWhere(t.builder().Select(selectCols...).From(t.desc.Table), preds).
		GroupBy(args.By...).
		OrderBy(args.By...)
	sqlStr, sqlArgs, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build group %s: %w", t.desc.Table, err)
	}

	rows, err := t.db.QueryContext(ctx, sqlStr, sqlArgs...)
	if err != nil {
		return nil, fmt.Errorf("store: group %s: %w", t.desc.Table, err)
	}
	defer rows.Close()

	var groups []query.Group
	for rows.Next() {
		keys := make([]any, len(args.By))
		dest := make([]any, 0, len(keys)+len(targets))
		for i := range keys {
			dest = append(dest, &keys[i])
		}
		aggs := aggregateDest(targets)
		dest = append(dest, aggs...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("store: scan %s group: %w", t.desc.Table, err)
		}
		g := query.Group{Keys: make(map[string]any, len(keys)), Result: aggregateResult(targets, aggs)}
		for i, col := range args.By {
			if b, ok := keys[i].([]byte); ok {
				keys[i] = string(b)
			}
			g.Keys[col] = keys[i]
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: group %s iteration error: %w", t.desc.Table, err)
	}
	return groups, nil
}

// Create inserts data and returns the stored row. A zero id is assigned by the database.
func (t *Table[T]) Create(ctx context.Context, data *T) (*T, error) {
	if data == nil {
		return nil, fmt.Errorf("store: create %s: nil record", t.desc.Table)
	}
	item := *data
	f := t.fields(&item)
	now := t.now()
	for _, c := range []string{"created_at", "updated_at"} {
		if p, ok := f[c].(*time.Time); ok && p.IsZero() {
			*p = now
		}
	}

	cols := make([]string, 0, len(t.desc.Columns))
	vals := make([]any, 0, len(t.desc.Columns))
	for _, c := range t.desc.Columns {
		if c == schema.ColumnID {
			if id, ok := f[c].(*int64); !ok || *id == 0 {
				continue
			}
		}
		cols = append(cols, c)
		vals = append(vals, reflect.ValueOf(f[c]).Elem().Interface())
	}

	sqlStr, args, err := t.builder().
		Insert(t.desc.Table).
		Columns(cols...).
		Values(vals...).
		Suffix(t.returning()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build insert %s: %w", t.desc.Table, err)
	}

	created, err := t.scan(t.db.QueryRowContext(ctx, sqlStr, args...), t.desc.Columns)
	if err != nil {
		return nil, t.writeError("insert", err)
	}
	return &created, nil
}

func (t *Table[T]) applyPatch(b squirrel.UpdateBuilder, patch query.Patch) (squirrel.UpdateBuilder, error) {
	for _, a := range patch.Assignments() {
		if err := t.checkColumn(a.Column); err != nil {
			return b, err
		}
		switch v := a.Value.(type) {
		case query.Expression:
			b = b.Set(a.Column, squirrel.Expr(v.SQL, v.Args...))
		case json.RawMessage:
			b = b.Set(a.Column, jsonColumn(v))
		default:
			b = b.Set(a.Column, v)
		}
	}
	if _, set := patch.Get("updated_at"); !set && t.desc.HasColumn("updated_at") {
		b = b.Set("updated_at", t.now())
	}
	return b, nil
}

// Update applies patch to the record matching where and returns it. It fails with
// ErrNotFound when nothing matches.
func (t *Table[T]) Update(ctx context.Context, where query.Unique, patch query.Patch) (*T, error) {
	if !where.Valid() {
		return nil, fmt.Errorf("store: update %s: selector needs exactly one of id or slug", t.desc.Table)
	}
	preds, err := t.predicates(where.Where())
	if err != nil {
		return nil, err
	}
	b, err := t.applyPatch(t.builder().Update(t.desc.Table), patch)
	if err != nil {
		return nil, err
	}
	sqlStr, args, err := applyWhere(b, preds).Suffix(t.returning()).ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build update %s: %w", t.desc.Table, err)
	}

	updated, err := t.scan(t.db.QueryRowContext(ctx, sqlStr, args...), t.desc.Columns)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: update %s %s: %w", t.desc.Table, describe(where), ErrNotFound)
	}
	if err != nil {
		return nil, t.writeError("update", err)
	}
	return &updated, nil
}

// UpdateMany applies patch to every record matching where and returns how many changed.
func (t *Table[T]) UpdateMany(ctx context.Context, where query.Where, patch query.Patch) (int64, error) {
	preds, err := t.predicates(where)
	if err != nil {
		return 0, err
	}
	b, err := t.applyPatch(t.builder().Update(t.desc.Table), patch)
	if err != nil {
		return 0, err
	}
	sqlStr, args, err := applyWhere(b, preds).ToSql()
	if err != nil {
		return 0, fmt.Errorf("store: build update %s: %w", t.desc.Table, err)
	}
	res, err := t.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, t.writeError("update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: update %s: rows affected: %w", t.desc.Table, err)
	}
	return n, nil
}

// Delete removes the record matching where and returns it. It fails with
// ErrNotFound when nothing matches.
func (t *Table[T]) Delete(ctx context.Context, where query.Unique) (*T, error) {
	if !where.Valid() {
		return nil, fmt.Errorf("store: delete %s: selector needs exactly one of id or slug", t.desc.Table)
	}
	preds, err := t.predicates(where.Where())
	if err != nil {
		return nil, err
	}
	sqlStr, args, err := applyWhere(t.builder().Delete(t.desc.Table), preds).Suffix(t.returning()).ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build delete %s: %w", t.desc.Table, err)
	}

	deleted, err := t.scan(t.db.QueryRowContext(ctx, sqlStr, args...), t.desc.Columns)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: delete %s %s: %w", t.desc.Table, describe(where), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: delete %s: %w", t.desc.Table, err)
	}
	return &deleted, nil
}

// DeleteMany removes every record matching where and returns how many were removed.
func (t *Table[T]) DeleteMany(ctx context.Context, where query.Where) (int64, error) {
	preds, err := t.predicates(where)
	if err != nil {
		return 0, err
	}
	sqlStr, args, err := applyWhere(t.builder().Delete(t.desc.Table), preds).ToSql()
	if err != nil {
		return 0, fmt.Errorf("store: build delete %s: %w", t.desc.Table, err)
	}
	res, err := t.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("store: delete %s: %w", t.desc.Table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: delete %s: rows affected: %w", t.desc.Table, err)
	}
	return n, nil
}

func (t *Table[T]) loadRelations(ctx context.Context, items []T, include, counts query.Include) error {
	if len(items) == 0 {
		return nil
	}
	for _, name := range include.Names() {
		node := include[name]
		load, ok := t.relations[name]
		if !ok || node == nil {
			return fmt.Errorf("%w: %s has no relation %q", query.ErrMalformedInclude, t.desc.Model, name)
		}
		if err := load(ctx, items, node); err != nil {
			return fmt.Errorf("store: load %s.%s: %w", t.desc.Table, name, err)
		}
	}
	for _, name := range counts.Names() {
		node := counts[name]
		count, ok := t.counts[name]
		if !ok || node == nil {
			return fmt.Errorf("%w: %s cannot count relation %q", query.ErrMalformedInclude, t.desc.Model, name)
		}
		if err := count(ctx, items, node); err != nil {
			return fmt.Errorf("store: count %s.%s: %w", t.desc.Table, name, err)
		}
	}
	return nil
}
