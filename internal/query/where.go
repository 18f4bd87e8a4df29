// Package query holds the typed arguments passed between the service layer,
// the soft-delete mediator and the record store.
package query

import "errors"

var (
	// ErrMalformedInclude is returned when a relation expansion has an unexpected shape.
	ErrMalformedInclude = errors.New("query: malformed include")
	// ErrUnknownField is returned when a filter, ordering or projection names a column the model does not have.
	ErrUnknownField = errors.New("query: unknown field")
)

// Op is a comparison operator.
type Op string

const (
	OpEq       Op = "eq"
	OpNotEq    Op = "neq"
	OpIn       Op = "in"
	OpIsNull   Op = "null"
	OpNotNull  Op = "not_null"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpContains Op = "contains" // case-insensitive substring
)

// Cond is a single predicate on one column.
type Cond struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, v any) Cond { return Cond{Field: field, Op: OpEq, Value: v} }
func NotEq(field string, v any) Cond { return Cond{Field: field, Op: OpNotEq, Value: v} }
func In(field string, v any) Cond { return Cond{Field: field, Op: OpIn, Value: v} }
func IsNull(field string) Cond { return Cond{Field: field, Op: OpIsNull} }
func NotNull(field string) Cond { return Cond{Field: field, Op: OpNotNull} }
func Gt(field string, v any) Cond { return Cond{Field: field, Op: OpGt, Value: v} }
func Gte(field string, v any) Cond { return Cond{Field: field, Op: OpGte, Value: v} }
func Lt(field string, v any) Cond { return Cond{Field: field, Op: OpLt, Value: v} }
func Lte(field string, v any) Cond { return Cond{Field: field, Op: OpLte, Value: v} }
func Contains(field, s string) Cond { return Cond{Field: field, Op: OpContains, Value: s} }

// Where is a conjunction of conditions. The zero value matches everything.
// Where values are immutable: every method returns a new Where.
type Where struct {
	conds []Cond
}

// NewWhere builds a Where from conds.
func NewWhere(conds ...Cond) Where {
	return Where{}.And(conds...)
}

// And appends conditions.
func (w Where) And(conds ...Cond) Where {
	out := make([]Cond, 0, len(w.conds)+len(conds))
	out = append(out, w.conds...)
	out = append(out, conds...)
	return Where{conds: out}
}

// Set replaces every existing condition on c.Field with c.
func (w Where) Set(c Cond) Where {
	out := make([]Cond, 0, len(w.conds)+1)
	for _, existing := range w.conds {
		if existing.Field != c.Field {
			out = append(out, existing)
		}
	}
	return Where{conds: append(out, c)}
}

// Without drops every condition on field.
func (w Where) Without(field string) Where {
	out := make([]Cond, 0, len(w.conds))
	for _, existing := range w.conds {
		if existing.Field != field {
			out = append(out, existing)
		}
	}
	return Where{conds: out}
}

// Conds returns a copy of the conditions in insertion order.
func (w Where) Conds() []Cond {
	out := make([]Cond, len(w.conds))
	copy(out, w.conds)
	return out
}

// Get returns the first condition on field.
func (w Where) Get(field string) (Cond, bool) {
	for _, c := range w.conds {
		if c.Field == field {
			return c, true
		}
	}
	return Cond{}, false
}

// Empty reports whether w has no conditions.
func (w Where) Empty() bool { return len(w.conds) == 0 }

// Unique selects at most one record, by id or by slug, optionally narrowed by extra conditions.
type Unique struct {
	ID    int64
	Slug  string
	Extra Where
}

// ByID selects the record with the given id.
func ByID(id int64) Unique { return Unique{ID: id} }

// BySlug selects the record with the given slug.
func BySlug(slug string) Unique { return Unique{Slug: slug} }

// Valid reports whether exactly one unique key is set.
func (u Unique) Valid() bool {
	return (u.ID != 0) != (u.Slug != "")
}

// With narrows the selector with an extra condition, replacing any condition on the same field.
func (u Unique) With(c Cond) Unique {
	u.Extra = u.Extra.Set(c)
	return u
}

// Where flattens the selector into a conjunction.
func (u Unique) Where() Where {
	var w Where
	if u.ID != 0 {
		w = w.And(Eq("id", u.ID))
	}
	if u.Slug != "" {
		w = w.And(Eq("slug", u.Slug))
	}
	return w.And(u.Extra.conds...)
}
